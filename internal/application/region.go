package application

import (
	"fmt"
	"strings"
)

// Region groups countries for filtering and counts.
type Region string

const (
	RegionAll         Region = "all"
	RegionIndia       Region = "india"
	RegionChina       Region = "china"
	RegionSouthAsia   Region = "south_asia"
	RegionRestOfWorld Region = "rest_of_world"
)

// Regions lists the concrete regions in classification order.
var Regions = []Region{RegionIndia, RegionChina, RegionSouthAsia, RegionRestOfWorld}

// southAsia is the canonical South-Asia set. It includes Afghanistan.
var southAsia = map[string]struct{}{
	"Nepal":       {},
	"Bangladesh":  {},
	"Sri Lanka":   {},
	"Pakistan":    {},
	"Bhutan":      {},
	"Maldives":    {},
	"Afghanistan": {},
}

// Classify maps a country name to its region. Matching is exact.
func Classify(country string) Region {
	switch country {
	case "India":
		return RegionIndia
	case "China":
		return RegionChina
	}
	if _, ok := southAsia[country]; ok {
		return RegionSouthAsia
	}
	return RegionRestOfWorld
}

// ParseRegion accepts region names and the legacy hyphenated aliases.
// An empty value means all regions.
func ParseRegion(value string) (Region, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all":
		return RegionAll, nil
	case "india":
		return RegionIndia, nil
	case "china":
		return RegionChina, nil
	case "south_asia", "south-asia":
		return RegionSouthAsia, nil
	case "rest_of_world", "rest-world", "rest-of-world":
		return RegionRestOfWorld, nil
	default:
		return "", fmt.Errorf("unknown region %q", value)
	}
}

// Matches reports whether country belongs to r.
func (r Region) Matches(country string) bool {
	if r == RegionAll || r == "" {
		return true
	}
	return Classify(country) == r
}
