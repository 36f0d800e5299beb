package application

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		input string
		want  Date
		ok    bool
	}{
		{input: "2025-04-01", want: NewDate(2025, time.April, 1), ok: true},
		{input: " 2025-04-01 ", want: NewDate(2025, time.April, 1), ok: true},
		{input: "2025-04-01T18:30:00Z", want: NewDate(2025, time.April, 1), ok: true},
		{input: "2025-04-01T00:00:00.000Z", want: NewDate(2025, time.April, 1), ok: true},
		{input: "01/04/2025", ok: false},
		{input: "", ok: false},
		{input: "2025-02-30", ok: false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.input)
		if tc.ok && err != nil {
			t.Fatalf("ParseDate(%q) returned error: %v", tc.input, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseDate(%q) expected error, got %v", tc.input, got)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("ParseDate(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, time.December, 30)
	if got := d.AddDays(3).String(); got != "2025-01-02" {
		t.Fatalf("unexpected AddDays result %s", got)
	}
	if got := d.AddMonths(2).String(); got != "2025-03-02" {
		t.Fatalf("unexpected AddMonths result %s", got)
	}
	if got := d.DaysUntil(NewDate(2025, time.January, 6)); got != 7 {
		t.Fatalf("expected 7 days, got %d", got)
	}
	if got := d.DaysUntil(NewDate(2024, time.December, 29)); got != -1 {
		t.Fatalf("expected -1 day, got %d", got)
	}
	if !d.Before(d.AddDays(1)) || d.After(d) {
		t.Fatalf("unexpected ordering")
	}
}

func TestDateJSON(t *testing.T) {
	type payload struct {
		Date     Date  `json:"date"`
		Deadline *Date `json:"deadline,omitempty"`
	}

	data, err := json.Marshal(payload{Date: NewDate(2025, time.May, 4)})
	if err != nil {
		t.Fatalf("marshal returned error: %v", err)
	}
	if string(data) != `{"date":"2025-05-04"}` {
		t.Fatalf("unexpected JSON %s", data)
	}

	var decoded payload
	if err := json.Unmarshal([]byte(`{"date":"2025-05-04T10:00:00Z","deadline":null}`), &decoded); err != nil {
		t.Fatalf("unmarshal returned error: %v", err)
	}
	if decoded.Date != NewDate(2025, time.May, 4) || decoded.Deadline != nil {
		t.Fatalf("unexpected decoded payload %+v", decoded)
	}

	if err := json.Unmarshal([]byte(`{"date":"soon"}`), &decoded); err == nil {
		t.Fatalf("expected error for invalid date")
	}
	if err := json.Unmarshal([]byte(`{"date":20250504}`), &decoded); err == nil {
		t.Fatalf("expected error for numeric date")
	}
}
