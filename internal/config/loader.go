package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CATALOG_HTTP_ADDR.
const EnvPrefix = "CATALOG"

// ConfigFileEnv names an optional YAML file read before environment overrides.
const ConfigFileEnv = "CATALOG_CONFIG_FILE"

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config captures the configuration values for the catalog daemon.
type Config struct {
	HTTP     HTTPConfig
	Log      LogConfig
	Store    StoreConfig
	Search   SearchConfig
	Notifier NotifierConfig
	// ExportedBy is written into JSON export documents.
	ExportedBy string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type StoreConfig struct {
	Driver         string
	SQLitePath     string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string
}

type SearchConfig struct {
	Timeout time.Duration
	// ProbeURL is requested to decide whether the host is online. Empty means always online.
	ProbeURL string
	// Dataset is an optional YAML file replacing the built-in search dataset.
	Dataset string
}

type NotifierConfig struct {
	Enabled  bool
	Interval time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.driver", StoreSQLite)
	v.SetDefault("store.sqlite_path", "catalog.db")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", "0")
	v.SetDefault("store.redis_namespace", "catalog")

	v.SetDefault("search.timeout", "30s")
	v.SetDefault("search.probe_url", "")
	v.SetDefault("search.dataset", "")

	v.SetDefault("notifier.enabled", "true")
	v.SetDefault("notifier.interval", "1h")

	v.SetDefault("exported_by", "event-catalog")
}

// Load reads the optional file named by CATALOG_CONFIG_FILE and applies
// environment overrides on top of the defaults.
func Load() (Config, error) {
	return LoadFile(strings.TrimSpace(os.Getenv(ConfigFileEnv)))
}

// LoadFile behaves like Load with an explicit config file. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	p := &parser{v: v}
	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            p.str("http.addr"),
			ReadTimeout:     p.duration("http.read_timeout"),
			WriteTimeout:    p.duration("http.write_timeout"),
			ShutdownTimeout: p.duration("http.shutdown_timeout"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(p.str("log.level")),
			Format: strings.ToLower(p.str("log.format")),
		},
		Store: StoreConfig{
			Driver:         strings.ToLower(p.str("store.driver")),
			SQLitePath:     p.str("store.sqlite_path"),
			RedisAddr:      p.str("store.redis_addr"),
			RedisPassword:  p.str("store.redis_password"),
			RedisDB:        p.nonNegativeInt("store.redis_db"),
			RedisNamespace: p.str("store.redis_namespace"),
		},
		Search: SearchConfig{
			Timeout:  p.duration("search.timeout"),
			ProbeURL: p.str("search.probe_url"),
			Dataset:  p.str("search.dataset"),
		},
		Notifier: NotifierConfig{
			Enabled:  p.boolean("notifier.enabled"),
			Interval: p.duration("notifier.interval"),
		},
		ExportedBy: p.str("exported_by"),
	}

	if cfg.HTTP.Addr == "" {
		p.missing = append(p.missing, envName("http.addr"))
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		p.invalid = append(p.invalid, envName("log.level"))
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		p.invalid = append(p.invalid, envName("log.format"))
	}
	switch cfg.Store.Driver {
	case StoreSQLite:
		if cfg.Store.SQLitePath == "" {
			p.missing = append(p.missing, envName("store.sqlite_path"))
		}
	case StoreRedis:
		if cfg.Store.RedisAddr == "" {
			p.missing = append(p.missing, envName("store.redis_addr"))
		}
	case StoreMemory:
	default:
		p.invalid = append(p.invalid, envName("store.driver"))
	}

	if len(p.missing) > 0 {
		return Config{}, fmt.Errorf("required configuration is missing: %s", strings.Join(p.missing, ", "))
	}
	if len(p.invalid) > 0 {
		return Config{}, fmt.Errorf("configuration values are invalid: %s", strings.Join(p.invalid, ", "))
	}
	return cfg, nil
}

// parser collects every invalid key instead of stopping at the first one.
type parser struct {
	v       *viper.Viper
	missing []string
	invalid []string
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) duration(key string) time.Duration {
	d, err := time.ParseDuration(p.str(key))
	if err != nil || d <= 0 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return d
}

func (p *parser) nonNegativeInt(key string) int {
	n, err := strconv.Atoi(p.str(key))
	if err != nil || n < 0 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return n
}

func (p *parser) boolean(key string) bool {
	b, err := strconv.ParseBool(p.str(key))
	if err != nil {
		p.invalid = append(p.invalid, envName(key))
		return false
	}
	return b
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
