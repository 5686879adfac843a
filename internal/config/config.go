package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/snapetech/e2catalog/internal/safeurl"
)

// ErrMissingHost is returned by Validate when ENIGMA2_IP is not set.
var ErrMissingHost = errors.New("ENIGMA2_IP must be set as environment variable")

// Config holds receiver, catalog, picon and preload settings.
// Variable names match the docker-compose files people already run.
type Config struct {
	// Receiver
	Host       string // ENIGMA2_IP, required
	Port       int    // OpenWebif control port
	StreamPort int    // streaming port (8001 = direct, 8002 = transcoded on most images)
	PiconURL   string // base URL that serves /picon/*.png; default http://{Host}

	// Catalog
	ListenPort          int
	CatalogPrefix       string
	IgnoreBouquets      []string // substrings matched against bouquet refs
	IgnoreEmptyBouquets bool
	MetaCacheSize       int // 0 = unbounded

	// Directory caching and upstream behaviour
	CacheTTL      time.Duration
	LineupTimeout time.Duration
	PiconTimeout  time.Duration
	UpstreamRPS   float64 // 0 = unlimited

	// Picons and preload
	PiconsEnabled   bool
	PreloadBatch    int
	PreloadDelay    time.Duration
	PreloadInterval time.Duration // 0 = preload at startup only
}

// Load reads config from environment. Call LoadEnvFile(".env") before Load() to use a .env file.
// Load never fails; call Validate before using the result.
func Load() *Config {
	c := &Config{
		Host:                strings.TrimSpace(os.Getenv("ENIGMA2_IP")),
		Port:                getEnvInt("ENIGMA2_PORT", 80),
		StreamPort:          getEnvInt("ENIGMA2_STREAM_PORT", 8002),
		PiconURL:            strings.TrimSpace(os.Getenv("E2_PICON_URL")),
		ListenPort:          getEnvInt("ADDON_PORT", 7000),
		CatalogPrefix:       getEnvRaw("PREFIX_CATALOG", "E2 - "),
		IgnoreBouquets:      getEnvList("IGNORE_BOUQUETS"),
		IgnoreEmptyBouquets: getEnvYes("IGNORE_EMPTY_BOUQUETS", true),
		MetaCacheSize:       getEnvInt("E2_META_CACHE_SIZE", 0),
		CacheTTL:            getEnvDuration("E2_CACHE_TTL", 5*time.Minute),
		LineupTimeout:       getEnvDuration("E2_LINEUP_TIMEOUT", 5*time.Second),
		PiconTimeout:        getEnvDuration("E2_PICON_TIMEOUT", 3*time.Second),
		UpstreamRPS:         getEnvFloat("E2_UPSTREAM_RPS", 0),
		PiconsEnabled:       getEnvYes("ENIGMA2_PICONS", true),
		PreloadBatch:        getEnvInt("E2_PRELOAD_BATCH", 15),
		PreloadDelay:        getEnvDuration("E2_PRELOAD_DELAY", 200*time.Millisecond),
		PreloadInterval:     getEnvDuration("E2_PRELOAD_INTERVAL", 0),
	}
	if c.Port <= 0 {
		c.Port = 80
	}
	if c.StreamPort <= 0 {
		c.StreamPort = 8002
	}
	if c.ListenPort <= 0 {
		c.ListenPort = 7000
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.LineupTimeout <= 0 {
		c.LineupTimeout = 5 * time.Second
	}
	if c.PiconTimeout <= 0 {
		c.PiconTimeout = 3 * time.Second
	}
	if c.PreloadBatch <= 0 {
		c.PreloadBatch = 15
	}
	if c.PreloadDelay < 0 {
		c.PreloadDelay = 0
	}
	if c.MetaCacheSize < 0 {
		c.MetaCacheSize = 0
	}
	if c.PiconURL == "" && c.Host != "" {
		c.PiconURL = "http://" + c.Host
	}
	return c
}

// Validate reports configuration that must stop the process before serving.
func (c *Config) Validate() error {
	if c.Host == "" {
		return ErrMissingHost
	}
	if strings.Contains(c.Host, "/") {
		return fmt.Errorf("ENIGMA2_IP must be a host or IP, got %q", c.Host)
	}
	base, err := safeurl.BaseURL(c.PiconURL)
	if err != nil {
		return fmt.Errorf("E2_PICON_URL: %w", err)
	}
	c.PiconURL = base
	return nil
}

// ControlURL is the OpenWebif base, e.g. http://192.168.1.20:80.
func (c *Config) ControlURL() string {
	return "http://" + c.Host + ":" + strconv.Itoa(c.Port)
}

// StreamURL is the streaming base, e.g. http://192.168.1.20:8002.
func (c *Config) StreamURL() string {
	return "http://" + c.Host + ":" + strconv.Itoa(c.StreamPort)
}

// ListenAddr is the add-on listen address.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.ListenPort)
}

// Summary is the multi-line startup banner.
func (c *Config) Summary() string {
	ignore := "None"
	if len(c.IgnoreBouquets) > 0 {
		ignore = strings.Join(c.IgnoreBouquets, ", ")
	}
	return fmt.Sprintf(`Starting addon:
  IP: %s
  Stream Port: %d
  Picons: %s
  Catalog Prefix: %q
  Ignore Bouquets: %s
  Ignore Empty Bouquets: %s`,
		c.Host, c.StreamPort, onOff(c.PiconsEnabled, "ENABLED", "DISABLED"),
		c.CatalogPrefix, ignore, onOff(c.IgnoreEmptyBouquets, "YES", "NO"))
}

func onOff(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

func getEnvRaw(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return defaultVal
		}
		return f
	}
	return defaultVal
}

// getEnvYes treats YES/1/true (any case) as on and anything else set as off.
func getEnvYes(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "yes") || v == "1" || strings.EqualFold(v, "true")
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
