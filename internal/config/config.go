// Package config loads service settings from an embedded YAML default,
// an optional YAML file and environment overrides.
package config

import (
	"embed"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alex-user-go/fares/internal/geo"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// EnvPath names the variable holding an optional config file path.
const EnvPath = "FARES_CONFIG"

// Renderer kinds.
const (
	RendererHTTP   = "http"
	RendererChrome = "chrome"
)

// ErrInvalid is returned for configs that fail validation.
var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// UnmarshalYAML parses "30s", "15m" and so on.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Server holds the HTTP listener settings.
type Server struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	APIKey       string   `yaml:"api_key"`
	Debug        bool     `yaml:"debug"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Search holds the fan-out settings shared by every query.
type Search struct {
	Countries     []string `yaml:"countries"`
	Baseline      string   `yaml:"baseline"`
	MaxResults    int      `yaml:"max_results"`
	SourceTimeout Duration `yaml:"source_timeout"`
	ReadyTimeout  Duration `yaml:"ready_timeout"`

	// RequestTimeout bounds a whole search run independently of the
	// client that started it.
	RequestTimeout Duration `yaml:"request_timeout"`
}

// Renderer selects and tunes the page renderer.
type Renderer struct {
	Kind              string   `yaml:"kind"`
	URL               string   `yaml:"url"`
	Headless          bool     `yaml:"headless"`
	NavigationTimeout Duration `yaml:"navigation_timeout"`
}

// Proxy holds the geo-routing proxy account.
type Proxy struct {
	Endpoint string `yaml:"endpoint"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Cache configures result caching. An empty RedisURL keeps results in memory.
type Cache struct {
	RedisURL string   `yaml:"redis_url"`
	TTL      Duration `yaml:"ttl"`
}

// RateLimit is the per-client search allowance.
type RateLimit struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// Config is the full service configuration.
type Config struct {
	Server    Server                 `yaml:"server"`
	Search    Search                 `yaml:"search"`
	Renderer  Renderer               `yaml:"renderer"`
	Proxy     Proxy                  `yaml:"proxy"`
	Cache     Cache                  `yaml:"cache"`
	RateLimit RateLimit              `yaml:"rate_limit"`
	Countries map[string]geo.Country `yaml:"countries,omitempty"`
}

// ProxyCredentials returns the geo-routing credentials, or a zero value
// when no username is configured.
func (c *Config) ProxyCredentials() geo.ProxyCredentials {
	if c.Proxy.Username == "" {
		return geo.ProxyCredentials{}
	}
	return geo.ProxyCredentials{
		Endpoint: c.Proxy.Endpoint,
		Username: c.Proxy.Username,
		Password: c.Proxy.Password,
	}
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load builds the config from the embedded defaults, the YAML file at path
// (skipped when empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Fields absent from the file keep their defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"API_KEY":          &cfg.Server.APIKey,
		"HOST":             &cfg.Server.Host,
		"OXYLABS_USERNAME": &cfg.Proxy.Username,
		"OXYLABS_PASSWORD": &cfg.Proxy.Password,
		"OXYLABS_ENDPOINT": &cfg.Proxy.Endpoint,
		"REDIS_URL":        &cfg.Cache.RedisURL,
		"RENDER_URL":       &cfg.Renderer.URL,
		"RENDERER":         &cfg.Renderer.Kind,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT %q: %w", ErrInvalid, v, err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: DEBUG %q: %w", ErrInvalid, v, err)
		}
		cfg.Server.Debug = debug
	}
	if v, ok := lookup("SEARCH_COUNTRIES"); ok && v != "" {
		var codes []string
		for _, code := range strings.Split(v, ",") {
			if code = strings.TrimSpace(code); code != "" {
				codes = append(codes, strings.ToLower(code))
			}
		}
		cfg.Search.Countries = codes
	}
	return nil
}

// Validate rejects configs the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case len(c.Search.Countries) == 0:
		return fmt.Errorf("%w: search.countries is empty", ErrInvalid)
	case c.Search.Baseline == "":
		return fmt.Errorf("%w: search.baseline is required", ErrInvalid)
	case c.Search.MaxResults <= 0:
		return fmt.Errorf("%w: search.max_results must be positive", ErrInvalid)
	case c.Search.SourceTimeout <= 0:
		return fmt.Errorf("%w: search.source_timeout must be positive", ErrInvalid)
	case c.Search.ReadyTimeout <= 0:
		return fmt.Errorf("%w: search.ready_timeout must be positive", ErrInvalid)
	case c.Search.RequestTimeout <= 0:
		return fmt.Errorf("%w: search.request_timeout must be positive", ErrInvalid)
	case c.Renderer.NavigationTimeout <= 0:
		return fmt.Errorf("%w: renderer.navigation_timeout must be positive", ErrInvalid)
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	case c.Cache.TTL <= 0:
		return fmt.Errorf("%w: cache.ttl must be positive", ErrInvalid)
	}

	switch c.Renderer.Kind {
	case RendererHTTP:
		if c.Renderer.URL == "" {
			return fmt.Errorf("%w: renderer.url is required for the http renderer", ErrInvalid)
		}
	case RendererChrome:
	default:
		return fmt.Errorf("%w: unknown renderer kind %q (valid: http, chrome)", ErrInvalid, c.Renderer.Kind)
	}

	for i, code := range c.Search.Countries {
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("%w: search.countries[%d] is empty", ErrInvalid, i)
		}
	}
	return nil
}
