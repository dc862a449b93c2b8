package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"token_ticker/internal/domain"
)

var (
	uaMu             sync.RWMutex
	currentUserAgent = GetPlatformUserAgent()
)

// GetUserAgent returns the current active User-Agent string. (Thread-safe)
func GetUserAgent() string {
	uaMu.RLock()
	defer uaMu.RUnlock()
	return currentUserAgent
}

// SetUserAgent updates the global User-Agent string. (Thread-safe)
func SetUserAgent(ua string) {
	uaMu.Lock()
	defer uaMu.Unlock()
	currentUserAgent = ua
}

// GetPlatformUserAgent builds the User-Agent sent with every request.
func GetPlatformUserAgent() string {
	return fmt.Sprintf("token-ticker/1.0 (%s; %s)", runtime.GOOS, runtime.GOARCH)
}

// Config holds every tunable of the ticker.
// LoadConfig fills defaults first, then the YAML file, then environment overrides.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Gate struct {
			RestURL string `yaml:"rest_url"`
			WSURL   string `yaml:"ws_url"`
		} `yaml:"gate"`
	} `yaml:"api"`

	Poller struct {
		TickMS               int     `yaml:"tick_ms"`
		FocusIntervalMS      int     `yaml:"focus_interval_ms"`
		BackgroundIntervalMS int     `yaml:"background_interval_ms"`
		FocusSettleMS        int     `yaml:"focus_settle_ms"`
		RequestTimeoutMS     int     `yaml:"request_timeout_ms"`
		HistoryTimeoutMS     int     `yaml:"history_timeout_ms"`
		MaxRetries           *int    `yaml:"max_retries"` // nil means default; 0 disables retries
		RateLimitWaitMS      int     `yaml:"rate_limit_wait_ms"`
		RetryWaitMS          int     `yaml:"retry_wait_ms"`
		TickerBufferBytes    int     `yaml:"ticker_buffer_bytes"`
		ChartBufferBytes     int     `yaml:"chart_buffer_bytes"`
		RequestsPerSecond    float64 `yaml:"requests_per_second"`
		StopGraceMS          int     `yaml:"stop_grace_ms"`
	} `yaml:"poller"`

	Stream struct {
		DebounceMS    int `yaml:"debounce_ms"`
		PingMS        int `yaml:"ping_ms"`
		ReconnectMS   int `yaml:"reconnect_ms"`
		ReadTimeoutMS int `yaml:"read_timeout_ms"`
	} `yaml:"stream"`

	Alert domain.AlertThresholds `yaml:"alert"`

	Tokens struct {
		Default      string `yaml:"default"`
		InitialFocus int    `yaml:"initial_focus"`
	} `yaml:"tokens"`

	Notify struct {
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Channel  string `yaml:"channel"`
		} `yaml:"redis"`
	} `yaml:"notify"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	UI struct {
		RefreshMS     int `yaml:"refresh_ms"`
		LockTimeoutMS int `yaml:"lock_timeout_ms"`
	} `yaml:"ui"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns a fully populated configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	setStr := func(p *string, v string) {
		if *p == "" {
			*p = v
		}
	}
	setInt := func(p *int, v int) {
		if *p == 0 {
			*p = v
		}
	}

	setStr(&c.App.Name, "token-ticker")
	setStr(&c.App.Version, "1.0.0")
	setStr(&c.API.Gate.RestURL, "https://api.gateio.ws/api/v4")
	setStr(&c.API.Gate.WSURL, "wss://api.gateio.ws/ws/v4/")

	p := &c.Poller
	setInt(&p.TickMS, 2000)
	setInt(&p.FocusIntervalMS, 10_000)
	setInt(&p.BackgroundIntervalMS, 600_000)
	setInt(&p.FocusSettleMS, 3000)
	setInt(&p.RequestTimeoutMS, 8000)
	setInt(&p.HistoryTimeoutMS, 15_000)
	if p.MaxRetries == nil {
		retries := 2
		p.MaxRetries = &retries
	}
	setInt(&p.RateLimitWaitMS, 5000)
	setInt(&p.RetryWaitMS, 1000)
	setInt(&p.TickerBufferBytes, 2048)
	setInt(&p.ChartBufferBytes, 8192)
	setInt(&p.StopGraceMS, 2000)
	if p.RequestsPerSecond == 0 {
		p.RequestsPerSecond = 5
	}

	s := &c.Stream
	setInt(&s.DebounceMS, 2000)
	setInt(&s.PingMS, 30_000)
	setInt(&s.ReconnectMS, 5000)
	setInt(&s.ReadTimeoutMS, 90_000)

	if c.Alert == (domain.AlertThresholds{}) {
		c.Alert = domain.DefaultAlertThresholds()
	}

	setStr(&c.Tokens.Default, domain.DefaultSelection)
	setStr(&c.Notify.Redis.Channel, "ticker:alerts")

	setInt(&c.UI.RefreshMS, 1000)
	setInt(&c.UI.LockTimeoutMS, 100)

	setStr(&c.Logging.Level, "info")
	setStr(&c.Logging.Format, "text")
}

// LoadConfig reads .env (if present) and the YAML file, then applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env", slog.Any("error", err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.Gate.RestURL, "http://") && !strings.HasPrefix(c.API.Gate.RestURL, "https://") {
		return fmt.Errorf("invalid Gate REST URL: %s", c.API.Gate.RestURL)
	}
	if !strings.HasPrefix(c.API.Gate.WSURL, "ws://") && !strings.HasPrefix(c.API.Gate.WSURL, "wss://") {
		return fmt.Errorf("invalid Gate WS URL: %s", c.API.Gate.WSURL)
	}

	p := c.Poller
	if p.TickMS <= 0 || p.FocusIntervalMS <= 0 || p.BackgroundIntervalMS <= 0 {
		return fmt.Errorf("poller intervals must be positive")
	}
	if p.RequestTimeoutMS < 3000 || p.RequestTimeoutMS > 15_000 {
		return fmt.Errorf("request timeout %dms outside 3000..15000", p.RequestTimeoutMS)
	}
	if p.HistoryTimeoutMS < 3000 || p.HistoryTimeoutMS > 15_000 {
		return fmt.Errorf("history timeout %dms outside 3000..15000", p.HistoryTimeoutMS)
	}
	if p.MaxRetries == nil || *p.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if p.TickerBufferBytes <= 0 || p.ChartBufferBytes <= 0 {
		return fmt.Errorf("response buffers must be positive")
	}

	if c.Alert.SurgeRearm >= c.Alert.SurgeFire {
		return fmt.Errorf("surge rearm %.2f must be below fire %.2f", c.Alert.SurgeRearm, c.Alert.SurgeFire)
	}
	if c.Alert.CrashRearm <= c.Alert.CrashFire {
		return fmt.Errorf("crash rearm %.2f must be above fire %.2f", c.Alert.CrashRearm, c.Alert.CrashFire)
	}

	if len(domain.ParseSelection(c.Tokens.Default)) == 0 {
		return fmt.Errorf("default token selection %q resolves to nothing", c.Tokens.Default)
	}

	return nil
}

// overrideWithEnv lets the environment win over the config file.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("TICKER_TOKENS"); v != "" {
		cfg.Tokens.Default = v
	}
	if v := os.Getenv("TICKER_REDIS_ADDR"); v != "" {
		cfg.Notify.Redis.Addr = v
	}
	if v := os.Getenv("TICKER_REDIS_PASSWORD"); v != "" {
		cfg.Notify.Redis.Password = v
	}
	if v := os.Getenv("TICKER_METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
	if v := os.Getenv("TICKER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Ms converts a millisecond config field to a Duration.
func Ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
