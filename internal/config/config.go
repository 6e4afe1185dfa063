package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LoggingConfig  `yaml:"log"`
	Extended ExtendedConfig `yaml:"extended"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Adapter  AdapterConfig  `yaml:"adapter"`
	State    StateConfig    `yaml:"state"`
	Recorder RecorderConfig `yaml:"recorder"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ExtendedConfig selects the upstream environment. BaseURL and StreamURL
// override the environment's built-in endpoints when set; secrets never
// live here, they come from EXTENDED_* env vars.
type ExtendedConfig struct {
	Environment string        `yaml:"environment"`
	BaseURL     string        `yaml:"base_url"`
	StreamURL   string        `yaml:"stream_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

type BridgeConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type AdapterConfig struct {
	DefaultSlippage float64       `yaml:"default_slippage"`
	OrderExpiry     time.Duration `yaml:"order_expiry"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type RecorderConfig struct {
	Enabled          bool          `yaml:"enabled"`
	DSN              string        `yaml:"dsn"`
	Schema           string        `yaml:"schema"`
	QueueSize        int           `yaml:"queue_size"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	Markets          []string      `yaml:"markets"`
	UseStream        bool          `yaml:"use_stream"`
	OutageThreshold  int           `yaml:"outage_threshold"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled != nil && *m.Enabled
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Extended.Environment == "" {
		cfg.Extended.Environment = "mainnet"
	}
	if cfg.Extended.Timeout == 0 {
		cfg.Extended.Timeout = 10 * time.Second
	}
	if cfg.Bridge.Timeout == 0 {
		cfg.Bridge.Timeout = 30 * time.Second
	}
	if cfg.Adapter.DefaultSlippage == 0 {
		cfg.Adapter.DefaultSlippage = 0.05
	}
	if cfg.Adapter.OrderExpiry == 0 {
		cfg.Adapter.OrderExpiry = time.Hour
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/extended-hl-adapter.db"
	}
	if cfg.Recorder.QueueSize == 0 {
		cfg.Recorder.QueueSize = 1024
	}
	if cfg.Recorder.PollInterval == 0 {
		cfg.Recorder.PollInterval = 5 * time.Second
	}
	if cfg.Recorder.SnapshotInterval == 0 {
		cfg.Recorder.SnapshotInterval = time.Minute
	}
	if cfg.Recorder.OutageThreshold == 0 {
		cfg.Recorder.OutageThreshold = 3
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func applyEnvOverrides(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv("EXTENDED_TELEGRAM_TOKEN")); token != "" {
		cfg.Telegram.Token = token
	}
	if chatID := strings.TrimSpace(os.Getenv("EXTENDED_TELEGRAM_CHAT_ID")); chatID != "" {
		cfg.Telegram.ChatID = chatID
	}
}

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Extended.Environment) {
	case "mainnet", "testnet":
	default:
		return errors.New("extended.environment must be mainnet or testnet")
	}
	if cfg.Extended.Timeout < 0 {
		return errors.New("extended.timeout must be >= 0")
	}
	if cfg.Bridge.Timeout < 0 {
		return errors.New("bridge.timeout must be >= 0")
	}
	if cfg.Adapter.DefaultSlippage < 0 || cfg.Adapter.DefaultSlippage >= 1 {
		return errors.New("adapter.default_slippage must be in [0, 1)")
	}
	if cfg.Adapter.OrderExpiry < 0 {
		return errors.New("adapter.order_expiry must be >= 0")
	}
	if cfg.Recorder.Enabled {
		if cfg.Recorder.DSN == "" {
			return errors.New("recorder.dsn is required when recorder is enabled")
		}
		if len(cfg.Recorder.Markets) == 0 {
			return errors.New("recorder.markets is required when recorder is enabled")
		}
	}
	if cfg.Recorder.PollInterval < 0 || cfg.Recorder.SnapshotInterval < 0 {
		return errors.New("recorder intervals must be >= 0")
	}
	if cfg.Recorder.QueueSize < 0 {
		return errors.New("recorder.queue_size must be >= 0")
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "") {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}
