package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gm "greenhouse_monitor"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GREENHOUSE_API_BASE_URL.
const EnvPrefix = "GREENHOUSE"

// Config is the full configuration of the client and the development backend.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Polling  PollingConfig  `mapstructure:"polling"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Backend  BackendConfig  `mapstructure:"backend"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RealtimeConfig struct {
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ReceiptTimeout    time.Duration `mapstructure:"receipt_timeout"`
	DisconnectTimeout time.Duration `mapstructure:"disconnect_timeout"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
}

type PollingConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// BackendConfig only matters to the development backend (cmd/greenhouse-sim).
type BackendConfig struct {
	Port       string        `mapstructure:"port"`
	DBPath     string        `mapstructure:"db_path"`
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	SimTick    time.Duration `mapstructure:"sim_tick"`
}

var errInvalidBaseURL = errors.New("api.base_url must start with http:// or https://")

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout", 15*time.Second)

	v.SetDefault("realtime.ping_interval", gm.DefaultPingInterval)
	v.SetDefault("realtime.connect_timeout", gm.DefaultConnectTimeout)
	v.SetDefault("realtime.receipt_timeout", gm.DefaultReceiptTimeout)
	v.SetDefault("realtime.disconnect_timeout", gm.DefaultDisconnectTimeout)
	v.SetDefault("realtime.reconnect_delay", gm.DefaultReconnectDelay)

	v.SetDefault("polling.interval", 5*time.Second)
	v.SetDefault("polling.max_backoff", time.Minute)

	v.SetDefault("storage.path", "greenhouse.db")
	v.SetDefault("log.level", "info")

	v.SetDefault("backend.port", "8080")
	v.SetDefault("backend.db_path", "greenhouse-sim.db")
	v.SetDefault("backend.signing_key", "dev-signing-key")
	v.SetDefault("backend.token_ttl", 24*time.Hour)
	v.SetDefault("backend.sim_tick", 2*time.Second)
}

// NewViper builds a viper instance with defaults, env overrides and, when present,
// the config file. An empty path looks for configs/config.yml; a missing file is not an error.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs") // configs/config.yml
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if !strings.HasPrefix(cfg.API.BaseURL, "http://") && !strings.HasPrefix(cfg.API.BaseURL, "https://") {
		return nil, errInvalidBaseURL
	}
	return &cfg, nil
}

// Load is NewViper followed by FromViper.
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}
