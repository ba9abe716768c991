package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	LogMode bool   `mapstructure:"log_mode"`
}

type AuthConfig struct {
	JWTSecret         string   `mapstructure:"jwt_secret"`
	TokenExpireHours  int      `mapstructure:"token_expire_hours"`
	BcryptCost        int      `mapstructure:"bcrypt_cost"`
	SingleUseSessions bool     `mapstructure:"single_use_sessions"`
	ExemptPaths       []string `mapstructure:"exempt_paths"`
}

type DiscordConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	WebhookURL   string `mapstructure:"webhook_url"`
}

type BankConfig struct {
	RevolutBaseURL string `mapstructure:"revolut_base_url"`
	BTBaseURL      string `mapstructure:"bt_base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	EncryptionKey  string `mapstructure:"encryption_key"`
}

type RealtimeConfig struct {
	PushIntervalSeconds int `mapstructure:"push_interval_seconds"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Bank     BankConfig     `mapstructure:"bank"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
}

var (
	appConfig *Config
	once      sync.Once
)

// Load loads configuration from given file path (e.g. "config.yaml").
// If path is empty, it defaults to "config.yaml" in current working directory.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		v := viper.New()

		if path == "" {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
		} else {
			v.SetConfigFile(path)
		}

		// environment overrides, e.g. MM_SERVER_PORT=9000
		v.SetEnvPrefix("MM")
		v.AutomaticEnv()

		if err = v.ReadInConfig(); err != nil {
			err = fmt.Errorf("read config: %w", err)
			return
		}

		var c Config
		if err = v.Unmarshal(&c); err != nil {
			err = fmt.Errorf("unmarshal config: %w", err)
			return
		}

		applyDefaults(&c)
		appConfig = &c
	})

	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

func applyDefaults(c *Config) {
	if c.Auth.TokenExpireHours <= 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Auth.BcryptCost <= 0 {
		c.Auth.BcryptCost = 12
	}
	if len(c.Auth.ExemptPaths) == 0 {
		c.Auth.ExemptPaths = []string{"/api/auth/", "/static/", "/healthz"}
	}
	if c.Bank.RevolutBaseURL == "" {
		c.Bank.RevolutBaseURL = "https://api.revolut.com/1.0"
	}
	if c.Bank.BTBaseURL == "" {
		c.Bank.BTBaseURL = "https://openapi.banca-transilvania.ro/v3"
	}
	if c.Bank.TimeoutSeconds <= 0 {
		c.Bank.TimeoutSeconds = 10
	}
	if c.Realtime.PushIntervalSeconds <= 0 {
		c.Realtime.PushIntervalSeconds = 5
	}
}

// Get returns the loaded global configuration.
// Call Load() once at application startup.
func Get() *Config {
	return appConfig
}
