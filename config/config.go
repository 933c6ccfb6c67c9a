package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DeliveryDirect = "direct"
	DeliveryOutbox = "outbox"
)

type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Webhook WebhookConfig `yaml:"webhook" mapstructure:"webhook"`
	Outbox  OutboxConfig  `yaml:"outbox" mapstructure:"outbox"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

type StoreConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
	Key string `yaml:"key" mapstructure:"key"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

type WebhookConfig struct {
	URL      string        `yaml:"url" mapstructure:"url"`
	Secret   string        `yaml:"secret" mapstructure:"secret"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Delivery string        `yaml:"delivery" mapstructure:"delivery"`
}

type OutboxConfig struct {
	Interval    time.Duration `yaml:"interval" mapstructure:"interval"`
	Batch       int           `yaml:"batch" mapstructure:"batch"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Store.Key != "" {
		c.Store.Key = "****"
	}
	if c.Webhook.Secret != "" {
		c.Webhook.Secret = "****"
	}
	return c
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.url", "")
	v.SetDefault("store.key", "")
	v.SetDefault("http.addr", ":3000")
	v.SetDefault("webhook.url", "http://localhost:5678/webhook/tasks")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("webhook.delivery", DeliveryDirect)
	v.SetDefault("outbox.interval", 1*time.Second)
	v.SetDefault("outbox.batch", 5)
	v.SetDefault("outbox.max_attempts", 8)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
}

// New builds a viper instance reading defaults, an optional config file and
// the environment. webhook.url is read from WEBHOOK_URL, store.url from STORE_URL.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Store.URL == "" {
		errs = append(errs, errors.New("STORE_URL is required"))
	}
	if c.Store.Key == "" {
		errs = append(errs, errors.New("STORE_KEY is required"))
	}
	switch c.Webhook.Delivery {
	case DeliveryDirect, DeliveryOutbox:
	default:
		errs = append(errs, fmt.Errorf("webhook.delivery must be %q or %q, got %q", DeliveryDirect, DeliveryOutbox, c.Webhook.Delivery))
	}
	if c.Webhook.Timeout <= 0 {
		errs = append(errs, errors.New("webhook.timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Watch calls onChange with the reloaded configuration whenever the config
// file changes. Invalid reloads are reported through onError and ignored.
func Watch(v *viper.Viper, onChange func(Config), onError func(error)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
