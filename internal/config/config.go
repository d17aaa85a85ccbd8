package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"heartbeat-beacon/internal/logging"
)

// Config materialises the device configuration.
type Config struct {
	Device    DeviceConfig    `mapstructure:"device"`
	Logging   logging.Config  `mapstructure:"logging"`
	Network   NetworkConfig   `mapstructure:"network"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sampler   SamplerConfig   `mapstructure:"sampler"`
	Submitter SubmitterConfig `mapstructure:"submitter"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
}

// DeviceConfig identifies the unit and selects its flavor.
type DeviceConfig struct {
	Name   string `mapstructure:"name"`
	Flavor string `mapstructure:"flavor"`
}

// Flavors select which submission tasks the controller registers.
const (
	FlavorLogger = "logger"
	FlavorEarner = "earner"
)

// NetworkConfig is the radio association surface. The core never reads it;
// it is passed through to the platform network layer at boot.
type NetworkConfig struct {
	SSID     string        `mapstructure:"ssid"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LedgerConfig covers ledger access and key material.
type LedgerConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	OwnerPublicKey string        `mapstructure:"owner_public_key"`
	OwnerSecretKey string        `mapstructure:"owner_secret_key"`
	ProgramID      string        `mapstructure:"program_id"`
	TokenMint      string        `mapstructure:"token_mint"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SchedulerConfig governs the poll loop and per-task cadence.
type SchedulerConfig struct {
	Poll          time.Duration `mapstructure:"poll"`
	BlinkPeriod   time.Duration `mapstructure:"blink_period"`
	SamplePeriod  time.Duration `mapstructure:"sample_period"`
	ReadingPeriod time.Duration `mapstructure:"reading_period"`
	RewardPeriod  time.Duration `mapstructure:"reward_period"`
}

// SamplerConfig tunes signal acquisition.
type SamplerConfig struct {
	Source     string  `mapstructure:"source"`
	SampleSize int     `mapstructure:"sample_size"`
	Baseline   float64 `mapstructure:"baseline"`
	Amplitude  float64 `mapstructure:"amplitude"`
}

// SubmitterConfig selects instruction names and account shape.
type SubmitterConfig struct {
	ReadingInstruction string `mapstructure:"reading_instruction"`
	RewardInstruction  string `mapstructure:"reward_instruction"`
	Template           string `mapstructure:"template"`
	FailureAlertAfter  int    `mapstructure:"failure_alert_after"`
}

// Instruction templates for the log-reading account shape.
const (
	TemplateFull    = "full"
	TemplateMinimal = "minimal"
)

// DatabaseConfig encapsulates the optional fleet telemetry store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AlertingConfig defines operator health alerts.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram alert channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HEARTBEAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.name", "heartbeat-beacon")
	v.SetDefault("device.flavor", FlavorEarner)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("network.timeout", "10s")

	v.SetDefault("ledger.rpc_url", "https://api.devnet.solana.com")
	v.SetDefault("ledger.request_timeout", "10s")

	v.SetDefault("scheduler.poll", "10ms")
	v.SetDefault("scheduler.blink_period", "1s")
	v.SetDefault("scheduler.sample_period", "50ms")
	v.SetDefault("scheduler.reading_period", "6s")
	v.SetDefault("scheduler.reward_period", "60s")

	v.SetDefault("sampler.source", "synthetic")
	v.SetDefault("sampler.sample_size", 20)
	v.SetDefault("sampler.baseline", 72.0)
	v.SetDefault("sampler.amplitude", 8.0)

	v.SetDefault("submitter.reading_instruction", "log_reading")
	v.SetDefault("submitter.reward_instruction", "claim_reward")
	v.SetDefault("submitter.template", TemplateFull)
	v.SetDefault("submitter.failure_alert_after", 5)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Device.Flavor {
	case FlavorLogger, FlavorEarner:
	default:
		return fmt.Errorf("device.flavor must be %q or %q", FlavorLogger, FlavorEarner)
	}
	if c.Scheduler.Poll <= 0 {
		return fmt.Errorf("scheduler.poll must be greater than zero")
	}
	if c.Scheduler.BlinkPeriod <= 0 || c.Scheduler.SamplePeriod <= 0 {
		return fmt.Errorf("scheduler periods must be greater than zero")
	}
	if c.Scheduler.ReadingPeriod <= 0 {
		return fmt.Errorf("scheduler.reading_period must be greater than zero")
	}
	if c.Device.Flavor == FlavorEarner && c.Scheduler.RewardPeriod <= 0 {
		return fmt.Errorf("scheduler.reward_period must be greater than zero")
	}
	if c.Sampler.SampleSize <= 0 {
		return fmt.Errorf("sampler.sample_size must be greater than zero")
	}
	switch c.Submitter.Template {
	case TemplateFull, TemplateMinimal:
	default:
		return fmt.Errorf("submitter.template must be %q or %q", TemplateFull, TemplateMinimal)
	}
	if c.Submitter.ReadingInstruction == "" || c.Submitter.RewardInstruction == "" {
		return fmt.Errorf("submitter instruction names must not be empty")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}
