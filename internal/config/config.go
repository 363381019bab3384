package config

import (
	"strings"

	"github.com/nvmltool/nvmltool/internal/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval  = 2
	DefaultTempUnit  = "C"
	DefaultLogLevel  = "warn"
	DefaultDatabase  = "/var/lib/nvmltool/telemetry.db"
	configName       = "nvmltool"
	configType       = "toml"
	configPathSystem = "/etc"
	envPrefix        = "NVMLTOOL"
)

// Config holds the merged settings shared by all subcommands. Precedence:
// flags over environment over config file over defaults.
type Config struct {
	Device    string `mapstructure:"device"`
	UUID      string `mapstructure:"uuid"`
	TempUnit  string `mapstructure:"temp-unit"`
	LogLevel  string `mapstructure:"log-level"`
	Interval  int    `mapstructure:"interval"`
	Telemetry bool   `mapstructure:"telemetry"`
	Database  string `mapstructure:"database"`
}

// AddFlags registers the shared flags on a subcommand's flag set.
func AddFlags(flags *pflag.FlagSet) {
	flags.StringP("device", "d", "", "Select devices, e.g. 0, 0-2 or 0,2,4 (default: all)")
	flags.StringP("uuid", "u", "", "Select device by UUID substring")
	flags.String("temp-unit", DefaultTempUnit, "Temperature display unit: C, F or K")
	flags.String("log-level", DefaultLogLevel, "Log level: debug, info, warn or error")
	flags.Int("interval", DefaultInterval, "Seconds between control loop updates")
	flags.Bool("telemetry", false, "Record control loop samples to the telemetry database")
	flags.String("database", DefaultDatabase, "Path to the telemetry database")
}

// Load merges the parsed flag set with environment variables and the
// optional config file, validates the result and returns it.
func Load(flags *pflag.FlagSet) (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	v.SetDefault("device", "")
	v.SetDefault("uuid", "")
	v.SetDefault("temp-unit", DefaultTempUnit)
	v.SetDefault("log-level", DefaultLogLevel)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("telemetry", false)
	v.SetDefault("database", DefaultDatabase)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(configPathSystem)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that hold regardless of the subcommand.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	switch c.TempUnit {
	case "C", "F", "K":
	default:
		return errFactory.WithData(errors.ErrInvalidConfig, "temp-unit must be C, F or K")
	}

	return nil
}
