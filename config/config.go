// Package config loads service configuration from an optional config file
// and INKFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

const (
	configName = "config"
	configType = "yaml"
	envPrefix  = "INKFLOW"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Settlement SettlementConfig `mapstructure:"settlement"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"` // json | console
	File   LogFileConfig `mapstructure:"file"`
}

type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SettlementConfig holds engine defaults. Studios without saved settings
// use these.
type SettlementConfig struct {
	// TipArtistShare is a decimal percent, e.g. "100" or "80.5".
	TipArtistShare string        `mapstructure:"tip_artist_share"`
	Schedule       string        `mapstructure:"schedule"`
	ScheduleAnchor string        `mapstructure:"schedule_anchor"`
	Interval       time.Duration `mapstructure:"interval"` // 0 disables the scheduler
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Database: DatabaseConfig{Path: "./inkflow.db"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File: LogFileConfig{
				Path:       "./logs/inkflow.log",
				MaxSizeMB:  100,
				MaxBackups: 5,
				MaxAgeDays: 30,
			},
		},
		Settlement: SettlementConfig{
			TipArtistShare: "100",
			Schedule:       string(commission.ScheduleBiweekly),
			ScheduleAnchor: commission.DefaultScheduleAnchor.Format(time.DateOnly),
		},
	}
}

// Load reads config.yaml from dir (optional) and applies INKFLOW_*
// environment overrides, e.g. INKFLOW_DATABASE_PATH overrides database.path.
// A non-empty file path is read directly instead of searching dir.
func Load(dir, file string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		if dir == "" {
			dir = "."
		}
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file.enabled", d.Logging.File.Enabled)
	v.SetDefault("logging.file.path", d.Logging.File.Path)
	v.SetDefault("logging.file.max_size_mb", d.Logging.File.MaxSizeMB)
	v.SetDefault("logging.file.max_backups", d.Logging.File.MaxBackups)
	v.SetDefault("logging.file.max_age_days", d.Logging.File.MaxAgeDays)
	v.SetDefault("logging.file.compress", d.Logging.File.Compress)
	v.SetDefault("settlement.tip_artist_share", d.Settlement.TipArtistShare)
	v.SetDefault("settlement.schedule", d.Settlement.Schedule)
	v.SetDefault("settlement.schedule_anchor", d.Settlement.ScheduleAnchor)
	v.SetDefault("settlement.interval", d.Settlement.Interval)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	if c.Logging.File.Enabled && c.Logging.File.Path == "" {
		return errors.New("logging.file.path is required when file logging is enabled")
	}
	if c.Settlement.Interval < 0 {
		return errors.New("settlement.interval must not be negative")
	}
	_, err := c.Settlement.StudioDefaults("")
	return err
}

// StudioDefaults converts the settlement section into studio settings for a
// studio that saved none.
func (s SettlementConfig) StudioDefaults(studioID commission.StudioID) (commission.StudioSettings, error) {
	out := commission.DefaultStudioSettings(studioID)

	if s.TipArtistShare != "" {
		pct, err := decimal.NewFromString(s.TipArtistShare)
		if err != nil {
			return out, fmt.Errorf("settlement.tip_artist_share: %w", err)
		}
		bp, err := commission.PercentToBasisPoints(pct)
		if err != nil {
			return out, fmt.Errorf("settlement.tip_artist_share: %w", err)
		}
		if !bp.Valid() {
			return out, fmt.Errorf("settlement.tip_artist_share %s is outside 0..100", s.TipArtistShare)
		}
		out.TipArtistShare = bp
	}
	if s.Schedule != "" {
		sched, err := commission.ParseSchedule(s.Schedule)
		if err != nil {
			return out, fmt.Errorf("settlement.schedule: %w", err)
		}
		out.Schedule = sched
	}
	if s.ScheduleAnchor != "" {
		anchor, err := time.Parse(time.DateOnly, s.ScheduleAnchor)
		if err != nil {
			return out, fmt.Errorf("settlement.schedule_anchor: %w", err)
		}
		out.ScheduleAnchor = anchor
	}
	return out, nil
}
