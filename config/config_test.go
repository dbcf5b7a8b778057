package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")

	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9090
  read_timeout: 5s
database:
  path: /var/lib/inkflow.db
logging:
  level: debug
  format: console
settlement:
  tip_artist_share: "80"
  schedule: semimonthly
  interval: 1h
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("INKFLOW_SERVER_PORT", "7070")

	cfg, err := Load(dir, "")

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "/var/lib/inkflow.db", cfg.Database.Path)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, time.Hour, cfg.Settlement.Interval)

	s, err := cfg.Settlement.StudioDefaults("studio-1")
	require.NoError(t, err)
	assert.Equal(t, commission.BasisPoints(8000), s.TipArtistShare)
	assert.Equal(t, commission.ScheduleSemiMonthly, s.Schedule)
	assert.Equal(t, commission.DefaultScheduleAnchor, s.ScheduleAnchor)
	assert.Equal(t, commission.StudioID("studio-1"), s.StudioID)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"database path", func(c *Config) { c.Database.Path = " " }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"log file path", func(c *Config) { c.Logging.File.Enabled = true; c.Logging.File.Path = "" }},
		{"interval", func(c *Config) { c.Settlement.Interval = -time.Second }},
		{"tip share", func(c *Config) { c.Settlement.TipArtistShare = "120" }},
		{"tip share precision", func(c *Config) { c.Settlement.TipArtistShare = "33.333" }},
		{"schedule", func(c *Config) { c.Settlement.Schedule = "daily" }},
		{"anchor", func(c *Config) { c.Settlement.ScheduleAnchor = "01/01/2024" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}
