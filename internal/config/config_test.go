package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/obc-alarm/internal/scheduler"
)

// TestValidate checks required fields and defaults.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing ground link.
	require.ErrorIs(t, Validate(new(Config)), errGroundLinkRequired)

	// Bad socket.
	require.Error(t, Validate(&Config{GroundLinkAddress: "bad:address"}))

	cfg := &Config{GroundLinkAddress: "127.0.0.1:0"}
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, StoreFile, cfg.AlarmStore.Driver)
	require.Equal(t, DefaultFileStorePath, cfg.AlarmStore.Path)
	require.Equal(t, scheduler.MaxQueueCapacity, cfg.Scheduler.QueueCapacity)
	require.Equal(t, scheduler.DefaultMailboxLength, cfg.Scheduler.MailboxLength)
	require.Equal(t, scheduler.DefaultDriftTolerance, cfg.Scheduler.DriftTolerance)
	require.Equal(t, scheduler.DefaultReceiveTimeout, cfg.Scheduler.ReceiveTimeout)
	require.Equal(t, scheduler.DefaultSendTimeout, cfg.Scheduler.SendTimeout)
	require.Equal(t, RTCSimulated, cfg.RTC.Driver)
	require.False(t, cfg.Scheduler.RearmAfterDrain)
}

// TestValidate_Rejects lists settings that must not load.
func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"capacity above slots": func(c *Config) { c.Scheduler.QueueCapacity = scheduler.MaxQueueCapacity + 1 },
		"fractional tolerance": func(c *Config) { c.Scheduler.DriftTolerance = 1500 * time.Millisecond },
		"unknown store":        func(c *Config) { c.AlarmStore.Driver = "tape" },
		"unknown rtc":          func(c *Config) { c.RTC.Driver = "gps" },
		"bad log level":        func(c *Config) { c.LogLevel = "loud" },
		"bad cron":             func(c *Config) { c.Housekeeping = []Job{{Name: "heartbeat", Cron: "often"}} },
		"duplicate job": func(c *Config) {
			c.Housekeeping = []Job{{Name: "heartbeat", Cron: "* * * * *"}, {Name: "heartbeat", Cron: "0 * * * *"}}
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := &Config{GroundLinkAddress: "127.0.0.1:0"}
			mutate(cfg)

			require.ErrorIs(t, Validate(cfg), errInvalidValue)
		})
	}
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		GroundLinkAddress: "127.0.0.1:50051",
		AlarmStore:        AlarmStore{Driver: StoreSQLite},
		Scheduler: Scheduler{
			QueueCapacity:   8,
			DriftTolerance:  3 * time.Second,
			RearmAfterDrain: true,
		},
		RTC:          RTC{Driver: RTCDS3232},
		Housekeeping: []Job{{Name: "heartbeat", Cron: "*/5 * * * *"}},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)
	require.Equal(t, DefaultSQLiteStorePath, loaded.AlarmStore.Path)
	require.Equal(t, DefaultI2CDevice, loaded.RTC.I2CDevice)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoad_Missing reports unreadable files.
func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// TestLoad_Example keeps the shipped example settings loadable.
func TestLoad_Example(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join("..", "..", "obc-alarm-settings.example.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Housekeeping)
	require.True(t, cfg.Scheduler.RearmAfterDrain)
	require.Equal(t, scheduler.DefaultDriftTolerance, cfg.Scheduler.DriftTolerance)
}
