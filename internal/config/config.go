package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/obc-alarm/internal/logger"
	"github.com/oshokin/obc-alarm/internal/scheduler"
)

// Config holds the settings shared by the daemon and the ground CLI.
type Config struct {
	// GroundLinkAddress is the gRPC address of the ground link.
	GroundLinkAddress string `yaml:"ground_link_addr"`
	// Timeout is the duration for ground link calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the initial log level.
	LogLevel string `yaml:"log_level"`
	// PIDFile guards against a second daemon instance.
	PIDFile string `yaml:"pid_file"`
	// AlarmStore selects where pending alarms survive a reset.
	AlarmStore AlarmStore `yaml:"alarm_store"`
	// Scheduler tunes the alarm scheduler.
	Scheduler Scheduler `yaml:"scheduler"`
	// RTC selects the real-time clock.
	RTC RTC `yaml:"rtc"`
	// Housekeeping lists the recurring jobs to plan.
	Housekeeping []Job `yaml:"housekeeping"`
}

// AlarmStore configures alarm persistence.
type AlarmStore struct {
	// Driver is one of StoreFile, StoreSQLite or StoreNone.
	Driver string `yaml:"driver"`
	// Path is the image file or database location.
	Path string `yaml:"path"`
}

// Scheduler configures the alarm scheduler.
type Scheduler struct {
	// QueueCapacity is the number of alarm slots, at most scheduler.MaxQueueCapacity.
	QueueCapacity int `yaml:"queue_capacity"`
	// MailboxLength is the number of events the scheduler mailbox holds.
	MailboxLength int `yaml:"mailbox_length"`
	// DriftTolerance is how far the clock may lag a hardware fire. Whole seconds only.
	DriftTolerance time.Duration `yaml:"drift_tolerance"`
	// ReceiveTimeout bounds each mailbox wait of the scheduler.
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
	// SendTimeout bounds each alarm submission.
	SendTimeout time.Duration `yaml:"send_timeout"`
	// RearmAfterDrain programs the next entry after every firing pass.
	// Enable it when housekeeping jobs are configured: without it a job
	// queued behind the current head is never programmed once the head fires.
	RearmAfterDrain bool `yaml:"rearm_after_drain"`
}

// RTC configures the real-time clock.
type RTC struct {
	// Driver is RTCSimulated or RTCDS3232.
	Driver string `yaml:"driver"`
	// I2CDevice is the Linux i2c-dev node of the DS3232.
	I2CDevice string `yaml:"i2c_device"`
	// PollInterval is how often the alarm flag is sampled.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Job is a housekeeping job and its cron expression.
type Job struct {
	// Name selects the job and must be unique.
	Name string `yaml:"name"`
	// Cron is the cron expression of the job's fire times.
	Cron string `yaml:"cron"`
}

// Alarm store drivers.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreNone   = "none"
)

// RTC drivers.
const (
	RTCSimulated = "sim"
	RTCDS3232    = "ds3232"
)

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "obc-alarm-settings.yaml"
	// DefaultTimeout is the default duration for ground link calls.
	DefaultTimeout = 5 * time.Second
	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultFileStorePath is the default FRAM image location.
	DefaultFileStorePath = "obc-alarms.fram"
	// DefaultSQLiteStorePath is the default database location.
	DefaultSQLiteStorePath = "obc-alarms.db"
	// DefaultPIDFile is the default daemon PID file.
	DefaultPIDFile = "obc-alarmd.pid"

	// DefaultI2CDevice is the default i2c-dev node.
	DefaultI2CDevice = "/dev/i2c-1"
	// DefaultPollInterval is the default alarm flag sampling period.
	DefaultPollInterval = 100 * time.Millisecond
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errGroundLinkRequired is returned when the ground link address is missing.
	errGroundLinkRequired = errors.New("ground link address must be provided")
	// errInvalidValue is returned for out-of-range settings.
	errInvalidValue = errors.New("invalid setting")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills in defaults.
func Validate(cfg *Config) error {
	if cfg.GroundLinkAddress == "" {
		return errGroundLinkRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.GroundLinkAddress); err != nil {
		return fmt.Errorf("invalid ground link address: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", errInvalidValue, cfg.LogLevel)
	}

	if cfg.PIDFile == "" {
		cfg.PIDFile = DefaultPIDFile
	}

	if err := validateStore(&cfg.AlarmStore); err != nil {
		return err
	}

	if err := validateScheduler(&cfg.Scheduler); err != nil {
		return err
	}

	if err := validateRTC(&cfg.RTC); err != nil {
		return err
	}

	return validateJobs(cfg.Housekeeping)
}

func validateStore(store *AlarmStore) error {
	switch store.Driver {
	case "", StoreFile:
		store.Driver = StoreFile
		if store.Path == "" {
			store.Path = DefaultFileStorePath
		}
	case StoreSQLite:
		if store.Path == "" {
			store.Path = DefaultSQLiteStorePath
		}
	case StoreNone:
	default:
		return fmt.Errorf("%w: alarm_store.driver %q", errInvalidValue, store.Driver)
	}

	return nil
}

func validateScheduler(s *Scheduler) error {
	if s.QueueCapacity == 0 {
		s.QueueCapacity = scheduler.MaxQueueCapacity
	}

	if s.QueueCapacity < 1 || s.QueueCapacity > scheduler.MaxQueueCapacity {
		return fmt.Errorf("%w: scheduler.queue_capacity must be 1-%d", errInvalidValue, scheduler.MaxQueueCapacity)
	}

	if s.MailboxLength <= 0 {
		s.MailboxLength = scheduler.DefaultMailboxLength
	}

	if s.DriftTolerance <= 0 {
		s.DriftTolerance = scheduler.DefaultDriftTolerance
	}

	if s.DriftTolerance%time.Second != 0 {
		return fmt.Errorf("%w: scheduler.drift_tolerance must be whole seconds", errInvalidValue)
	}

	if s.ReceiveTimeout <= 0 {
		s.ReceiveTimeout = scheduler.DefaultReceiveTimeout
	}

	if s.SendTimeout <= 0 {
		s.SendTimeout = scheduler.DefaultSendTimeout
	}

	return nil
}

func validateRTC(r *RTC) error {
	switch r.Driver {
	case "", RTCSimulated:
		r.Driver = RTCSimulated
	case RTCDS3232:
		if r.I2CDevice == "" {
			r.I2CDevice = DefaultI2CDevice
		}
	default:
		return fmt.Errorf("%w: rtc.driver %q", errInvalidValue, r.Driver)
	}

	if r.PollInterval <= 0 {
		r.PollInterval = DefaultPollInterval
	}

	return nil
}

func validateJobs(jobs []Job) error {
	seen := make(map[string]bool, len(jobs))

	for _, job := range jobs {
		if job.Name == "" {
			return fmt.Errorf("%w: housekeeping job without a name", errInvalidValue)
		}

		if seen[job.Name] {
			return fmt.Errorf("%w: housekeeping job %q listed twice", errInvalidValue, job.Name)
		}

		seen[job.Name] = true

		if !gronx.IsValid(job.Cron) {
			return fmt.Errorf("%w: housekeeping job %q cron %q", errInvalidValue, job.Name, job.Cron)
		}
	}

	return nil
}
