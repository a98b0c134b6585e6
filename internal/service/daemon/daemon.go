package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/oshokin/obc-alarm/internal/api/grpc/groundlink"
	"github.com/oshokin/obc-alarm/internal/config"
	"github.com/oshokin/obc-alarm/internal/domain/alarm"
	"github.com/oshokin/obc-alarm/internal/logger"
	"github.com/oshokin/obc-alarm/internal/repository/alarms"
	"github.com/oshokin/obc-alarm/internal/scheduler"
	"github.com/oshokin/obc-alarm/internal/service/commands"
	"github.com/oshokin/obc-alarm/internal/service/housekeeping"
	"github.com/oshokin/obc-alarm/internal/version"
)

// Options controls the obc-alarmd process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the ground link listen address.
	ListenAddress string
}

var (
	// ErrResetRequested is returned by Run after an exec_obc_reset command.
	ErrResetRequested = errors.New("obc reset requested")
	// ErrNoGroundLinkAddress indicates missing ground link configuration.
	ErrNoGroundLinkAddress = errors.New("no ground link address configured")
	// errUnknownJob is returned for housekeeping jobs without an implementation.
	errUnknownJob = errors.New("unknown housekeeping job")
)

// Run starts every onboard task and blocks until ctx is canceled, a task
// fails or the ground requests a reset.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "obc-alarmd")

	// Load configuration first to get every other setting.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	level, _ := logger.ParseLogLevel(settings.LogLevel)
	logger.SetLevel(level)

	logger.InfoKV(ctx, "Alarm daemon starting", version.Fields()...)

	// Determine listen address: CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.GroundLinkAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	// Refuse to run twice against the same RTC and store.
	release, err := acquirePIDFile(ctx, settings.PIDFile)
	if err != nil {
		return err
	}
	defer release()

	// Open the RTC and start the software clock from it.
	hw, err := openHardware(ctx, &settings.RTC)
	if err != nil {
		return fmt.Errorf("open rtc: %w", err)
	}

	defer func() {
		if closeErr := hw.close(); closeErr != nil {
			logger.ErrorKV(ctx, "Failed to close RTC bus", "error", closeErr)
		}
	}()

	// Open the alarm store that backs the queue slots.
	repo, err := openStore(ctx, &settings.AlarmStore, settings.Scheduler.QueueCapacity)
	if err != nil {
		return err
	}

	var journal *alarms.Journal

	if repo != nil {
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				logger.ErrorKV(ctx, "Failed to close alarm store", "error", closeErr)
			}
		}()

		journal = alarms.NewJournal(repo)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	svc, err := assemble(ctx, settings, hw, journal, cancel)
	if err != nil {
		return err
	}

	// Setup TCP listener for the ground link.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer()
	groundlink.RegisterGroundLinkServer(grpcServer, groundlink.NewServer(svc.manager, svc.hub))

	var group taskGroup

	group.cancel = cancel

	group.Go(ctx, "timekeeper", hw.timekeeper.Run)
	group.Go(ctx, "scheduler", svc.scheduler.Run)
	group.Go(ctx, "command-manager", svc.manager.Run)
	group.Go(ctx, "rtc-interrupt", func(ctx context.Context) error {
		return hw.interrupts(ctx, svc.scheduler.OnHardwareAlarmEdge)
	})
	group.Go(ctx, "ground-link", func(context.Context) error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	// Plan housekeeping once the scheduler is consuming its mailbox.
	if err = svc.planner.Start(ctx, svc.restoredJobs); err != nil {
		logger.ErrorKV(ctx, "Failed to plan housekeeping jobs", "error", err)
	}

	logger.InfoKV(ctx, "Alarm daemon running",
		"listen_address", listenAddress,
		"rtc", settings.RTC.Driver,
		"alarm_store", settings.AlarmStore.Driver,
		"queue_capacity", svc.scheduler.Capacity(),
		"pending_alarms", svc.scheduler.PendingCount())

	<-ctx.Done()

	logger.Info(ctx, "Shutting down ground link")
	svc.hub.Close()
	grpcServer.GracefulStop()
	group.Wait()

	cause := context.Cause(ctx)

	switch {
	case errors.Is(cause, ErrResetRequested):
		logger.Warn(ctx, "Alarm daemon stopped for OBC reset")

		return ErrResetRequested
	case errors.Is(cause, errTaskFailed):
		return cause
	default:
		logger.Info(ctx, "Alarm daemon stopped")

		return nil
	}
}

// services are the long-lived components of the daemon.
type services struct {
	hub       *groundlink.Hub
	scheduler *scheduler.Scheduler
	manager   *commands.Manager
	planner   *housekeeping.Planner
	// restoredJobs names the housekeeping jobs already pending after restore.
	restoredJobs map[string]bool
}

// assemble builds the services and restores pending alarms from journal.
func assemble(
	ctx context.Context,
	settings *config.Config,
	hw *hardware,
	journal *alarms.Journal,
	cancel context.CancelCauseFunc,
) (*services, error) {
	hub := groundlink.NewHub()

	schedulerOptions := &scheduler.Options{
		QueueCapacity:   settings.Scheduler.QueueCapacity,
		MailboxLength:   settings.Scheduler.MailboxLength,
		DriftTolerance:  settings.Scheduler.DriftTolerance,
		ReceiveTimeout:  settings.Scheduler.ReceiveTimeout,
		RearmAfterDrain: settings.Scheduler.RearmAfterDrain,
		RTC:             hw.device,
		Clock:           hw.timekeeper,
		Downlinker:      hub,
	}

	// Keep the interface nil when persistence is disabled.
	if journal != nil {
		schedulerOptions.Journal = journal
	}

	sched, err := scheduler.New(schedulerOptions)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	manager, err := commands.New(&commands.Options{
		Scheduler:   sched,
		Clock:       hw.timekeeper,
		RTC:         hw.setter,
		Downlinker:  hub,
		SendTimeout: settings.Scheduler.SendTimeout,
		Reset: func(ctx context.Context) error {
			logger.Warn(ctx, "OBC reset requested by ground")
			cancel(ErrResetRequested)

			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create command manager: %w", err)
	}

	planner := housekeeping.NewPlanner(sched, hw.timekeeper, settings.Scheduler.SendTimeout)

	if len(settings.Housekeeping) > 0 && !settings.Scheduler.RearmAfterDrain {
		logger.WarnKV(ctx, "Housekeeping jobs queued behind the armed alarm stall once it fires, "+
			"set scheduler.rearm_after_drain",
			"jobs", len(settings.Housekeeping))
	}

	for _, job := range settings.Housekeeping {
		run, err := jobAction(job.Name, hw, sched, settings.Scheduler.DriftTolerance)
		if err != nil {
			return nil, err
		}

		if err = planner.Register(job.Name, job.Cron, run); err != nil {
			return nil, fmt.Errorf("register housekeeping job: %w", err)
		}
	}

	restored := make(map[string]bool)

	if journal != nil {
		entries, err := journal.Restore(ctx, hw.timekeeper.Now(), binder{Planner: planner, Manager: manager})
		if err != nil {
			return nil, fmt.Errorf("restore alarms: %w", err)
		}

		if err = sched.Restore(entries); err != nil {
			return nil, fmt.Errorf("restore alarms: %w", err)
		}

		for i := range entries {
			if action, ok := entries[i].Action.(alarm.DefaultAction); ok {
				restored[action.Name] = true
			}
		}
	}

	return &services{
		hub:          hub,
		scheduler:    sched,
		manager:      manager,
		planner:      planner,
		restoredJobs: restored,
	}, nil
}

// jobAction returns the implementation of a housekeeping job.
func jobAction(
	name string,
	hw *hardware,
	sched *scheduler.Scheduler,
	tolerance time.Duration,
) (func(ctx context.Context) error, error) {
	switch name {
	case housekeeping.JobHeartbeat:
		return housekeeping.Heartbeat(hw.timekeeper, sched.PendingCount), nil
	case housekeeping.JobClockDiscipline:
		return housekeeping.ClockDiscipline(hw.calendar, hw.timekeeper, uint32(tolerance/time.Second)), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownJob, name)
	}
}

// resolveListenAddress determines the listen address for the ground link.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoGroundLinkAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid ground link address format %q: %w", configAddr, err)
	}

	// Bind on all interfaces.
	return ":" + port, nil
}

// errTaskFailed wraps the error of the first task that stopped the daemon.
var errTaskFailed = errors.New("task failed")

// taskGroup runs the daemon tasks. The first failure cancels the rest.
type taskGroup struct {
	wg     sync.WaitGroup
	cancel context.CancelCauseFunc
}

// Go starts fn on its own goroutine.
func (g *taskGroup) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	g.wg.Go(func() {
		if err := fn(ctx); err != nil {
			logger.ErrorKV(ctx, "Task stopped", "task", name, "error", err)
			g.cancel(fmt.Errorf("%w: %s: %w", errTaskFailed, name, err))
		}
	})
}

// Wait blocks until every task returned.
func (g *taskGroup) Wait() {
	g.wg.Wait()
}
