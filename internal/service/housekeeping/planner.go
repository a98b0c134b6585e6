package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/oshokin/obc-alarm/internal/clock"
	"github.com/oshokin/obc-alarm/internal/domain/alarm"
	"github.com/oshokin/obc-alarm/internal/logger"
)

// Submitter accepts alarms.
type Submitter interface {
	SubmitAlarm(ctx context.Context, e alarm.Entry, timeout time.Duration) error
}

var (
	// ErrInvalidCron is returned for expressions gronx cannot parse.
	ErrInvalidCron = errors.New("invalid cron expression")
	// errDuplicateJob is returned when a job name is registered twice.
	errDuplicateJob = errors.New("job already registered")
	// errEmptyName is returned for jobs without a name.
	errEmptyName = errors.New("job name must not be empty")
)

// job is a registered recurring action.
type job struct {
	name string
	cron string
	run  func(ctx context.Context) error
}

// Planner turns cron jobs into default alarms.
type Planner struct {
	submitter   Submitter
	clock       clock.Clock
	sendTimeout time.Duration

	// mu guards jobs, which may be read from the scheduler goroutine.
	mu   sync.RWMutex
	jobs map[string]*job
}

// NewPlanner creates a planner that submits to s using c as the time source.
func NewPlanner(s Submitter, c clock.Clock, sendTimeout time.Duration) *Planner {
	return &Planner{
		submitter:   s,
		clock:       c,
		sendTimeout: sendTimeout,
		jobs:        make(map[string]*job),
	}
}

// Register adds a job. It does not plan it; call Start.
func (p *Planner) Register(name, expr string, run func(ctx context.Context) error) error {
	if name == "" {
		return errEmptyName
	}

	if !gronx.IsValid(expr) {
		return fmt.Errorf("%w: %q", ErrInvalidCron, expr)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.jobs[name]; ok {
		return fmt.Errorf("%w: %s", errDuplicateJob, name)
	}

	p.jobs[name] = &job{name: name, cron: expr, run: run}

	return nil
}

// Start plans the next occurrence of every job except those already pending,
// for example because they were restored from storage.
func (p *Planner) Start(ctx context.Context, pending map[string]bool) error {
	ctx = logger.WithName(ctx, "housekeeping")

	p.mu.RLock()
	jobs := make([]*job, 0, len(p.jobs))

	for name, j := range p.jobs {
		if !pending[name] {
			jobs = append(jobs, j)
		}
	}
	p.mu.RUnlock()

	var errs []error

	for _, j := range jobs {
		if err := p.plan(ctx, j, p.clock.Now()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// BindDefault re-attaches a restored alarm to its job.
func (p *Planner) BindDefault(name string, triggerTime uint32) (func(ctx context.Context) error, bool) {
	p.mu.RLock()
	j, ok := p.jobs[name]
	p.mu.RUnlock()

	if !ok {
		return nil, false
	}

	return p.action(j, triggerTime), true
}

// NextAfter returns the first tick of expr strictly after unix.
func NextAfter(expr string, unix uint32) (uint32, error) {
	next, err := gronx.NextTickAfter(expr, time.Unix(int64(unix), 0).UTC(), false)
	if err != nil {
		return 0, fmt.Errorf("next tick of %q: %w", expr, err)
	}

	return clock.FromTime(next), nil
}

// plan submits the first occurrence of j after the later of from and now.
func (p *Planner) plan(ctx context.Context, j *job, from uint32) error {
	next, err := NextAfter(j.cron, max(from, p.clock.Now()))
	if err != nil {
		return err
	}

	entry := alarm.NewDefault(next, j.name, p.action(j, next))
	if err = p.submitter.SubmitAlarm(ctx, entry, p.sendTimeout); err != nil {
		return fmt.Errorf("plan %s: %w", j.name, err)
	}

	logger.DebugKV(ctx, "Housekeeping job planned", "job", j.name, "trigger_time", next, "alarm_id", entry.ID)

	return nil
}

// action runs j and plans its next occurrence after triggerTime, so an alarm
// fired within the drift tolerance does not plan the same tick again.
func (p *Planner) action(j *job, triggerTime uint32) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		runErr := j.run(ctx)

		if err := p.plan(ctx, j, triggerTime); err != nil {
			logger.ErrorKV(ctx, "Failed to plan housekeeping job", "job", j.name, "error", err)

			return errors.Join(runErr, err)
		}

		return runErr
	}
}
