package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/obc-alarm/internal/config"
	"github.com/oshokin/obc-alarm/internal/logger"
)

// ErrAlreadyRunning is returned when a live daemon owns the PID file.
var ErrAlreadyRunning = errors.New("daemon is already running")

// acquirePIDFile claims path for this process. A PID file naming a process
// that no longer exists, or one running a different executable, is stale and
// is taken over. The returned function removes the file.
func acquirePIDFile(ctx context.Context, path string) (func(), error) {
	path = filepath.Clean(path)

	owner, err := readPID(path)

	switch {
	case err == nil:
		if isSameDaemon(owner) {
			return nil, fmt.Errorf("%w: pid %d in %s", ErrAlreadyRunning, owner, path)
		}

		logger.WarnKV(ctx, "Taking over stale PID file", "path", path, "stale_pid", owner)
	case errors.Is(err, os.ErrNotExist):
	default:
		logger.WarnKV(ctx, "Ignoring unreadable PID file", "path", path, "error", err)
	}

	pid := os.Getpid()

	if err = os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), config.DefaultFilePermissions); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}

	logger.DebugKV(ctx, "PID file written", "path", path, "pid", pid)

	return func() {
		// Only remove the file while it still names this process.
		if current, err := readPID(path); err == nil && current == pid {
			_ = os.Remove(path)
		}
	}, nil
}

// readPID parses the process id stored at path.
func readPID(path string) (int, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}

	return pid, nil
}

// isSameDaemon reports whether pid is another live process running the same
// executable as this one.
func isSameDaemon(pid int) bool {
	self := os.Getpid()
	if pid == self || pid <= 0 {
		return false
	}

	other, err := ps.FindProcess(pid)
	if err != nil || other == nil {
		return false
	}

	me, err := ps.FindProcess(self)
	if err != nil || me == nil {
		// Without our own name any live process counts.
		return true
	}

	return other.Executable() == me.Executable()
}
