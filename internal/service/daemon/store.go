package daemon

import (
	"context"
	"fmt"

	"github.com/oshokin/obc-alarm/internal/config"
	"github.com/oshokin/obc-alarm/internal/logger"
	"github.com/oshokin/obc-alarm/internal/repository/alarms"
	"github.com/oshokin/obc-alarm/internal/service/commands"
	"github.com/oshokin/obc-alarm/internal/service/housekeeping"
)

// openStore opens the configured alarm repository. It returns a nil
// repository when persistence is disabled.
func openStore(ctx context.Context, settings *config.AlarmStore, capacity int) (alarms.Repository, error) {
	var (
		repo alarms.Repository
		err  error
	)

	switch settings.Driver {
	case config.StoreNone:
		logger.Warn(ctx, "Alarm persistence disabled, pending alarms will not survive a restart")

		return nil, nil //nolint:nilnil // No store is a valid configuration.
	case config.StoreSQLite:
		repo, err = alarms.OpenSQLite(ctx, settings.Path, capacity)
	default:
		repo, err = alarms.OpenFile(settings.Path, capacity)
	}

	if err != nil {
		return nil, fmt.Errorf("open %s alarm store: %w", settings.Driver, err)
	}

	logger.InfoKV(ctx, "Alarm store opened", "driver", settings.Driver, "path", settings.Path, "slots", capacity)

	return repo, nil
}

// binder resolves restored records against the registered housekeeping jobs
// and the command dispatch table.
type binder struct {
	*housekeeping.Planner
	*commands.Manager
}

var _ alarms.Binder = binder{}
