package ground

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/obc-alarm/internal/api/grpc/groundlink"
	"github.com/oshokin/obc-alarm/internal/config"
	"github.com/oshokin/obc-alarm/internal/domain/command"
	"github.com/oshokin/obc-alarm/internal/logger"
)

// defaultRetryInterval is the delay between uplink attempts while the
// onboard command queue is full.
const defaultRetryInterval = time.Second

// errStopStream ends a downlink session after the requested number of responses.
var errStopStream = errors.New("enough responses received")

// Options configures a ground session.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// Address overrides the ground link address from config when specified.
	Address string
	// Out receives printed responses. Defaults to stdout.
	Out io.Writer
}

// UplinkOptions configures Uplink.
type UplinkOptions struct {
	Options

	// Commands are sent as one batch.
	Commands []CommandInput
	// RetryInterval is the delay between attempts while the link is busy.
	RetryInterval time.Duration
}

// DownlinkOptions configures Downlink.
type DownlinkOptions struct {
	Options

	// Count stops the session after that many responses. Zero streams until canceled.
	Count int
}

// Uplink sends the commands and retries while the onboard queue is full.
func Uplink(ctx context.Context, opts *UplinkOptions) error {
	ctx = logger.WithName(ctx, "obc-ground")

	now := time.Now()
	msgs := make([]command.Message, 0, len(opts.Commands))

	for i := range opts.Commands {
		msg, err := BuildMessage(&opts.Commands[i], now)
		if err != nil {
			return fmt.Errorf("command %q: %w", opts.Commands[i].Name, err)
		}

		msgs = append(msgs, msg)
	}

	client, address, err := dial(ctx, &opts.Options)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	interval := opts.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}

	logger.InfoKV(ctx, "Uplinking commands", "ground_link_addr", address, "count", len(msgs))

	// attempt tries once to uplink the batch, returns (completed, error).
	attempt := func() (bool, error) {
		err := client.Uplink(ctx, msgs...)

		switch {
		case err == nil:
			logger.Info(ctx, "Commands accepted")

			return true, nil
		case status.Code(err) == codes.Unavailable:
			// Busy link or full queue, try again.
			logger.WarnKV(ctx, "Uplink rejected, retrying", "error", err)

			return false, nil
		default:
			return false, err
		}
	}

	if done, err := attempt(); err != nil || done {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := attempt()
			if err != nil || done {
				return err
			}
		}
	}
}

// Downlink prints command responses until ctx is canceled or Count
// responses were received.
func Downlink(ctx context.Context, opts *DownlinkOptions) error {
	ctx = logger.WithName(ctx, "obc-ground")

	client, address, err := dial(ctx, &opts.Options)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	logger.InfoKV(ctx, "Listening for downlink", "ground_link_addr", address)

	received := 0

	err = client.Downlink(ctx, func(resp command.Response) error {
		if _, err := fmt.Fprintln(out, FormatResponse(&resp)); err != nil {
			return fmt.Errorf("print response: %w", err)
		}

		received++
		if opts.Count > 0 && received >= opts.Count {
			return errStopStream
		}

		return nil
	})
	if errors.Is(err, errStopStream) {
		return nil
	}

	return err
}

// dial loads settings and connects to the ground link.
func dial(ctx context.Context, opts *Options) (*groundlink.Client, string, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, "", fmt.Errorf("load settings: %w", err)
	}

	address := settings.GroundLinkAddress
	if opts.Address != "" {
		address = opts.Address
	}

	client, err := groundlink.Dial(ctx, address, groundlink.WithCallTimeout(settings.Timeout))
	if err != nil {
		return nil, "", err
	}

	return client, address, nil
}
