package groundlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/obc-alarm/internal/domain/command"
)

// DefaultCallTimeout bounds unary calls when no option overrides it.
const DefaultCallTimeout = 5 * time.Second

// Client wraps the GroundLink stub with frame encoding.
type Client struct {
	// conn is the underlying gRPC connection to the onboard computer.
	conn *grpc.ClientConn
	// api is the GroundLink stub.
	api GroundLinkClient

	// callTimeout is the default timeout for unary calls.
	callTimeout time.Duration
	// dialOptions are appended to the transport defaults.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithDialOptions passes extra options to grpc.NewClient.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial creates a client for the ground link at address.
// Note: this uses insecure transport credentials; the link is expected to run
// over a trusted network or a TLS-terminating proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append(
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		client.dialOptions...,
	)

	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial ground link: %w", err)
	}

	client.conn = conn
	client.api = NewGroundLinkClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Uplink sends msgs as one batch.
func (c *Client) Uplink(ctx context.Context, msgs ...command.Message) error {
	payload, err := command.AppendBatch(nil, msgs...)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err = c.api.Uplink(callCtx, wrapperspb.Bytes(payload)); err != nil {
		return fmt.Errorf("uplink: %w", err)
	}

	return nil
}

// Downlink streams responses to fn until ctx is canceled, the server closes
// the stream or fn returns an error.
func (c *Client) Downlink(ctx context.Context, fn func(command.Response) error) error {
	stream, err := c.api.Downlink(ctx, new(emptypb.Empty))
	if err != nil {
		return fmt.Errorf("open downlink: %w", err)
	}

	for {
		frame, err := stream.Recv()

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("receive downlink: %w", err)
		}

		var resp command.Response
		if err = resp.UnmarshalBinary(frame.GetValue()); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}

		if err = fn(resp); err != nil {
			return err
		}
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
