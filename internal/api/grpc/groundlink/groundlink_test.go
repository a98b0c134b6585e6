package groundlink

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/obc-alarm/internal/domain/command"
	"github.com/oshokin/obc-alarm/internal/logger"
)

var errFull = errors.New("full")

// fakeUplinker records commands and accepts at most limit of them.
type fakeUplinker struct {
	mu    sync.Mutex
	msgs  []command.Message
	limit int
}

func (f *fakeUplinker) Enqueue(msg command.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.limit > 0 && len(f.msgs) == f.limit {
		return errFull
	}

	f.msgs = append(f.msgs, msg)

	return nil
}

func (f *fakeUplinker) all() []command.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]command.Message(nil), f.msgs...)
}

// TestServer_Uplink_Validation maps malformed input to InvalidArgument.
func TestServer_Uplink_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(new(fakeUplinker), NewHub())
	ctx := context.Background()

	_, err := s.Uplink(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Uplink(ctx, wrapperspb.Bytes([]byte{byte(command.Ping), 0, 0}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Uplink(ctx, wrapperspb.Bytes([]byte{99, 0, 0, 0, 0, 0, 0}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_Uplink_QueueFull reports Unavailable after the accepted prefix.
func TestServer_Uplink_QueueFull(t *testing.T) {
	t.Parallel()

	up := &fakeUplinker{limit: 1}
	s := NewServer(up, NewHub())

	payload, err := command.AppendBatch(nil, command.Message{ID: command.Ping}, command.Message{ID: command.DownlinkTelem})
	require.NoError(t, err)

	_, err = s.Uplink(context.Background(), wrapperspb.Bytes(payload))
	require.Equal(t, codes.Unavailable, status.Code(err))
	require.Len(t, up.all(), 1)
}

// TestHub_FanOut delivers to every subscriber and drops for slow ones.
func TestHub_FanOut(t *testing.T) {
	t.Parallel()

	h := NewHub()
	ctx := context.Background()
	resp := command.Response{ID: command.Ping, Code: command.ResponseSuccess}

	require.NoError(t, h.DownlinkCommandResponse(ctx, resp))

	fast, cancelFast := h.Subscribe()
	slow, cancelSlow := h.Subscribe()
	require.Equal(t, 2, h.Subscribers())

	for range subscriberBuffer + 5 {
		require.NoError(t, h.DownlinkCommandResponse(ctx, resp))

		<-fast
	}

	require.Len(t, slow, subscriberBuffer)

	cancelFast()
	cancelSlow()
	require.Zero(t, h.Subscribers())

	require.ErrorIs(t, h.DownlinkCommandResponse(ctx, command.Response{ID: 99}), command.ErrUnknownCommand)
}

// TestHub_NoSubscribers logs dropped error responses at warn level.
func TestHub_NoSubscribers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core).Sugar())
	h := NewHub()

	require.NoError(t, h.DownlinkCommandResponse(ctx, command.Response{ID: command.Ping, Code: command.ResponseSuccess}))
	require.NoError(t, h.DownlinkCommandResponse(ctx,
		command.Response{ID: command.MicroSDFormat, Code: command.ResponseError, Data: []byte{0xEE}}))

	quiet := logs.FilterMessage("No ground station connected, response dropped").All()
	require.Len(t, quiet, 1)
	require.Equal(t, zap.DebugLevel, quiet[0].Level)

	loud := logs.FilterMessage("No ground station connected, error response dropped").All()
	require.Len(t, loud, 1)
	require.Equal(t, zap.WarnLevel, loud[0].Level)
	require.Equal(t, command.MicroSDFormat.String(), loud[0].ContextMap()["command"])
}

// TestClient_EndToEnd runs uplink and downlink over an in-memory listener.
func TestClient_EndToEnd(t *testing.T) {
	t.Parallel()

	lis := bufconn.Listen(1 << 16)
	up := new(fakeUplinker)
	hub := NewHub()

	srv := grpc.NewServer()
	RegisterGroundLinkServer(srv, NewServer(up, hub))

	go func() { _ = srv.Serve(lis) }()

	t.Cleanup(srv.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, "passthrough:///bufnet",
		WithCallTimeout(time.Second),
		WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})))
	require.NoError(t, err)

	defer func() { _ = c.Close() }()

	msgs := []command.Message{
		{ID: command.Ping},
		{ID: command.Ping, IsTimeTagged: true, Timestamp: 1700000100},
	}
	require.NoError(t, c.Uplink(ctx, msgs...))
	require.Equal(t, msgs, up.all())

	got := make(chan command.Response, 1)
	streamCtx, stopStream := context.WithCancel(ctx)
	done := make(chan error, 1)

	go func() {
		done <- c.Downlink(streamCtx, func(resp command.Response) error {
			got <- resp

			return nil
		})
	}()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	want := command.Response{ID: command.Ping, Code: command.ResponseSuccess, Data: []byte{1, 2, 3, 4}}
	require.NoError(t, hub.DownlinkCommandResponse(ctx, want))
	require.Equal(t, want, <-got)

	stopStream()
	require.NoError(t, <-done)
}

// TestHub_CloseEndsStreams checks that closing the hub releases open downlinks.
func TestHub_CloseEndsStreams(t *testing.T) {
	t.Parallel()

	lis := bufconn.Listen(1 << 16)
	hub := NewHub()

	srv := grpc.NewServer()
	RegisterGroundLinkServer(srv, NewServer(new(fakeUplinker), hub))

	go func() { _ = srv.Serve(lis) }()

	t.Cleanup(srv.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, "passthrough:///bufnet",
		WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})))
	require.NoError(t, err)

	defer func() { _ = c.Close() }()

	done := make(chan error, 1)

	go func() {
		done <- c.Downlink(ctx, func(command.Response) error { return nil })
	}()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	hub.Close()
	hub.Close()

	err = <-done
	require.Equal(t, codes.Unavailable, status.Code(err))
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

// TestDial_ValidatesAddress rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.ErrorIs(t, err, errAddressRequired)
	require.Nil(t, c)
}
