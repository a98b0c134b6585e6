package groundlink

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/obc-alarm/internal/domain/command"
	"github.com/oshokin/obc-alarm/internal/logger"
)

// Uplinker accepts decoded commands.
type Uplinker interface {
	Enqueue(msg command.Message) error
}

// Server implements GroundLinkServer.
type Server struct {
	// uplinker receives decoded commands.
	uplinker Uplinker
	// hub feeds downlink streams.
	hub *Hub
}

var _ GroundLinkServer = (*Server)(nil)

// NewServer creates a ground link server.
func NewServer(uplinker Uplinker, hub *Hub) *Server {
	return &Server{
		uplinker: uplinker,
		hub:      hub,
	}
}

// Uplink decodes the batch and queues every command in order. The whole
// batch is rejected when a frame is malformed; a full command queue stops
// the batch at the first command that did not fit.
func (s *Server) Uplink(ctx context.Context, frames *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	if frames == nil || len(frames.GetValue()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "uplink frame is required")
	}

	msgs, err := command.DecodeBatch(frames.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode uplink: %v", err)
	}

	for i := range msgs {
		if err = s.uplinker.Enqueue(msgs[i]); err != nil {
			logger.WarnKV(ctx, "Uplink batch truncated", "accepted", i, "total", len(msgs), "error", err)

			return nil, status.Errorf(codes.Unavailable, "queue command %d of %d: %v", i+1, len(msgs), err)
		}
	}

	logger.DebugKV(ctx, "Uplink accepted", "commands", len(msgs))

	return new(emptypb.Empty), nil
}

// Downlink streams response frames until the client disconnects or the hub
// is closed.
func (s *Server) Downlink(_ *emptypb.Empty, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	ctx := stream.Context()

	frames, cancel := s.hub.Subscribe()
	defer cancel()

	logger.Info(ctx, "Ground station connected to downlink")

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Ground station left downlink")

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return status.Error(codes.DeadlineExceeded, "downlink deadline exceeded")
			}

			return nil
		case <-s.hub.Done():
			return status.Error(codes.Unavailable, "onboard computer shutting down")
		case frame := <-frames:
			if err := stream.Send(wrapperspb.Bytes(frame)); err != nil {
				return err
			}
		}
	}
}
