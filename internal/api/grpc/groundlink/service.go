package groundlink

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "obc.v1.GroundLink"

// Full method names.
const (
	uplinkMethod   = "/" + ServiceName + "/Uplink"
	downlinkMethod = "/" + ServiceName + "/Downlink"
)

// GroundLinkServer is the server API of the ground link.
type GroundLinkServer interface {
	// Uplink accepts a batch of command frames.
	Uplink(ctx context.Context, frames *wrapperspb.BytesValue) (*emptypb.Empty, error)
	// Downlink streams response frames until the client goes away.
	Downlink(req *emptypb.Empty, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
}

// GroundLinkClient is the client API of the ground link.
type GroundLinkClient interface {
	Uplink(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Downlink(
		ctx context.Context,
		in *emptypb.Empty,
		opts ...grpc.CallOption,
	) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error)
}

// ServiceDesc describes the GroundLink service for grpc.Server.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GroundLinkServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Uplink",
			Handler:    uplinkHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Downlink",
			Handler:       downlinkHandler,
			ServerStreams: true,
		},
	},
	Metadata: "obc/v1/ground_link.proto",
}

// RegisterGroundLinkServer attaches srv to s.
func RegisterGroundLinkServer(s grpc.ServiceRegistrar, srv GroundLinkServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func uplinkHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(GroundLinkServer).Uplink(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: uplinkMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GroundLinkServer).Uplink(ctx, req.(*wrapperspb.BytesValue)) //nolint:forcetypeassert // As above.
	}

	return interceptor(ctx, in, info, handler)
}

func downlinkHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(GroundLinkServer).Downlink( //nolint:forcetypeassert // Guaranteed by HandlerType.
		in,
		&grpc.GenericServerStream[emptypb.Empty, wrapperspb.BytesValue]{ServerStream: stream},
	)
}

type groundLinkClient struct {
	cc grpc.ClientConnInterface
}

// NewGroundLinkClient creates a client stub on cc.
func NewGroundLinkClient(cc grpc.ClientConnInterface) GroundLinkClient {
	return &groundLinkClient{cc: cc}
}

func (c *groundLinkClient) Uplink(
	ctx context.Context,
	in *wrapperspb.BytesValue,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, uplinkMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *groundLinkClient) Downlink(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], downlinkMethod, opts...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[emptypb.Empty, wrapperspb.BytesValue]{ClientStream: stream}
	if err = x.SendMsg(in); err != nil {
		return nil, err
	}

	if err = x.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}
