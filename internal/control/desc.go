package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "secureclip.v1.Control"

// Full method names, as used by the client.
const (
	methodToggle   = "/" + serviceName + "/Toggle"
	methodReveal   = "/" + serviceName + "/Reveal"
	methodRekey    = "/" + serviceName + "/Rekey"
	methodStatus   = "/" + serviceName + "/Status"
	methodShutdown = "/" + serviceName + "/Shutdown"
	methodWatch    = "/" + serviceName + "/Watch"
)

// ControlServer is the server API of secureclip.v1.Control.
type ControlServer interface {
	Toggle(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Reveal(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Rekey(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Watch(*wrapperspb.BoolValue, grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Toggle", Handler: unaryHandler(methodToggle, ControlServer.Toggle)},
		{MethodName: "Reveal", Handler: unaryHandler(methodReveal, ControlServer.Reveal)},
		{MethodName: "Rekey", Handler: unaryHandler(methodRekey, ControlServer.Rekey)},
		{MethodName: "Status", Handler: unaryHandler(methodStatus, ControlServer.Status)},
		{MethodName: "Shutdown", Handler: unaryHandler(methodShutdown, ControlServer.Shutdown)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "secureclip/v1/control.proto",
}

// unaryHandler adapts a ControlServer method taking an Empty request into
// a grpc.MethodHandler, honouring any server interceptor.
func unaryHandler[Resp proto.Message](
	fullMethod string,
	fn func(ControlServer, context.Context, *emptypb.Empty) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		cs := srv.(ControlServer)
		if interceptor == nil {
			return fn(cs, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return fn(cs, ctx, req.(*emptypb.Empty))
		})
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.BoolValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ControlServer).Watch(in, stream)
}
