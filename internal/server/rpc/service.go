package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Unary adapts a typed handler into a grpc.MethodDesc of service.
//
// Example:
//
//	rpc.Unary("campusmatch.explore.v1.ExploreService", "RecordSwipe", svc.RecordSwipe)
func Unary[Req, Resp any](service, method string, h func(context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return h(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return h(ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc builds a descriptor for a service made of unary methods.
// handlerType is a pointer to the interface the implementation satisfies.
func ServiceDesc(name string, handlerType any, methods ...grpc.MethodDesc) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: name,
		HandlerType: handlerType,
		Methods:     methods,
		Streams:     []grpc.StreamDesc{},
		Metadata:    name,
	}
}

// Invoke calls a unary method with the JSON codec.
func Invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, req any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append(opts, CallOption())
	if err := cc.Invoke(ctx, "/"+service+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
