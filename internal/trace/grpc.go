package trace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor continues the caller's trace and logs each call at debug level.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := startRPC(ctx, info.FullMethod)
		resp, err := handler(ctx, req)
		endRPC(ctx, span, err)
		return resp, err
	}
}

// StreamServerInterceptor does the same for streaming calls such as Health.Watch.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, span := startRPC(ss.Context(), info.FullMethod)
		err := handler(srv, &tracedStream{ServerStream: ss, ctx: ctx})
		endRPC(ctx, span, err)
		return err
	}
}

// UnaryClientInterceptor propagates the caller's trace to the server.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(outgoing(ctx), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor propagates the caller's trace on streaming calls.
func StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(outgoing(ctx), desc, cc, method, opts...)
	}
}

func outgoing(ctx context.Context) context.Context {
	tc, ok := FromContext(ctx)
	if !ok {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, TraceIDKey, tc.TraceID, SpanIDKey, tc.SpanID)
}

func startRPC(ctx context.Context, method string) (context.Context, *Span) {
	ctx = WithContext(ctx, FromMap(incoming(ctx)))
	ctx, span := StartSpan(ctx, method)
	return ctx, span
}

func endRPC(ctx context.Context, span *Span, err error) {
	span.End()
	span.SetAttr("code", status.Code(err).String())
	if err != nil {
		span.SetError(err)
	}
	Logger(ctx).Debug("grpc call", "span", span)
}

// incoming flattens the first value of each trace key from incoming metadata.
func incoming(ctx context.Context) map[string]string {
	out := map[string]string{}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return out
	}
	for _, k := range []string{TraceIDKey, SpanIDKey} {
		if v := md.Get(k); len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context { return s.ctx }
