package netrpc

import (
	"context"
	"net"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
)

// ProtocolServer is the peer-facing service: peers push events and pull
// since-cursor pages (spec §4.8).
type ProtocolServer interface {
	// SubmitEvent hands one wire-encoded event to the receiver's
	// sequencer. Submission is idempotent by EventId.
	SubmitEvent(ctx context.Context, in *EventPacket) (*SubmitReply, error)
	// SyncSince returns every local event after the given HLC cursor.
	SyncSince(ctx context.Context, in *SyncQuery) (*EventBatch, error)
}

const protocolServiceName = "enclave.Protocol"

func _Protocol_SubmitEvent_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(EventPacket)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProtocolServer).SubmitEvent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + protocolServiceName + "/SubmitEvent"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProtocolServer).SubmitEvent(ctx, req.(*EventPacket))
	})
}

func _Protocol_SyncSince_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SyncQuery)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProtocolServer).SyncSince(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + protocolServiceName + "/SyncSince"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProtocolServer).SyncSince(ctx, req.(*SyncQuery))
	})
}

var protocolServiceDesc = grpc.ServiceDesc{
	ServiceName: protocolServiceName,
	HandlerType: (*ProtocolServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitEvent", Handler: _Protocol_SubmitEvent_Handler},
		{MethodName: "SyncSince", Handler: _Protocol_SyncSince_Handler},
	},
	Metadata: "enclave/protocol",
}

// Listener serves the protocol surface on a TCP address.
type Listener struct {
	log  elog.Logger
	srv  *grpc.Server
	lis  net.Listener
}

// NewListener binds addr and registers svc behind the standard
// interceptor chain (prometheus instrumentation first, like the
// teacher's gRPC listener).
func NewListener(log elog.Logger, addr string, svc ProtocolServer) (*Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			grpc_prometheus.UnaryServerInterceptor,
		)),
	)
	srv.RegisterService(&protocolServiceDesc, svc)
	grpc_prometheus.Register(srv)
	return &Listener{log: log, srv: srv, lis: lis}, nil
}

// Addr returns the bound listen address.
func (l *Listener) Addr() string { return l.lis.Addr().String() }

// Start serves until Stop; it blocks, so run it on its own goroutine.
func (l *Listener) Start() {
	if err := l.srv.Serve(l.lis); err != nil {
		l.log.Errorw("netrpc: listener stopped", "err", err)
	}
}

// Stop drains in-flight RPCs and closes the listener.
func (l *Listener) Stop() { l.srv.GracefulStop() }
