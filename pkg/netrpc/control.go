package netrpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
)

// ControlServer is the localhost-only service backing the CLI: liveness,
// status for `nodes ps`, and graceful shutdown for `nodes stop`.
type ControlServer interface {
	PingPong(ctx context.Context, in *Ping) (*Pong, error)
	Status(ctx context.Context, in *StatusRequest) (*StatusReply, error)
	Shutdown(ctx context.Context, in *ShutdownRequest) (*ShutdownReply, error)
}

const controlServiceName = "enclave.Control"

func _Control_PingPong_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Ping)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).PingPong(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + controlServiceName + "/PingPong"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).PingPong(ctx, req.(*Ping))
	})
}

func _Control_Status_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + controlServiceName + "/Status"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).Status(ctx, req.(*StatusRequest))
	})
}

func _Control_Shutdown_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ShutdownRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Shutdown(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + controlServiceName + "/Shutdown"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).Shutdown(ctx, req.(*ShutdownRequest))
	})
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: controlServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PingPong", Handler: _Control_PingPong_Handler},
		{MethodName: "Status", Handler: _Control_Status_Handler},
		{MethodName: "Shutdown", Handler: _Control_Shutdown_Handler},
	},
	Metadata: "enclave/control",
}

func controlListenAddr(port string) string { return "127.0.0.1:" + port }

// ControlListener serves the control surface on the loopback control port.
type ControlListener struct {
	log elog.Logger
	srv *grpc.Server
	lis net.Listener
}

// NewControlListener binds the loopback control port for svc.
func NewControlListener(log elog.Logger, port string, svc ControlServer) (*ControlListener, error) {
	lis, err := net.Listen("tcp", controlListenAddr(port))
	if err != nil {
		return nil, err
	}
	srv := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	srv.RegisterService(&controlServiceDesc, svc)
	return &ControlListener{log: log, srv: srv, lis: lis}, nil
}

// Addr returns the bound loopback address.
func (l *ControlListener) Addr() string { return l.lis.Addr().String() }

// Start serves until Stop; it blocks, so run it on its own goroutine.
func (l *ControlListener) Start() {
	if err := l.srv.Serve(l.lis); err != nil {
		l.log.Errorw("netrpc: control listener stopped", "err", err)
	}
}

// Stop closes the control surface immediately.
func (l *ControlListener) Stop() { l.srv.Stop() }

// ControlClient issues control commands to a daemon on this machine.
type ControlClient struct {
	conn *grpc.ClientConn
}

// NewControlClient connects to the local daemon's control port.
func NewControlClient(port string) (*ControlClient, error) {
	return DialControl(controlListenAddr(port))
}

// DialControl connects to an explicit control address, used when the
// daemon was bound to an ephemeral port.
func DialControl(addr string) (*ControlClient, error) {
	conn, err := grpc.Dial(addr,
		grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	if err != nil {
		return nil, err
	}
	return &ControlClient{conn: conn}, nil
}

// Ping checks the daemon is up.
func (c *ControlClient) Ping(ctx context.Context) (*Pong, error) {
	out := new(Pong)
	if err := c.conn.Invoke(ctx, "/"+controlServiceName+"/PingPong", new(Ping), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status fetches the daemon's state for `nodes ps`.
func (c *ControlClient) Status(ctx context.Context) (*StatusReply, error) {
	out := new(StatusReply)
	if err := c.conn.Invoke(ctx, "/"+controlServiceName+"/Status", new(StatusRequest), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Shutdown asks the daemon to stop gracefully.
func (c *ControlClient) Shutdown(ctx context.Context) error {
	return c.conn.Invoke(ctx, "/"+controlServiceName+"/Shutdown", new(ShutdownRequest), new(ShutdownReply))
}

// Close tears down the control connection.
func (c *ControlClient) Close() error { return c.conn.Close() }
