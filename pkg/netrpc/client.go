package netrpc

import (
	"context"

	"google.golang.org/grpc"
)

// Client is a protocol-surface client for one peer.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a peer's protocol listener. Extra opts come from
// config.GrpcOptions; transport security defaults to insecure, matching
// the teacher's intra-group connections (TLS is layered in via opts when
// configured).
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	all := append([]grpc.DialOption{
		grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, opts...)
	conn, err := grpc.Dial(addr, all...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// SubmitEvent pushes one wire-encoded event to the peer.
func (c *Client) SubmitEvent(ctx context.Context, in *EventPacket) (*SubmitReply, error) {
	out := new(SubmitReply)
	if err := c.conn.Invoke(ctx, "/"+protocolServiceName+"/SubmitEvent", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SyncSince pulls the peer's events after an HLC cursor.
func (c *Client) SyncSince(ctx context.Context, in *SyncQuery) (*EventBatch, error) {
	out := new(EventBatch)
	if err := c.conn.Invoke(ctx, "/"+protocolServiceName+"/SyncSince", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close tears down the connection.
func (c *Client) Close() error { return c.conn.Close() }
