// Package netrpc is the node's gRPC surface: the peer-to-peer protocol
// service carrying enclave events, and the localhost control service
// backing the CLI subcommands. Service descriptors are hand-written over a
// JSON codec; the packet structs below are the full wire vocabulary.
package netrpc

// EventPacket carries one wire-encoded event (events.EncodeEvent output).
type EventPacket struct {
	Wire []byte `json:"wire"`
}

// SubmitReply reports the sequencing outcome for a submitted event. Seq is
// the receiver's local sequence number, which differs across nodes; only
// EventId is globally meaningful.
type SubmitReply struct {
	EventId string `json:"event_id"`
	Seq     uint64 `json:"seq"`
}

// SyncQuery asks a peer for every event after an HLC cursor (spec §4.8's
// since-cursor query).
type SyncQuery struct {
	SinceWall  uint64 `json:"since_wall"`
	SinceLogic uint64 `json:"since_logic"`
}

// EventBatch is a page of wire-encoded events, in the sender's seq order.
type EventBatch struct {
	Events [][]byte `json:"events"`
}

// Ping checks liveness over the control port.
type Ping struct{}

// Pong answers a Ping.
type Pong struct {
	LastSeq uint64 `json:"last_seq"`
}

// StatusRequest asks the daemon for its current state.
type StatusRequest struct{}

// StatusReply summarizes the daemon for `enclave nodes ps`.
type StatusReply struct {
	LastSeq uint64 `json:"last_seq"`
	Armed   bool   `json:"armed"` // effects enabled after sync
	Chains  []uint64 `json:"chains"`
}

// ShutdownRequest asks the daemon to stop gracefully.
type ShutdownRequest struct{}

// ShutdownReply acknowledges a shutdown request.
type ShutdownReply struct{}
