package netrpc

import (
	"encoding/json"
	"fmt"
)

// CodecName is the content-subtype both sides of every enclave RPC use.
const CodecName = "enclave-json"

// jsonCodec is the gRPC message codec: the packet structs are plain Go
// structs rather than generated protobufs, so marshalling goes through
// encoding/json instead of proto.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("netrpc: decoding %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return CodecName }
