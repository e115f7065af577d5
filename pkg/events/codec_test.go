package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/hlc"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id := E3id{ChainID: 1, ID: "7"}
	original := Event{
		Id:          EventId{9},
		Ts:          hlc.Timestamp{Wall: 100, Logic: 1},
		Seq:         42,
		OriginId:    EventId{9},
		CausationId: ZeroEventId,
		Payload: E3Requested{
			scopedE3id: scopedE3id{id},
			Seed:       Seed{1, 2, 3},
			ThresholdM: 3,
			ThresholdN: 5,
			Params:     []byte("bfv-512"),
		},
	}

	wire, err := EncodeEvent(original)
	require.NoError(t, err)

	decoded, err := DecodeEvent(wire)
	require.NoError(t, err)

	require.Equal(t, original.Id, decoded.Id)
	require.Equal(t, original.Seq, decoded.Seq)
	require.Equal(t, original.Ts, decoded.Ts)

	got, ok := decoded.Payload.(*E3Requested)
	require.True(t, ok)
	want := original.Payload.(E3Requested)
	require.Equal(t, want.Id, got.Id)
	require.Equal(t, want.Seed, got.Seed)
	require.Equal(t, want.ThresholdM, got.ThresholdM)
	require.Equal(t, want.Params, got.Params)
}

func TestDecodeUnknownKindFails(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"kind":"NotAKind","payload":{}}`))
	require.Error(t, err)
}
