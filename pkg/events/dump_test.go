package events

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/hlc"
)

func TestDumpEventsRendersHexPayloads(t *testing.T) {
	req := E3Requested{Seed: Seed{0xab, 0xcd}, ThresholdM: 2, ThresholdN: 3, Params: []byte{0xde, 0xad}}
	req.Id = E3id{ChainID: 1, ID: "7"}
	u := Unsequenced{Payload: req}
	ev := Seal(u, u.Id(), 42, hlc.Timestamp{Wall: 100, Logic: 1})

	out, err := DumpEvents([]Event{ev})
	require.NoError(t, err)

	s := string(out)
	require.Contains(t, s, `"kind":"E3Requested"`)
	require.Contains(t, s, `"e3_id":"1:7"`)
	require.Contains(t, s, `"seq":42`)
	require.Contains(t, s, "dead", "params bytes must render as hex")
	require.False(t, strings.Contains(s, "3q0="), "no base64 in diagnostic dumps")
}

func TestDumpEventsEmpty(t *testing.T) {
	out, err := DumpEvents(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", string(out))
}
