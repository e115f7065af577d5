package fhe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/aggregator/keyshare"
)

var testParams = Params{
	Degree:           512,
	PlaintextModulus: 65537,
	Moduli:           []uint64{0x7fffffd8001, 0x7fffffc8001},
	EsiPerCt:         2,
}

func TestParamsRoundTrip(t *testing.T) {
	raw := EncodeParams(testParams)
	got, err := DecodeParams(raw)
	require.NoError(t, err)
	require.Equal(t, testParams, got)
}

func TestDecodeParamsRejectsTruncation(t *testing.T) {
	raw := EncodeParams(testParams)
	for _, cut := range []int{1, 4, len(raw) - 1} {
		_, err := DecodeParams(raw[:cut])
		require.Error(t, err, "cut at %d", cut)
	}
}

func TestDecodeParamsRejectsTrailingBytes(t *testing.T) {
	raw := append(EncodeParams(testParams), 0x00)
	_, err := DecodeParams(raw)
	require.Error(t, err)
}

func TestParamsValidate(t *testing.T) {
	bad := testParams
	bad.Degree = 500 // not a power of two
	require.Error(t, bad.Validate())

	bad = testParams
	bad.Moduli = nil
	require.Error(t, bad.Validate())

	bad = testParams
	bad.EsiPerCt = 0
	require.Error(t, bad.Validate())
}

func TestMockThresholdShareRoundTrip(t *testing.T) {
	var m Mock
	pk, sk, esi, err := m.GenerateThresholdShare(testParams, 2, 3, 5)
	require.NoError(t, err)
	require.Len(t, sk, 5)
	require.Len(t, esi, int(testParams.EsiPerCt))

	share := keyshare.VerifiedShare{PartyId: 2, PkShare: pk, SkSSS: sk, EsiSSS: esi}
	require.NoError(t, m.VerifyThresholdShare(testParams, share, 3, 5))

	// a tampered pk share must fail verification
	share.PkShare = append([]byte(nil), pk...)
	share.PkShare[0] ^= 0xff
	require.Error(t, m.VerifyThresholdShare(testParams, share, 3, 5))
}

func TestMockDeterministicAcrossNodes(t *testing.T) {
	var a, b Mock
	shares := make(map[uint64]keyshare.VerifiedShare)
	for party := uint64(1); party <= 3; party++ {
		pk, sk, esi, err := a.GenerateThresholdShare(testParams, party, 3, 5)
		require.NoError(t, err)
		shares[party] = keyshare.VerifiedShare{PartyId: party, PkShare: pk, SkSSS: sk, EsiSSS: esi}
	}

	skA, esA, err := a.DeriveDecryptionKey(shares, 2)
	require.NoError(t, err)
	skB, esB, err := b.DeriveDecryptionKey(shares, 2)
	require.NoError(t, err)
	require.Equal(t, skA, skB)
	require.Equal(t, esA, esB)

	// different evaluation points yield different key material
	skC, _, err := a.DeriveDecryptionKey(shares, 3)
	require.NoError(t, err)
	require.NotEqual(t, skA, skC)

	ct := []byte{0xde, 0xad, 0xbe, 0xef}
	dA, err := a.PartialDecrypt(skA, esA, ct)
	require.NoError(t, err)
	dB, err := b.PartialDecrypt(skB, esB, ct)
	require.NoError(t, err)
	require.Equal(t, dA, dB)
}

func TestMockAggregationIsOrderIndependent(t *testing.T) {
	var m Mock
	shares := map[string][]byte{"0xa": {1}, "0xb": {2}, "0xc": {3}}
	joint1, err := m.AggregatePublicKeys(shares)
	require.NoError(t, err)
	joint2, err := m.AggregatePublicKeys(map[string][]byte{"0xc": {3}, "0xa": {1}, "0xb": {2}})
	require.NoError(t, err)
	require.Equal(t, joint1, joint2)

	_, err = m.AggregatePublicKeys(nil)
	require.Error(t, err)

	pt1, err := m.Reconstruct(shares)
	require.NoError(t, err)
	pt2, err := m.Reconstruct(shares)
	require.NoError(t, err)
	require.Equal(t, pt1, pt2)
}
