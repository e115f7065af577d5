package keyshare

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/secretbox"
)

type fakeKernel struct {
	sk, dshare []byte
	es         [][]byte
	deriveErr  error
	decryptErr error
}

func (f fakeKernel) DeriveDecryptionKey(collected map[uint64]VerifiedShare, localPartyId uint64) ([]byte, [][]byte, error) {
	if f.deriveErr != nil {
		return nil, nil, f.deriveErr
	}
	return f.sk, f.es, nil
}

func (f fakeKernel) PartialDecrypt(skPolySum []byte, esPolySum [][]byte, ciphertext []byte) ([]byte, error) {
	if f.decryptErr != nil {
		return nil, f.decryptErr
	}
	return f.dshare, nil
}

func newDKG() *DKG {
	return New(events.E3id{ChainID: 1, ID: "e1"}, 1, 2, 3)
}

func TestExchange1PublishesOwnShareOnProof(t *testing.T) {
	d := newDKG()
	require.NoError(t, d.GenerateShare([]byte("pk"), [][]byte{{1}, {2}, {3}}, nil))

	published, err := d.OnT0ProofSigned(10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), published.PartyId)
	require.Equal(t, StageCollectingShares, d.Stage)
	require.Contains(t, d.Collected, uint64(1))
}

func TestExchange2ReachesThresholdAndTransitions(t *testing.T) {
	d := newDKG()
	require.NoError(t, d.GenerateShare([]byte("pk"), nil, nil))
	_, err := d.OnT0ProofSigned(1)
	require.NoError(t, err)

	ready, failed := d.OnShareReceived(VerifiedShare{PartyId: 2, Seq: 2, PkShare: []byte("pk2")}, true)
	require.True(t, ready)
	require.False(t, failed)
	require.Equal(t, StageSharesReady, d.Stage)
}

func TestExchange2TieBreakKeepsEarliestSeq(t *testing.T) {
	d := newDKG()
	require.NoError(t, d.GenerateShare([]byte("pk"), nil, nil))
	_, err := d.OnT0ProofSigned(1)
	require.NoError(t, err)

	d.OnShareReceived(VerifiedShare{PartyId: 2, Seq: 5, PkShare: []byte("first")}, true)
	d.OnShareReceived(VerifiedShare{PartyId: 2, Seq: 3, PkShare: []byte("earlier")}, true)

	require.Equal(t, []byte("earlier"), d.Collected[2].PkShare)
}

func TestExchange2ExcludesFailedVerificationButContinues(t *testing.T) {
	d := New(events.E3id{ChainID: 1, ID: "e1"}, 1, 2, 4)
	require.NoError(t, d.GenerateShare([]byte("pk"), nil, nil))
	_, err := d.OnT0ProofSigned(1)
	require.NoError(t, err)

	_, failed := d.OnShareReceived(VerifiedShare{PartyId: 2}, false)
	require.False(t, failed, "honest count 3 still >= threshold_m 2")
	require.True(t, d.Excluded[2])

	ready, failed := d.OnShareReceived(VerifiedShare{PartyId: 3, Seq: 1}, true)
	require.False(t, failed)
	require.True(t, ready)
}

func TestExchange2FailsWhenTooFewHonestRemain(t *testing.T) {
	d := New(events.E3id{ChainID: 1, ID: "e1"}, 1, 3, 3)
	require.NoError(t, d.GenerateShare([]byte("pk"), nil, nil))
	_, err := d.OnT0ProofSigned(1)
	require.NoError(t, err)

	_, failed := d.OnShareReceived(VerifiedShare{PartyId: 2}, false)
	require.True(t, failed, "honest count 2 < threshold_m 3")
	require.Equal(t, StageFailed, d.Stage)
}

func TestFullLifecycleToPublished(t *testing.T) {
	d := newDKG()
	require.NoError(t, d.GenerateShare([]byte("pk"), nil, nil))
	_, err := d.OnT0ProofSigned(1)
	require.NoError(t, err)
	d.OnShareReceived(VerifiedShare{PartyId: 2, Seq: 2}, true)
	require.Equal(t, StageSharesReady, d.Stage)

	kernel := fakeKernel{sk: []byte("sk"), es: [][]byte{{9}}, dshare: []byte("dshare")}
	require.NoError(t, d.DeriveKey(kernel))
	require.Equal(t, StageAwaitingDecryptionProofs, d.Stage)

	require.NoError(t, d.PartialDecrypt(kernel, []byte("ciphertext")))
	require.NoError(t, d.OnDecryptionProofsSigned([]byte("c4a"), []byte("c4b")))
	require.Equal(t, StagePublished, d.Stage)
}

func TestDeriveKeyFailureTransitionsToFailed(t *testing.T) {
	d := newDKG()
	require.NoError(t, d.GenerateShare([]byte("pk"), nil, nil))
	_, err := d.OnT0ProofSigned(1)
	require.NoError(t, err)
	d.OnShareReceived(VerifiedShare{PartyId: 2, Seq: 2}, true)

	err = d.DeriveKey(fakeKernel{deriveErr: errors.New("bad shares")})
	require.Error(t, err)
	require.Equal(t, StageFailed, d.Stage)
}

func TestSealUnsealRoundTrip(t *testing.T) {
	d := newDKG()
	require.NoError(t, d.GenerateShare([]byte("pk"), nil, nil))
	_, err := d.OnT0ProofSigned(1)
	require.NoError(t, err)
	d.OnShareReceived(VerifiedShare{PartyId: 2, Seq: 2}, true)
	require.NoError(t, d.DeriveKey(fakeKernel{sk: []byte("sk"), es: [][]byte{{1, 2}}}))
	require.NoError(t, d.PartialDecrypt(fakeKernel{dshare: []byte("dshare")}, []byte("ct")))

	key, err := secretbox.DeriveKey([]byte("pw"), nil)
	require.NoError(t, err)

	snap, err := d.Seal(key)
	require.NoError(t, err)

	restored, err := Unseal(key, snap)
	require.NoError(t, err)
	require.Equal(t, d.Stage, restored.Stage)
	require.Equal(t, d.SkPolySum, restored.SkPolySum)
	require.Equal(t, d.EsPolySum, restored.EsPolySum)
	require.Equal(t, d.DShare, restored.DShare)
}
