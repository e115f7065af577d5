package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gnosisguild/enclave-sub005/pkg/aggregator/keyshare"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/fhe"
	"github.com/gnosisguild/enclave-sub005/pkg/secretbox"
	"github.com/gnosisguild/enclave-sub005/pkg/zkproof"
)

const thresholdKeyshareSlot = "threshold_keyshare"

const (
	// ProofKindT0 attests correct BFV public-key generation (Exchange #1).
	ProofKindT0 = "T0"
	// ProofKindC4a attests the SecretKey half of a partial decryption.
	ProofKindC4a = "C4a"
	// ProofKindC4b attests the SmudgingNoise half of a partial decryption.
	ProofKindC4b = "C4b"
)

// tkState is the live slot of the ThresholdKeyshare extension: the DKG
// sub-state-machine plus the transient bookkeeping between exchanges.
type tkState struct {
	dkg        *keyshare.DKG
	ciphertext []byte
	c4a        []byte // received C4a proof, nil until signed
	c4b        []byte
}

// tkSnapshot is the persisted shape: the DKG sealed per spec §4.6
// ("sensitive fields are encrypted at rest"), the rest in the clear.
type tkSnapshot struct {
	DKG        *keyshare.SealedSnapshot `json:"dkg"`
	Ciphertext []byte                   `json:"ciphertext,omitempty"`
	C4a        []byte                   `json:"c4a,omitempty"`
	C4b        []byte                   `json:"c4b,omitempty"`
}

// ThresholdKeyshare hosts the three-exchange DKG (spec §4.6) inside the
// ceremony context. It arms itself on CommitteeFinalized when the local
// node is a committee member, routes proof obligations through the prover
// pool, and publishes the wire events each exchange calls for.
type ThresholdKeyshare struct {
	Scheme  fhe.Scheme
	Prover  Prover
	Submit  Submitter
	Local   string
	SealKey *secretbox.Key
}

func (ThresholdKeyshare) Name() string { return thresholdKeyshareSlot }

func (t ThresholdKeyshare) OnEvent(_ context.Context, c *Context, ev events.Event) error {
	switch ev.Kind() {
	case events.KindCommitteeFinalized:
		return t.onCommitteeFinalized(c, ev)
	case events.KindThresholdShareCreated:
		return t.onShareCreated(c, ev)
	case events.KindCiphertextOutputPublished:
		return t.onCiphertextPublished(c, ev)
	case events.KindDkgProofSigned:
		return t.onProofSigned(c, ev)
	case events.KindE3Failed:
		if st, ok := tkOf(c); ok {
			st.dkg.Fail()
		}
		return nil
	}
	return nil
}

func (t ThresholdKeyshare) onCommitteeFinalized(c *Context, ev events.Event) error {
	if _, ok := tkOf(c); ok {
		return nil
	}
	fin, ok := payloadAs[events.CommitteeFinalized](ev)
	if !ok {
		return nil
	}
	committee := events.Committee{
		ThresholdM: fin.ThresholdM,
		ThresholdN: fin.ThresholdN,
		Nodes:      fin.Nodes,
	}
	partyId := committee.PartyIdOf(t.Local)
	if partyId == 0 {
		return nil // not selected for this ceremony
	}
	params, ok := ParamsOf(c)
	if !ok {
		return fmt.Errorf("threshold_keyshare: committee finalized for %s before parameters were decoded", c.E3id)
	}

	d := keyshare.New(c.E3id, partyId, fin.ThresholdM, fin.ThresholdN)
	pkShare, skSSS, esiSSS, err := t.Scheme.GenerateThresholdShare(params, partyId, fin.ThresholdM, fin.ThresholdN)
	if err != nil {
		return err
	}
	if err := d.GenerateShare(pkShare, skSSS, esiSSS); err != nil {
		return err
	}
	c.Set(thresholdKeyshareSlot, &tkState{dkg: d})

	pending := events.ThresholdSharePending{PartyId: partyId}
	pending.Id = c.E3id
	if err := t.Submit(caused(pending, ev)); err != nil {
		return err
	}
	t.Prover.Submit(zkproof.Request{
		E3id:    c.E3id,
		PartyId: partyId,
		Kind:    ProofKindT0,
		Input:   pkShare,
		Stage:   events.FailureStageKeyPublished,
	})
	return nil
}

func (t ThresholdKeyshare) onShareCreated(c *Context, ev events.Event) error {
	st, ok := tkOf(c)
	if !ok {
		return nil
	}
	ts, ok := payloadAs[events.ThresholdShareCreated](ev)
	if !ok {
		return nil
	}
	if ts.PartyId == st.dkg.PartyId {
		return nil // own publication echoing back, already counted at T0 time
	}
	params, ok := ParamsOf(c)
	if !ok {
		return fmt.Errorf("threshold_keyshare: share received for %s before parameters were decoded", c.E3id)
	}
	share := keyshare.VerifiedShare{
		PartyId: ts.PartyId,
		Seq:     ev.Seq,
		PkShare: ts.PkShare,
		SkSSS:   ts.SkSSS,
		EsiSSS:  ts.EsiSSS,
	}
	verifyErr := t.Scheme.VerifyThresholdShare(params, share, st.dkg.ThresholdM, st.dkg.ThresholdN)
	ready, failed := st.dkg.OnShareReceived(share, verifyErr == nil)
	if failed {
		failedEv := events.E3Failed{
			Stage:  events.FailureStageKeyPublished,
			Reason: events.ReasonDKGInvalidShares,
		}
		failedEv.Id = c.E3id
		return t.Submit(caused(failedEv, ev))
	}
	if ready {
		return t.maybeDerive(c, st, ev)
	}
	return nil
}

func (t ThresholdKeyshare) onCiphertextPublished(c *Context, ev events.Event) error {
	st, ok := tkOf(c)
	if !ok {
		return nil
	}
	ct, ok := payloadAs[events.CiphertextOutputPublished](ev)
	if !ok {
		return nil
	}
	st.ciphertext = ct.Ciphertext
	return t.maybeDerive(c, st, ev)
}

// maybeDerive runs the decryption-key derivation and partial decryption
// once both preconditions hold: threshold_m shares collected and the
// ciphertext published. Either event can arrive first.
func (t ThresholdKeyshare) maybeDerive(c *Context, st *tkState, ev events.Event) error {
	if st.ciphertext == nil || st.dkg.Stage != keyshare.StageSharesReady {
		return nil
	}
	if err := st.dkg.DeriveKey(t.Scheme); err != nil {
		return t.submitDecryptFailure(c, ev)
	}
	if err := st.dkg.PartialDecrypt(t.Scheme, st.ciphertext); err != nil {
		return t.submitDecryptFailure(c, ev)
	}

	pending := events.DecryptionShareProofsPending{PartyId: st.dkg.PartyId}
	pending.Id = c.E3id
	if err := t.Submit(caused(pending, ev)); err != nil {
		return err
	}
	for _, kind := range []string{ProofKindC4a, ProofKindC4b} {
		t.Prover.Submit(zkproof.Request{
			E3id:    c.E3id,
			PartyId: st.dkg.PartyId,
			Kind:    kind,
			Input:   st.dkg.DShare,
			Stage:   events.FailureStageDecryptionTimeout,
		})
	}
	return nil
}

func (t ThresholdKeyshare) submitDecryptFailure(c *Context, ev events.Event) error {
	failed := events.E3Failed{
		Stage:  events.FailureStageDecryptionTimeout,
		Reason: events.ReasonDecryptionInvalidShares,
	}
	failed.Id = c.E3id
	return t.Submit(caused(failed, ev))
}

func (t ThresholdKeyshare) onProofSigned(c *Context, ev events.Event) error {
	st, ok := tkOf(c)
	if !ok {
		return nil
	}
	signed, ok := payloadAs[events.DkgProofSigned](ev)
	if !ok || signed.PartyId != st.dkg.PartyId {
		return nil
	}

	switch signed.ProofKind {
	case ProofKindT0:
		if st.dkg.Stage != keyshare.StageAwaitingT0Proof {
			return nil // replay after the share already went out
		}
		published, err := st.dkg.OnT0ProofSigned(ev.Seq)
		if err != nil {
			// A restart between GenerateShare and the proof loses the
			// staged share; regenerate and retry once.
			params, pok := ParamsOf(c)
			if !pok {
				return err
			}
			pkShare, skSSS, esiSSS, genErr := t.Scheme.GenerateThresholdShare(
				params, st.dkg.PartyId, st.dkg.ThresholdM, st.dkg.ThresholdN)
			if genErr != nil {
				return genErr
			}
			if genErr := st.dkg.GenerateShare(pkShare, skSSS, esiSSS); genErr != nil {
				return genErr
			}
			if published, err = st.dkg.OnT0ProofSigned(ev.Seq); err != nil {
				return err
			}
		}
		created := events.ThresholdShareCreated{
			PartyId: published.PartyId,
			PkShare: published.PkShare,
			SkSSS:   published.SkSSS,
			EsiSSS:  published.EsiSSS,
		}
		created.Id = c.E3id
		if err := t.Submit(caused(created, ev)); err != nil {
			return err
		}
		ks := events.KeyshareCreated{Node: t.Local, PubKey: published.PkShare}
		ks.Id = c.E3id
		return t.Submit(caused(ks, ev))

	case ProofKindC4a:
		st.c4a = signed.Proof
		return t.maybePublishDecryptionShare(c, st, ev)
	case ProofKindC4b:
		st.c4b = signed.Proof
		return t.maybePublishDecryptionShare(c, st, ev)
	}
	return nil
}

// maybePublishDecryptionShare completes Exchange #3 once both the C4a and
// C4b proofs have been signed: DecryptionKeyShared goes on the wire,
// DecryptionshareCreated feeds the local plaintext aggregator.
func (t ThresholdKeyshare) maybePublishDecryptionShare(c *Context, st *tkState, ev events.Event) error {
	if st.c4a == nil || st.c4b == nil || st.dkg.DShare == nil {
		return nil
	}
	if st.dkg.Stage != keyshare.StageAwaitingDecryptionProofs {
		return nil // replay after publication
	}
	if err := st.dkg.OnDecryptionProofsSigned(st.c4a, st.c4b); err != nil {
		return err
	}
	shared := events.DecryptionKeyShared{
		PartyId:  st.dkg.PartyId,
		DShare:   st.dkg.DShare,
		ProofC4a: st.c4a,
		ProofC4b: st.c4b,
	}
	shared.Id = c.E3id
	if err := t.Submit(caused(shared, ev)); err != nil {
		return err
	}
	created := events.DecryptionshareCreated{Node: t.Local, Share: st.dkg.DShare}
	created.Id = c.E3id
	return t.Submit(caused(created, ev))
}

func (t ThresholdKeyshare) Hydrate(_ context.Context, c *Context, raw json.RawMessage) error {
	if raw == nil {
		return nil
	}
	var snap tkSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return err
	}
	if snap.DKG == nil {
		return nil
	}
	d, err := keyshare.Unseal(t.SealKey, snap.DKG)
	if err != nil {
		return err
	}
	c.Set(thresholdKeyshareSlot, &tkState{
		dkg:        d,
		ciphertext: snap.Ciphertext,
		c4a:        snap.C4a,
		c4b:        snap.C4b,
	})
	return nil
}

func (t ThresholdKeyshare) Snapshot(c *Context) (json.RawMessage, error) {
	st, ok := tkOf(c)
	if !ok {
		return nil, nil
	}
	sealed, err := st.dkg.Seal(t.SealKey)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tkSnapshot{
		DKG:        sealed,
		Ciphertext: st.ciphertext,
		C4a:        st.c4a,
		C4b:        st.c4b,
	})
}

func tkOf(c *Context) (*tkState, bool) {
	v, ok := c.Get(thresholdKeyshareSlot)
	if !ok {
		return nil, false
	}
	st, ok := v.(*tkState)
	return st, ok
}

// DKGOf exposes the ceremony's DKG state for diagnostics and tests.
func DKGOf(c *Context) (*keyshare.DKG, bool) {
	st, ok := tkOf(c)
	if !ok {
		return nil, false
	}
	return st.dkg, true
}
