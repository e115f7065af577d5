// Package keyshare implements the threshold-keyshare DKG core (spec §4.6),
// the hardest sub-state-machine in the system: three exchange rounds gated
// by ZK proofs, Lagrange-interpolated decryption-key derivation, and
// duplicate/exclusion tie-break rules. Follows the same explicit
// transition-table style as pkg/aggregator/pubkey and
// pkg/aggregator/plaintext (grounded on core/dkg_state_machine.go), plus
// core/broadcast.go's dedup-by-sender pattern for Exchange #2's share
// receipt.
package keyshare

import (
	"fmt"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

// Stage names a point in the three-exchange DKG lifecycle.
type Stage int

const (
	StageAwaitingT0Proof Stage = iota
	StageCollectingShares
	StageSharesReady
	StageDerivingKey
	StageAwaitingDecryptionProofs
	StagePublished
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingT0Proof:
		return "AwaitingT0Proof"
	case StageCollectingShares:
		return "CollectingShares"
	case StageSharesReady:
		return "SharesReady"
	case StageDerivingKey:
		return "DerivingKey"
	case StageAwaitingDecryptionProofs:
		return "AwaitingDecryptionProofs"
	case StagePublished:
		return "Published"
	case StageFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

func isValidTransition(from, to Stage) bool {
	switch from {
	case StageAwaitingT0Proof:
		return to == StageCollectingShares || to == StageFailed
	case StageCollectingShares:
		return to == StageSharesReady || to == StageFailed
	case StageSharesReady:
		return to == StageDerivingKey || to == StageFailed
	case StageDerivingKey:
		return to == StageAwaitingDecryptionProofs || to == StageFailed
	case StageAwaitingDecryptionProofs:
		return to == StagePublished || to == StageFailed
	case StagePublished, StageFailed:
		return false
	default:
		return false
	}
}

// VerifiedShare is one party's Exchange #1 publication once it has passed
// (or is pending) ZK verification.
type VerifiedShare struct {
	PartyId uint64
	Seq     uint64 // the sequencer seq this share arrived at, for tie-break
	PkShare []byte
	SkSSS   [][]byte   // Shamir shares of the secret key, one per party
	EsiSSS  [][][]byte // [esi_per_ct][n] Shamir shares of smudging noise
}

// Kernel performs the BFV Lagrange-interpolation key derivation and the
// C4a/C4b-backed partial decryption math. Out of scope per spec §1.
type Kernel interface {
	DeriveDecryptionKey(collected map[uint64]VerifiedShare, localPartyId uint64) (skPolySum []byte, esPolySum [][]byte, err error)
	PartialDecrypt(skPolySum []byte, esPolySum [][]byte, ciphertext []byte) (dShare []byte, err error)
}

// DKG holds one e3_id's threshold-keyshare state across all three
// exchanges.
type DKG struct {
	E3id       events.E3id
	PartyId    uint64 // this node's own party id in the committee
	ThresholdM uint32
	ThresholdN uint32

	Stage     Stage
	Collected map[uint64]VerifiedShare
	Excluded  map[uint64]bool

	SkPolySum []byte
	EsPolySum [][]byte
	DShare    []byte
	ProofC4a  []byte
	ProofC4b  []byte

	pendingShare *VerifiedShare
}

// New starts a fresh DKG in StageAwaitingT0Proof, per spec §4.6 Exchange #1.
func New(id events.E3id, partyId uint64, thresholdM, thresholdN uint32) *DKG {
	return &DKG{
		E3id:       id,
		PartyId:    partyId,
		ThresholdM: thresholdM,
		ThresholdN: thresholdN,
		Stage:      StageAwaitingT0Proof,
		Collected:  make(map[uint64]VerifiedShare),
		Excluded:   make(map[uint64]bool),
	}
}

// GenerateShare stages this node's own Exchange #1 share while its T0 proof
// of correct BFV public-key generation is pending.
func (d *DKG) GenerateShare(pkShare []byte, skSSS [][]byte, esiSSS [][][]byte) error {
	if d.Stage != StageAwaitingT0Proof {
		return fmt.Errorf("keyshare: GenerateShare called in stage %s, want AwaitingT0Proof", d.Stage)
	}
	d.pendingShare = &VerifiedShare{PartyId: d.PartyId, PkShare: pkShare, SkSSS: skSSS, EsiSSS: esiSSS}
	return nil
}

// OnT0ProofSigned completes Exchange #1: the pending share is published
// (counted as collected from self, spec §4.6 "including itself") and the
// DKG moves into Exchange #2.
func (d *DKG) OnT0ProofSigned(seq uint64) (published VerifiedShare, err error) {
	if d.Stage != StageAwaitingT0Proof || d.pendingShare == nil {
		return VerifiedShare{}, fmt.Errorf("keyshare: OnT0ProofSigned called in stage %s without a pending share", d.Stage)
	}
	d.pendingShare.Seq = seq
	d.Collected[d.PartyId] = *d.pendingShare
	published = *d.pendingShare
	d.pendingShare = nil
	d.transition(StageCollectingShares)
	return published, nil
}

// OnShareReceived handles one remote party's Exchange #1 publication.
// Duplicate shares from the same party_id keep the earliest by seq and
// drop the later one (spec §4.6 tie-break). A share that fails
// verification excludes its party; if fewer than ThresholdM honest
// parties remain, returns failed=true. Once ThresholdM shares are
// collected, transitions to StageSharesReady and returns ready=true.
func (d *DKG) OnShareReceived(share VerifiedShare, verifyOK bool) (ready, failed bool) {
	if d.Stage == StageSharesReady && verifyOK {
		// derivation has not started yet: an earlier duplicate still wins
		if existing, dup := d.Collected[share.PartyId]; dup && share.Seq < existing.Seq {
			d.Collected[share.PartyId] = share
		}
		return false, false
	}
	if d.Stage != StageCollectingShares {
		return false, false
	}

	if !verifyOK {
		d.Excluded[share.PartyId] = true
		if uint32(d.ThresholdN)-uint32(len(d.Excluded)) < d.ThresholdM {
			d.transition(StageFailed)
			return false, true
		}
		return false, false
	}

	if existing, dup := d.Collected[share.PartyId]; dup {
		if share.Seq < existing.Seq {
			d.Collected[share.PartyId] = share
		}
		return false, false
	}
	d.Collected[share.PartyId] = share

	if uint32(len(d.Collected)) >= d.ThresholdM {
		d.transition(StageSharesReady)
		return true, false
	}
	return false, false
}

// DeriveKey runs kernel's Lagrange interpolation over the collected shares
// in response to CiphertextOutputPublished, per spec §4.6's
// "decryption-key derivation" phase.
func (d *DKG) DeriveKey(kernel Kernel) error {
	if d.Stage != StageSharesReady {
		return fmt.Errorf("keyshare: DeriveKey called in stage %s, want SharesReady", d.Stage)
	}
	d.transition(StageDerivingKey)
	sk, es, err := kernel.DeriveDecryptionKey(d.Collected, d.PartyId)
	if err != nil {
		d.transition(StageFailed)
		return err
	}
	d.SkPolySum = sk
	d.EsPolySum = es
	d.transition(StageAwaitingDecryptionProofs)
	return nil
}

// PartialDecrypt runs kernel's partial-decryption math over the ciphertext
// using the derived key, producing the raw decryption share that Exchange
// #3's C4a/C4b proofs will gate before publication.
func (d *DKG) PartialDecrypt(kernel Kernel, ciphertext []byte) error {
	if d.Stage != StageAwaitingDecryptionProofs {
		return fmt.Errorf("keyshare: PartialDecrypt called in stage %s, want AwaitingDecryptionProofs", d.Stage)
	}
	dShare, err := kernel.PartialDecrypt(d.SkPolySum, d.EsPolySum, ciphertext)
	if err != nil {
		d.transition(StageFailed)
		return err
	}
	d.DShare = dShare
	return nil
}

// OnDecryptionProofsSigned completes Exchange #3 once the C4a (SecretKey
// decryption) and C4b (SmudgingNoise decryption) proofs return, publishing
// DecryptionKeyShared on the wire and DecryptionshareCreated locally.
func (d *DKG) OnDecryptionProofsSigned(proofC4a, proofC4b []byte) error {
	if d.Stage != StageAwaitingDecryptionProofs || d.DShare == nil {
		return fmt.Errorf("keyshare: OnDecryptionProofsSigned called in stage %s without a decryption share", d.Stage)
	}
	d.ProofC4a = proofC4a
	d.ProofC4b = proofC4b
	d.transition(StagePublished)
	return nil
}

// Fail forces a transition to StageFailed, a no-op once already Published
// or Failed.
func (d *DKG) Fail() {
	if d.Stage == StagePublished || d.Stage == StageFailed {
		return
	}
	d.transition(StageFailed)
}

// HonestCount returns the number of parties not excluded for failed
// verification, out of ThresholdN total committee members.
func (d *DKG) HonestCount() uint32 {
	return d.ThresholdN - uint32(len(d.Excluded))
}

func (d *DKG) transition(to Stage) {
	if !isValidTransition(d.Stage, to) {
		panic(fmt.Sprintf("keyshare: invalid transition %s -> %s", d.Stage, to))
	}
	d.Stage = to
}
