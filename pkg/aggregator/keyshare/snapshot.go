package keyshare

import (
	"encoding/json"

	"github.com/gnosisguild/enclave-sub005/pkg/secretbox"
)

// plainSnapshot is the persisted shape of a DKG's non-sensitive fields,
// matching spec §4.6's `{stage, collected_shares, ...}`.
type plainSnapshot struct {
	E3idChain  uint64                   `json:"e3id_chain"`
	E3idID     string                   `json:"e3id_id"`
	PartyId    uint64                   `json:"party_id"`
	ThresholdM uint32                   `json:"threshold_m"`
	ThresholdN uint32                   `json:"threshold_n"`
	Stage      Stage                    `json:"stage"`
	Collected  map[uint64]VerifiedShare `json:"collected_shares"`
	Excluded   map[uint64]bool          `json:"excluded"`
}

// sensitiveSnapshot holds the fields spec §4.6/§9 require encrypted at
// rest: the derived decryption key material and the raw decryption share.
type sensitiveSnapshot struct {
	SkPolySum []byte   `json:"sk_poly_sum,omitempty"`
	EsPolySum [][]byte `json:"es_poly_sum,omitempty"`
	DShare    []byte   `json:"d_share,omitempty"`
	ProofC4a  []byte   `json:"proof_c4a,omitempty"`
	ProofC4b  []byte   `json:"proof_c4b,omitempty"`
}

// SealedSnapshot is the on-disk representation: plaintext bookkeeping plus
// a secretbox.Sealed blob covering the sensitive fields.
type SealedSnapshot struct {
	Plain  json.RawMessage `json:"plain"`
	Sealed []byte          `json:"sealed,omitempty"`
}

// Seal encrypts d's sensitive fields under key and returns the full
// persisted snapshot, per spec §4.6's "sensitive fields are encrypted at
// rest using a local symmetric key derived from the password manager".
func (d *DKG) Seal(key *secretbox.Key) (*SealedSnapshot, error) {
	plain, err := json.Marshal(plainSnapshot{
		E3idChain:  d.E3id.ChainID,
		E3idID:     d.E3id.ID,
		PartyId:    d.PartyId,
		ThresholdM: d.ThresholdM,
		ThresholdN: d.ThresholdN,
		Stage:      d.Stage,
		Collected:  d.Collected,
		Excluded:   d.Excluded,
	})
	if err != nil {
		return nil, err
	}

	sensitive, err := json.Marshal(sensitiveSnapshot{
		SkPolySum: d.SkPolySum,
		EsPolySum: d.EsPolySum,
		DShare:    d.DShare,
		ProofC4a:  d.ProofC4a,
		ProofC4b:  d.ProofC4b,
	})
	if err != nil {
		return nil, err
	}

	sealed, err := secretbox.Seal(key, sensitive)
	if err != nil {
		return nil, err
	}

	return &SealedSnapshot{Plain: plain, Sealed: sealed.Encode()}, nil
}

// Unseal reconstructs a DKG from a SealedSnapshot, decrypting the sensitive
// fields under key.
func Unseal(key *secretbox.Key, snap *SealedSnapshot) (*DKG, error) {
	var plain plainSnapshot
	if err := json.Unmarshal(snap.Plain, &plain); err != nil {
		return nil, err
	}

	d := &DKG{
		PartyId:    plain.PartyId,
		ThresholdM: plain.ThresholdM,
		ThresholdN: plain.ThresholdN,
		Stage:      plain.Stage,
		Collected:  plain.Collected,
		Excluded:   plain.Excluded,
	}
	d.E3id.ChainID = plain.E3idChain
	d.E3id.ID = plain.E3idID
	if d.Collected == nil {
		d.Collected = make(map[uint64]VerifiedShare)
	}
	if d.Excluded == nil {
		d.Excluded = make(map[uint64]bool)
	}

	if len(snap.Sealed) == 0 {
		return d, nil
	}

	sealed, err := secretbox.Decode(snap.Sealed)
	if err != nil {
		return nil, err
	}
	raw, err := secretbox.Open(key, sealed)
	if err != nil {
		return nil, err
	}
	var sensitive sensitiveSnapshot
	if err := json.Unmarshal(raw, &sensitive); err != nil {
		return nil, err
	}
	d.SkPolySum = sensitive.SkPolySum
	d.EsPolySum = sensitive.EsPolySum
	d.DShare = sensitive.DShare
	d.ProofC4a = sensitive.ProofC4a
	d.ProofC4b = sensitive.ProofC4b
	return d, nil
}
