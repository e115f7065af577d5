// Package fhe is the boundary between the coordination core and the BFV
// computation kernels, which stay external per spec §1. It decodes the
// opaque parameter blob carried by E3Requested into a typed Params value
// and names the full kernel contract as one Scheme interface whose method
// sets match the aggregator Kernel interfaces, so a single concrete
// backend can serve pkg/aggregator/pubkey, pkg/aggregator/keyshare, and
// pkg/aggregator/plaintext at once.
package fhe

import (
	"encoding/binary"
	"fmt"

	"github.com/gnosisguild/enclave-sub005/pkg/aggregator/keyshare"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

// Params are the BFV scheme parameters a ceremony runs under: ring degree,
// plaintext modulus, the CRT basis of ciphertext moduli, and the number of
// smudging noises shared per ciphertext (spec §4.6 "esi_per_ct").
type Params struct {
	Degree           uint32
	PlaintextModulus uint64
	Moduli           []uint64
	EsiPerCt         uint32
}

// Validate rejects parameter sets no BFV instantiation could accept.
func (p Params) Validate() error {
	if p.Degree == 0 || p.Degree&(p.Degree-1) != 0 {
		return fmt.Errorf("fhe: degree %d is not a power of two", p.Degree)
	}
	if p.PlaintextModulus < 2 {
		return fmt.Errorf("fhe: plaintext modulus %d too small", p.PlaintextModulus)
	}
	if len(p.Moduli) == 0 {
		return fmt.Errorf("fhe: empty ciphertext modulus basis")
	}
	if p.EsiPerCt == 0 {
		return fmt.Errorf("fhe: esi_per_ct must be at least 1")
	}
	return nil
}

// EncodeParams produces the canonical little-endian encoding carried in
// E3Requested's params field, same layout rules as the event stable hash
// (declaration order, length-prefixed slices).
func EncodeParams(p Params) []byte {
	enc := events.NewEncoder(nil).U32(p.Degree).U64(p.PlaintextModulus)
	enc.U32(uint32(len(p.Moduli)))
	for _, m := range p.Moduli {
		enc.U64(m)
	}
	return enc.U32(p.EsiPerCt).Bytes()
}

// DecodeParams parses an E3Requested params blob.
func DecodeParams(raw []byte) (Params, error) {
	var p Params
	r := reader{buf: raw}
	p.Degree = r.u32()
	p.PlaintextModulus = r.u64()
	n := r.u32()
	if r.err == nil && uint64(n)*8 > uint64(len(r.buf)-r.off) {
		return Params{}, fmt.Errorf("fhe: modulus count %d exceeds payload", n)
	}
	for i := uint32(0); i < n && r.err == nil; i++ {
		p.Moduli = append(p.Moduli, r.u64())
	}
	p.EsiPerCt = r.u32()
	if r.err != nil {
		return Params{}, r.err
	}
	if r.off != len(raw) {
		return Params{}, fmt.Errorf("fhe: %d trailing bytes after params", len(raw)-r.off)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	if r.off+4 > len(r.buf) {
		r.err = fmt.Errorf("fhe: truncated params at offset %d", r.off)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	if r.off+8 > len(r.buf) {
		r.err = fmt.Errorf("fhe: truncated params at offset %d", r.off)
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

// Scheme is the complete kernel contract. AggregatePublicKeys satisfies
// pubkey.Kernel, Reconstruct satisfies plaintext.Kernel, and
// DeriveDecryptionKey/PartialDecrypt satisfy keyshare.Kernel, so one
// backend value plugs into every aggregator.
type Scheme interface {
	// GenerateKeyshare produces this node's BFV public-key share and the
	// matching secret material for a plain (non-threshold) ceremony.
	GenerateKeyshare(p Params) (pubShare, secShare []byte, err error)

	// GenerateThresholdShare produces the Exchange #1 package of spec
	// §4.6: the party's public-key share, Shamir shares of its secret key
	// addressed to each of thresholdN parties, and p.EsiPerCt rows of
	// smudging-noise Shamir shares.
	GenerateThresholdShare(p Params, partyId uint64, thresholdM, thresholdN uint32) (pkShare []byte, skSSS [][]byte, esiSSS [][][]byte, err error)

	// VerifyThresholdShare checks a remote party's Exchange #1 package.
	// A non-nil error excludes the party (spec §4.6 "any party whose
	// published share fails verification is excluded").
	VerifyThresholdShare(p Params, share keyshare.VerifiedShare, thresholdM, thresholdN uint32) error

	// AggregatePublicKeys combines collected key shares into the joint
	// BFV public key (spec §4.5 Computing).
	AggregatePublicKeys(shares map[string][]byte) ([]byte, error)

	// DeriveDecryptionKey combines collected SK/ESI shares via Lagrange
	// interpolation at localPartyId (spec §4.6 decryption-key derivation).
	DeriveDecryptionKey(collected map[uint64]keyshare.VerifiedShare, localPartyId uint64) (skPolySum []byte, esPolySum [][]byte, err error)

	// PartialDecrypt produces this party's smudged partial decryption of
	// ciphertext under its aggregated key material (spec §4.6 Exchange #3).
	PartialDecrypt(skPolySum []byte, esPolySum [][]byte, ciphertext []byte) (dShare []byte, err error)

	// Reconstruct runs the threshold-combine (Lagrange at 0 plus CRT
	// reconstruction) over collected decryption shares (spec §4.7).
	Reconstruct(shares map[string][]byte) ([]byte, error)
}
