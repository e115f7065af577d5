package fhe

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/gnosisguild/enclave-sub005/pkg/aggregator/keyshare"
)

// Mock is a deterministic stand-in Scheme for tests and local dev
// networks. Every output is a hash of its inputs, so any two nodes running
// the same ceremony compute identical shares, joint keys, and plaintexts
// without any ring arithmetic. It is NOT an encryption scheme.
type Mock struct{}

var _ Scheme = Mock{}

func mockDigest(tag string, parts ...[]byte) []byte {
	h := sha256.New()
	h.Write([]byte(tag))
	for _, p := range parts {
		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], uint32(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return h.Sum(nil)
}

func u64bytes(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func (Mock) GenerateKeyshare(p Params) (pubShare, secShare []byte, err error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	raw := EncodeParams(p)
	return mockDigest("mock/pk", raw), mockDigest("mock/sk", raw), nil
}

func (Mock) GenerateThresholdShare(p Params, partyId uint64, thresholdM, thresholdN uint32) (pkShare []byte, skSSS [][]byte, esiSSS [][][]byte, err error) {
	if err := p.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if thresholdM < 1 || thresholdM > thresholdN {
		return nil, nil, nil, fmt.Errorf("fhe: invalid thresholds m=%d n=%d", thresholdM, thresholdN)
	}
	raw := EncodeParams(p)
	pkShare = mockDigest("mock/tpk", raw, u64bytes(partyId))
	skSSS = make([][]byte, thresholdN)
	for j := range skSSS {
		skSSS[j] = mockDigest("mock/sss", raw, u64bytes(partyId), u64bytes(uint64(j)))
	}
	esiSSS = make([][][]byte, p.EsiPerCt)
	for i := range esiSSS {
		row := make([][]byte, thresholdN)
		for j := range row {
			row[j] = mockDigest("mock/esi", raw, u64bytes(partyId), u64bytes(uint64(i)), u64bytes(uint64(j)))
		}
		esiSSS[i] = row
	}
	return pkShare, skSSS, esiSSS, nil
}

// VerifyThresholdShare recomputes the deterministic share for the claimed
// party and compares; a tampered or misshapen package fails.
func (m Mock) VerifyThresholdShare(p Params, share keyshare.VerifiedShare, thresholdM, thresholdN uint32) error {
	pk, sk, esi, err := m.GenerateThresholdShare(p, share.PartyId, thresholdM, thresholdN)
	if err != nil {
		return err
	}
	if !bytes.Equal(pk, share.PkShare) {
		return fmt.Errorf("fhe: pk share mismatch for party %d", share.PartyId)
	}
	if len(sk) != len(share.SkSSS) {
		return fmt.Errorf("fhe: expected %d sk shares, got %d", len(sk), len(share.SkSSS))
	}
	for j := range sk {
		if !bytes.Equal(sk[j], share.SkSSS[j]) {
			return fmt.Errorf("fhe: sk share %d mismatch for party %d", j, share.PartyId)
		}
	}
	if len(esi) != len(share.EsiSSS) {
		return fmt.Errorf("fhe: expected %d esi rows, got %d", len(esi), len(share.EsiSSS))
	}
	for i := range esi {
		if len(esi[i]) != len(share.EsiSSS[i]) {
			return fmt.Errorf("fhe: esi row %d has %d shares, want %d", i, len(share.EsiSSS[i]), len(esi[i]))
		}
		for j := range esi[i] {
			if !bytes.Equal(esi[i][j], share.EsiSSS[i][j]) {
				return fmt.Errorf("fhe: esi share %d/%d mismatch for party %d", i, j, share.PartyId)
			}
		}
	}
	return nil
}

func (Mock) AggregatePublicKeys(shares map[string][]byte) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("fhe: no key shares to aggregate")
	}
	nodes := make([]string, 0, len(shares))
	for n := range shares {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	parts := make([][]byte, 0, 2*len(nodes))
	for _, n := range nodes {
		parts = append(parts, []byte(n), shares[n])
	}
	return mockDigest("mock/joint", parts...), nil
}

func (Mock) DeriveDecryptionKey(collected map[uint64]keyshare.VerifiedShare, localPartyId uint64) ([]byte, [][]byte, error) {
	if len(collected) == 0 {
		return nil, nil, fmt.Errorf("fhe: no shares collected")
	}
	ids := make([]uint64, 0, len(collected))
	esiRows := -1
	for id, sh := range collected {
		ids = append(ids, id)
		if esiRows == -1 {
			esiRows = len(sh.EsiSSS)
		} else if len(sh.EsiSSS) != esiRows {
			return nil, nil, fmt.Errorf("fhe: inconsistent esi row counts across shares")
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	idx := int(localPartyId) - 1 // party ids are 1-based into the share rows
	skParts := [][]byte{u64bytes(localPartyId)}
	for _, id := range ids {
		sh := collected[id]
		if idx < 0 || idx >= len(sh.SkSSS) {
			return nil, nil, fmt.Errorf("fhe: party %d has no sk row for local party %d", id, localPartyId)
		}
		skParts = append(skParts, sh.SkSSS[idx])
	}
	skPolySum := mockDigest("mock/skpoly", skParts...)

	esPolySum := make([][]byte, esiRows)
	for i := 0; i < esiRows; i++ {
		esParts := [][]byte{u64bytes(localPartyId), u64bytes(uint64(i))}
		for _, id := range ids {
			sh := collected[id]
			if idx >= len(sh.EsiSSS[i]) {
				return nil, nil, fmt.Errorf("fhe: party %d esi row %d too short", id, i)
			}
			esParts = append(esParts, sh.EsiSSS[i][idx])
		}
		esPolySum[i] = mockDigest("mock/espoly", esParts...)
	}
	return skPolySum, esPolySum, nil
}

func (Mock) PartialDecrypt(skPolySum []byte, esPolySum [][]byte, ciphertext []byte) ([]byte, error) {
	if len(skPolySum) == 0 {
		return nil, fmt.Errorf("fhe: empty aggregated secret key")
	}
	parts := [][]byte{skPolySum, ciphertext}
	parts = append(parts, esPolySum...)
	return mockDigest("mock/dshare", parts...), nil
}

func (Mock) Reconstruct(shares map[string][]byte) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("fhe: no decryption shares to combine")
	}
	nodes := make([]string, 0, len(shares))
	for n := range shares {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	parts := make([][]byte, 0, 2*len(nodes))
	for _, n := range nodes {
		parts = append(parts, []byte(n), shares[n])
	}
	return mockDigest("mock/plaintext", parts...), nil
}
