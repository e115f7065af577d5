// Package sortition implements spec §4.3's deterministic "distance
// sortition": committee selection is a pure function of (seed,
// registered-node snapshot, threshold_n), invariant E5. It generalizes the
// teacher's ordered-node-set type (key/group.go's key.Group/key.Node) to an
// address-keyed candidate pool scored by keccak distance to a seed.
package sortition

import (
	"fmt"
	"math/big"
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

// ErrInsufficientCandidates is returned when fewer than threshold_m
// candidates are available; the caller turns this into
// E3Failed(CommitteeFormationTimeout, InsufficientCommitteeMembers).
var ErrInsufficientCandidates = fmt.Errorf("sortition: fewer candidates than threshold_m")

type scored struct {
	addr  string
	score *big.Int
}

// Select deterministically picks min(thresholdN, len(candidates)) addresses
// from candidates, ordered by ascending distance score (spec §4.3's
// algorithm). local, if non-empty and present in the result, determines
// the returned Committee.PartyId.
func Select(seed events.Seed, candidates []string, thresholdM, thresholdN uint32, local string) (events.Committee, error) {
	if uint32(len(candidates)) < thresholdM {
		return events.Committee{}, ErrInsufficientCandidates
	}

	seedInt := new(big.Int).SetBytes(seed[:])
	seedDecimal := []byte(seedInt.String())

	ranked := make([]scored, 0, len(candidates))
	for _, addr := range candidates {
		ranked = append(ranked, scored{addr: addr, score: distance(addr, seedDecimal, seedInt)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score.Cmp(ranked[j].score) < 0
	})

	n := int(thresholdN)
	if n > len(ranked) {
		n = len(ranked)
	}

	nodes := make([]string, n)
	for i := 0; i < n; i++ {
		nodes[i] = ranked[i].addr
	}

	committee := events.Committee{
		ThresholdM: thresholdM,
		ThresholdN: uint32(n),
		Nodes:      nodes,
	}
	if local != "" {
		committee.PartyId = committee.PartyIdOf(local)
	}
	return committee, nil
}

// distance computes keccak256(addr || seed_decimal) - seed, per spec §4.3.
func distance(addr string, seedDecimal []byte, seedInt *big.Int) *big.Int {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(addr))
	h.Write(seedDecimal)
	hashInt := new(big.Int).SetBytes(h.Sum(nil))
	return new(big.Int).Sub(hashInt, seedInt)
}

// Score returns addr's raw distance score against seed, the same value
// Select ranks candidates by. Used by the router's SortitionScore extension
// to record a node's own standing without needing the full candidate set.
func Score(seed events.Seed, addr string) *big.Int {
	seedInt := new(big.Int).SetBytes(seed[:])
	seedDecimal := []byte(seedInt.String())
	return distance(addr, seedDecimal, seedInt)
}
