package zkproof

import (
	"context"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/drand/kyber"
	bls "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/sign"
	"github.com/drand/kyber/sign/schnorr"
	"github.com/drand/kyber/util/random"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

type schnorrSuite struct {
	kyber.Group
}

func (s *schnorrSuite) RandomStream() cipher.Stream { return random.New() }

// AuthScheme is the signature scheme authenticating proof requests and
// responses between the DKG actors and the prover pool: Schnorr over the
// BLS12-381 G1 key group.
func AuthScheme() (sign.Scheme, kyber.Group) {
	g := bls.NewBLS12381Suite().G1()
	return schnorr.NewScheme(&schnorrSuite{g}), g
}

// Signer authenticates this node's proof traffic. Keys live only in
// memory; long-term identity key storage is the keystore's concern.
type Signer struct {
	scheme sign.Scheme
	group  kyber.Group
	priv   kyber.Scalar
	pub    kyber.Point
}

// NewSigner generates a fresh authentication keypair.
func NewSigner() *Signer {
	scheme, g := AuthScheme()
	priv := g.Scalar().Pick(random.New())
	return &Signer{
		scheme: scheme,
		group:  g,
		priv:   priv,
		pub:    g.Point().Mul(priv, nil),
	}
}

// Public returns the verification key peers check this node's proof
// traffic against.
func (s *Signer) Public() kyber.Point { return s.pub }

// RequestDigest is the byte string signed for one proof request.
func RequestDigest(req Request) []byte {
	buf := events.NewEncoder(nil).
		E3idField(req.E3id).
		U64(req.PartyId).
		Str(req.Kind).
		BytesField(req.Input).
		Str(string(req.Stage)).
		Bytes()
	sum := sha256.Sum256(buf)
	return sum[:]
}

func proofDigest(req Request, proof []byte) []byte {
	buf := events.NewEncoder(RequestDigest(req)).BytesField(proof).Bytes()
	sum := sha256.Sum256(buf)
	return sum[:]
}

// SignRequest authenticates a proof request before it enters the pool.
func (s *Signer) SignRequest(req Request) ([]byte, error) {
	return s.scheme.Sign(s.priv, RequestDigest(req))
}

// VerifyRequest checks a request signature against the requester's key.
func (s *Signer) VerifyRequest(pub kyber.Point, req Request, sig []byte) error {
	return s.scheme.Verify(pub, RequestDigest(req), sig)
}

// SignedProof is a proof envelope bound to the request it answers.
type SignedProof struct {
	Proof []byte `json:"proof"`
	Sig   []byte `json:"sig"`
}

// EncodeSignedProof marshals a SignedProof for the DkgProofSigned payload.
func EncodeSignedProof(sp SignedProof) ([]byte, error) { return json.Marshal(sp) }

// DecodeSignedProof unmarshals a DkgProofSigned proof blob.
func DecodeSignedProof(raw []byte) (SignedProof, error) {
	var sp SignedProof
	if err := json.Unmarshal(raw, &sp); err != nil {
		return SignedProof{}, fmt.Errorf("zkproof: bad signed proof: %w", err)
	}
	return sp, nil
}

// VerifySignedProof checks that raw carries a proof for req signed by pub.
func (s *Signer) VerifySignedProof(pub kyber.Point, req Request, raw []byte) ([]byte, error) {
	sp, err := DecodeSignedProof(raw)
	if err != nil {
		return nil, err
	}
	if err := s.scheme.Verify(pub, proofDigest(req, sp.Proof), sp.Sig); err != nil {
		return nil, err
	}
	return sp.Proof, nil
}

type signingBackend struct {
	inner  Backend
	signer *Signer
}

// WrapBackend decorates a circuit backend so every produced proof leaves
// the pool inside a SignedProof envelope bound to its request. Consumers
// with the node's verification key can then attribute and check every
// DkgProofSigned payload.
func WrapBackend(inner Backend, signer *Signer) Backend {
	return &signingBackend{inner: inner, signer: signer}
}

func (b *signingBackend) Prove(ctx context.Context, req Request) ([]byte, error) {
	proof, err := b.inner.Prove(ctx, req)
	if err != nil {
		return nil, err
	}
	sig, err := b.signer.scheme.Sign(b.signer.priv, proofDigest(req, proof))
	if err != nil {
		return nil, err
	}
	return EncodeSignedProof(SignedProof{Proof: proof, Sig: sig})
}
