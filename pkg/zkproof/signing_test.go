package zkproof

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

func testRequest() Request {
	return Request{
		E3id:    events.E3id{ChainID: 1, ID: "7"},
		PartyId: 2,
		Kind:    "T0",
		Input:   []byte("pk-share"),
		Stage:   events.FailureStageKeyPublished,
	}
}

func TestSignAndVerifyRequest(t *testing.T) {
	s := NewSigner()
	req := testRequest()

	sig, err := s.SignRequest(req)
	require.NoError(t, err)
	require.NoError(t, s.VerifyRequest(s.Public(), req, sig))

	tampered := req
	tampered.PartyId = 3
	require.Error(t, s.VerifyRequest(s.Public(), tampered, sig))

	other := NewSigner()
	require.Error(t, s.VerifyRequest(other.Public(), req, sig))
}

type constantBackend struct{ proof []byte }

func (b constantBackend) Prove(context.Context, Request) ([]byte, error) { return b.proof, nil }

func TestWrapBackendProducesVerifiableEnvelope(t *testing.T) {
	s := NewSigner()
	req := testRequest()
	wrapped := WrapBackend(constantBackend{proof: []byte("proof-bytes")}, s)

	raw, err := wrapped.Prove(context.Background(), req)
	require.NoError(t, err)

	proof, err := s.VerifySignedProof(s.Public(), req, raw)
	require.NoError(t, err)
	require.Equal(t, []byte("proof-bytes"), proof)

	// an envelope bound to a different request must not verify
	other := testRequest()
	other.Kind = "C4a"
	_, err = s.VerifySignedProof(s.Public(), other, raw)
	require.Error(t, err)
}

func TestRequestDigestIsStable(t *testing.T) {
	require.Equal(t, RequestDigest(testRequest()), RequestDigest(testRequest()))

	other := testRequest()
	other.Input = []byte("different")
	require.NotEqual(t, RequestDigest(testRequest()), RequestDigest(other))
}
