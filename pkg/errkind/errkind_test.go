package errkind_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/errkind"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

func TestTrapClassifiesExplicit(t *testing.T) {
	err, payload := errkind.Trap(func() error {
		return errkind.Classify(errkind.IO, errors.New("disk full"))
	})
	require.Error(t, err)
	require.Equal(t, events.ETypeIO, payload.Etype)
}

func TestTrapDefaultsToProtocol(t *testing.T) {
	err, payload := errkind.Trap(func() error {
		return errors.New("share verification failed")
	})
	require.Error(t, err)
	require.Equal(t, events.ETypeProtocol, payload.Etype)
}

func TestTrapCatchesPanic(t *testing.T) {
	err, payload := errkind.Trap(func() error {
		panic("boom")
	})
	require.Error(t, err)
	require.Equal(t, events.ETypeProtocol, payload.Etype)
}

func TestTrapPassesThroughSuccess(t *testing.T) {
	err, payload := errkind.Trap(func() error { return nil })
	require.NoError(t, err)
	require.Nil(t, payload)
}
