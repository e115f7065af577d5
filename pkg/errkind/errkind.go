// Package errkind implements the error taxonomy and the trap combinator of
// spec §7: every actor wraps its handler body in Trap, which classifies any
// returned error into an events.EnclaveError with an EType tag.
package errkind

import (
	"errors"
	"fmt"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

// Classified is an error already tagged with its EType, e.g. returned by a
// store or RPC client that knows its own failure class.
type Classified struct {
	Type EType
	Err  error
}

// EType is an alias of events.EType, so a classified error's tag goes onto
// the EnclaveError payload unchanged.
type EType = events.EType

const (
	Data     = events.ETypeData
	IO       = events.ETypeIO
	Net      = events.ETypeNet
	Crypto   = events.ETypeCrypto
	Protocol = events.ETypeProtocol
)

func (c *Classified) Error() string { return fmt.Sprintf("[%s] %v", c.Type, c.Err) }
func (c *Classified) Unwrap() error { return c.Err }

// Classify wraps err with an explicit EType.
func Classify(t EType, err error) error {
	if err == nil {
		return nil
	}
	return &Classified{Type: t, Err: err}
}

// TypeOf returns the EType of err, defaulting to Protocol when the error
// was not explicitly classified (spec §7: protocol invariant violations are
// the default failure class for unclassified logic errors).
func TypeOf(err error) EType {
	var c *Classified
	if errors.As(err, &c) {
		return c.Type
	}
	return Protocol
}

// Trap runs fn, converting any returned error into an EnclaveError payload
// ready to publish on the bus. It never panics: a recovered panic is
// reported as a Protocol-class error, matching the teacher's pattern of
// catching handler panics at the RPC boundary (core/drand_daemon.go).
func Trap(fn func() error) (err error, payload *events.EnclaveError) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			payload = &events.EnclaveError{Etype: Protocol, Message: err.Error()}
		}
	}()

	err = fn()
	if err == nil {
		return nil, nil
	}
	payload = &events.EnclaveError{Etype: TypeOf(err), Message: err.Error()}
	return err, payload
}
