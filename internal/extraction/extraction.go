// Package extraction reads the purchase total out of a receipt photo via
// an external vision model. Failures carry an explicit kind: transient
// failures are worth a bounded retry, permanent ones route the ticket to
// manual review immediately.
package extraction

import (
	"context"
	"errors"
	"fmt"
)

// Result is a successful extraction. Amount is nil when the model read
// the image but found no final total — a well-formed negative result,
// never retried.
type Result struct {
	Amount     *float64
	Confidence float64
	RawDetail  string
}

// ErrorKind classifies an extraction failure.
type ErrorKind int

const (
	// KindTransient covers timeouts, connection resets, rate limits,
	// and upstream 5xx — safe to retry.
	KindTransient ErrorKind = iota
	// KindPermanent covers malformed requests, auth failures, and
	// unparseable responses — retrying cannot help.
	KindPermanent
)

// Error is a classified extraction failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransient:
		return fmt.Sprintf("transient extraction failure: %v", e.Err)
	default:
		return fmt.Sprintf("permanent extraction failure: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func transientErr(err error) error { return &Error{Kind: KindTransient, Err: err} }
func permanentErr(err error) error { return &Error{Kind: KindPermanent, Err: err} }

// IsTransient reports whether err is an extraction failure worth retrying.
func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransient
}

// Extractor is the narrow contract the conversation flow depends on.
type Extractor interface {
	ExtractTotal(ctx context.Context, image []byte) (Result, error)
}
