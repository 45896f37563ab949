package mapkv

import (
	"errors"
	"fmt"

	"github.com/Giulio2002/mapkv/engine"
)

// Kind classifies a Store failure by what it did to the Store.
type Kind int

const (
	// KindNotOpen means the call was rejected because the Store is closed.
	// The engine was not touched.
	KindNotOpen Kind = iota + 1

	// KindTransient means a single operation failed. The Store stays open.
	KindTransient

	// KindStructural means the environment can no longer be trusted. The
	// Store has transitioned to closed and must be reopened.
	KindStructural
)

func (k Kind) String() string {
	switch k {
	case KindNotOpen:
		return "not open"
	case KindTransient:
		return "transient"
	case KindStructural:
		return "structural"
	default:
		return "unknown"
	}
}

// Error is returned by every fallible Store operation.
type Error struct {
	Op      string
	Kind    Kind
	Code    engine.Status
	Message string
	Err     error // wrapped engine error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return "mapkv: " + e.Message
	}
	return fmt.Sprintf("mapkv: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind and message so that errors.Is works
// on values produced for specific operations.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Kind == e.Kind && t.Message == e.Message
}

// Sentinel errors
var (
	ErrNotOpen     = &Error{Kind: KindNotOpen, Message: "database is not opened"}
	ErrAlreadyOpen = &Error{Kind: KindTransient, Message: "database is already opened"}
	ErrTxnDone     = &Error{Kind: KindTransient, Code: engine.BadTxn, Message: "transaction already ended"}
)

func newError(op string, kind Kind, err error) *Error {
	var ee *engine.Error
	if errors.As(err, &ee) {
		return &Error{Op: op, Kind: kind, Code: ee.Code, Message: ee.Error(), Err: err}
	}
	return &Error{Op: op, Kind: kind, Code: engine.Problem, Message: err.Error(), Err: err}
}

func errorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsNotOpen returns true if the call was rejected on a closed Store
func IsNotOpen(err error) bool {
	return errorKind(err) == KindNotOpen
}

// IsTransient returns true if the Store is still usable after err
func IsTransient(err error) bool {
	return errorKind(err) == KindTransient
}

// IsStructural returns true if err closed the Store
func IsStructural(err error) bool {
	return errorKind(err) == KindStructural
}

// IsMapFull returns true if err was caused by the map capacity being reached
func IsMapFull(err error) bool {
	return engine.IsMapFull(err)
}
