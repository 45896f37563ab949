package engine

import (
	"errors"
	"fmt"
)

// Error is the failure type every backend returns from the primitive surface.
type Error struct {
	Code    Status
	Message string
	Err     error // wrapped native error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status is an engine status code. Values match MDBX so that codes coming
// out of libmdbx can be passed through untouched.
type Status int

const (
	// Success indicates the operation completed successfully
	Success Status = 0

	// InvalidArgument is EINVAL, returned for bad sizes and handles
	InvalidArgument Status = 22

	// KeyExist indicates the key/data pair already exists
	KeyExist Status = -30799

	// NotFound indicates the key/data pair was not found
	NotFound Status = -30798

	// Corrupted indicates the database is corrupted
	Corrupted Status = -30796

	// Panic indicates a fatal environment error
	Panic Status = -30795

	// VersionMismatch indicates DB version doesn't match library
	VersionMismatch Status = -30794

	// Invalid indicates the file is not a valid database file
	Invalid Status = -30793

	// MapFull indicates the environment map size was reached
	MapFull Status = -30792

	// TablesFull indicates the environment maxdbs was reached
	TablesFull Status = -30791

	// ReadersFull indicates the environment maxreaders was reached
	ReadersFull Status = -30790

	// TxnFull indicates the transaction has too many dirty pages
	TxnFull Status = -30788

	// CursorFull indicates cursor stack overflow (corruption)
	CursorFull Status = -30787

	// PageFull indicates a page has no space (internal error)
	PageFull Status = -30786

	// UnableExtendMapSize indicates the mapping could not be extended
	UnableExtendMapSize Status = -30785

	// Incompatible indicates incompatible operation or flags
	Incompatible Status = -30784

	// BadReaderSlot indicates a reader slot was corrupted or reused
	BadReaderSlot Status = -30783

	// BadTxn indicates the transaction is invalid
	BadTxn Status = -30782

	// BadValSize indicates invalid key or data size
	BadValSize Status = -30781

	// BadDBI indicates the table handle is invalid
	BadDBI Status = -30780

	// Problem indicates an unexpected internal error
	Problem Status = -30779

	// Busy indicates another writer holds the environment
	Busy Status = -30778

	// MultiValue indicates the key has multiple associated values
	MultiValue Status = -30421
)

var statusMessages = map[Status]string{
	Success:         "success",
	InvalidArgument: "invalid argument",
	KeyExist:        "key/data pair already exists",
	NotFound:        "key/data pair not found",
	Corrupted:       "database is corrupted",
	Panic:           "fatal environment error",
	VersionMismatch: "database version mismatch",
	Invalid:         "file is not a valid database",
	MapFull:         "environment mapsize limit reached",
	TablesFull:      "environment maxdbs limit reached",
	ReadersFull:     "environment maxreaders limit reached",
	TxnFull:         "transaction has too many dirty pages",
	CursorFull:      "cursor stack overflow",
	PageFull:        "page has no more space",
	Incompatible:    "incompatible operation or flags",
	BadReaderSlot:   "reader slot was corrupted or reused",
	BadTxn:          "transaction is invalid",
	BadValSize:      "invalid key or value size",
	BadDBI:          "invalid table handle",
	Problem:         "unexpected internal error",
	Busy:            "another write transaction is running",
	MultiValue:      "key has multiple associated values",

	UnableExtendMapSize: "unable to extend the map size",
}

// String describes the status the way the engine's strerror would.
func (s Status) String() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return fmt.Sprintf("unknown status %d", int(s))
}

// NewError creates a new Error with the given code
func NewError(code Status) *Error {
	return &Error{Code: code, Message: code.String()}
}

// WrapError creates a new Error wrapping another error
func WrapError(code Status, err error) *Error {
	e := NewError(code)
	e.Err = err
	return e
}

// Code returns the status of err, Success for nil and Problem for
// errors that did not come from a backend.
func Code(err error) Status {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Problem
}

// IsNotFound returns true if the error is NotFound
func IsNotFound(err error) bool {
	return err != nil && Code(err) == NotFound
}

// IsMapFull returns true if the error is MapFull
func IsMapFull(err error) bool {
	return err != nil && Code(err) == MapFull
}
