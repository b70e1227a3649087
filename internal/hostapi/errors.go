package hostapi

import (
	"errors"
	"fmt"
)

// Sentinel errors for the capability failure taxonomy. Probes classify
// gateway failures with errors.Is against these.
var (
	// ErrNotFound signals a missing file or secret entry.
	ErrNotFound = errors.New("not found")
	// ErrIO signals a filesystem read or write failure.
	ErrIO = errors.New("io error")
	// ErrNetwork signals a connection, DNS, or timeout failure.
	ErrNetwork = errors.New("network error")
	// ErrUnsupported signals a capability unavailable on this platform.
	ErrUnsupported = errors.New("unsupported on this platform")
	// ErrQuery signals malformed SQL, a rejected statement, or store I/O failure.
	ErrQuery = errors.New("query error")
)

// Error wraps one of the sentinel kinds with the failing operation and cause.
type Error struct {
	Kind error  // one of the sentinels above
	Op   string // e.g. "fs.readText", "http.request"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.Error(), e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind.Error())
}

func (e *Error) Unwrap() error { return e.Kind }

func notFoundErr(op string, err error) error {
	return &Error{Kind: ErrNotFound, Op: op, Err: err}
}

func ioErr(op string, err error) error {
	return &Error{Kind: ErrIO, Op: op, Err: err}
}

func networkErr(op string, err error) error {
	return &Error{Kind: ErrNetwork, Op: op, Err: err}
}

func unsupportedErr(op string) error {
	return &Error{Kind: ErrUnsupported, Op: op}
}

func queryErr(op string, err error) error {
	return &Error{Kind: ErrQuery, Op: op, Err: err}
}
