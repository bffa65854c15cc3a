// Package errs defines the failure kinds reported by the acquisition pipeline.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUnsupportedInput: the input matched no platform pattern, the local
	// file is missing, or its format is not accepted.
	KindUnsupportedInput
	// KindTransient: network or tool failure whose output matched a known
	// transient signature, or a timeout.
	KindTransient
	// KindToolFatal: non-zero exit with no transient signature.
	KindToolFatal
	// KindArtifactNotFound: a tool reported success but produced no output file.
	KindArtifactNotFound
	// KindDecodeFailure: captured output could not be decoded with any codec.
	KindDecodeFailure
	// KindAcquisitionFailed: a strategy exhausted its options.
	KindAcquisitionFailed
	// KindConfig: required executable or setting is missing or invalid.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedInput:
		return "unsupported_input"
	case KindTransient:
		return "transient"
	case KindToolFatal:
		return "tool_fatal"
	case KindArtifactNotFound:
		return "artifact_not_found"
	case KindDecodeFailure:
		return "decode_failure"
	case KindAcquisitionFailed:
		return "acquisition_failed"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error is the error type used across the pipeline.
type Error struct {
	Kind Kind
	Op   string // operation, e.g. "yt-dlp metadata"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of the given kind.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a kind and operation. A nil err yields nil.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// From converts any error into an *Error, keeping an existing kind and
// falling back to the given one.
func From(err error, fallback Kind, op string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(fallback, op, err)
}
