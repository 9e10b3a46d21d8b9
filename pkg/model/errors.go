package model

import "fmt"

// ErrorKind is the closed set of error kinds the engine surfaces to
// callers (spec §7). Each kind carries a short Tag and a human-readable
// Hint so a CLI/UI layer can render guidance ("try /new or /restore
// latest") without string-matching error text.
type ErrorKind string

const (
	ErrValidationFailed      ErrorKind = "validation_failed"
	ErrCompressionFailed     ErrorKind = "compression_failed"
	ErrCompressionExhausted  ErrorKind = "compression_exhausted"
	ErrSnapshotFailed        ErrorKind = "snapshot_failed"
	ErrSessionNotFound       ErrorKind = "session_not_found"
	ErrSnapshotNotFound      ErrorKind = "snapshot_not_found"
	ErrWindowExceeded        ErrorKind = "window_exceeded"
	ErrModelUnavailable      ErrorKind = "model_unavailable"
	ErrStorageUnavailable    ErrorKind = "storage_unavailable"
)

var hints = map[ErrorKind]string{
	ErrValidationFailed:     "run /compact and retry",
	ErrCompressionFailed:    "transient provider error, retry the turn",
	ErrCompressionExhausted: "session too large to continue, start new or restore a snapshot",
	ErrSnapshotFailed:       "check disk space and permissions, then retry",
	ErrSessionNotFound:      "the session id is unknown, try /new",
	ErrSnapshotNotFound:     "try /snapshot list to see available snapshots",
	ErrWindowExceeded:       "split the message into smaller turns",
	ErrModelUnavailable:     "choose a different model or retry later",
	ErrStorageUnavailable:   "check the storage root is writable",
}

// EngineError is the error type returned by public engine operations.
type EngineError struct {
	Kind ErrorKind
	Tag  string
	Hint string
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (%s)", e.Tag, e.Err, e.Hint)
	}
	return fmt.Sprintf("%s (%s)", e.Tag, e.Hint)
}

func (e *EngineError) Unwrap() error { return e.Err }

// NewEngineError builds an EngineError for kind, wrapping err (which may
// be nil) and filling in the kind's default tag and hint.
func NewEngineError(kind ErrorKind, err error) *EngineError {
	return &EngineError{
		Kind: kind,
		Tag:  string(kind),
		Hint: hints[kind],
		Err:  err,
	}
}

// Is allows errors.Is(err, model.ErrCompressionExhausted) style checks
// by comparing the Kind field rather than identity.
func (e *EngineError) Is(target error) bool {
	te, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

// Sentinel returns a zero-valued *EngineError of the given kind, suitable
// for use as the target of errors.Is.
func Sentinel(kind ErrorKind) *EngineError {
	return &EngineError{Kind: kind}
}
