package dwg

import "fmt"

// Reason classifies why a decode stage failed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonOpen
	ReasonVersion
	ReasonFileHeader
	ReasonClasses
	ReasonOffsets
	ReasonTables
	ReasonEntities
)

var reasonNames = [...]string{
	ReasonNone:       "none",
	ReasonOpen:       "bad open",
	ReasonVersion:    "bad version",
	ReasonFileHeader: "bad file header",
	ReasonClasses:    "bad classes",
	ReasonOffsets:    "bad object offsets",
	ReasonTables:     "bad tables",
	ReasonEntities:   "bad entities",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("reason(%d)", int(r))
	}
	return reasonNames[r]
}

// Fatal reports whether a failure of this kind stops the decode.
func (r Reason) Fatal() bool {
	return r == ReasonOpen || r == ReasonVersion || r == ReasonFileHeader
}

// Error is a decode failure tagged with its Reason.
type Error struct {
	Reason  Reason
	Message string
	Cause   error

	kind *Error // sentinel this error was derived from
}

// Sentinel errors, one per Reason. Errors returned by the decoder match
// them with errors.Is.
var (
	ErrBadOpen       = &Error{Reason: ReasonOpen, Message: "cannot read drawing"}
	ErrBadVersion    = &Error{Reason: ReasonVersion, Message: "unrecognized version"}
	ErrBadFileHeader = &Error{Reason: ReasonFileHeader, Message: "bad file header"}
	ErrBadClasses    = &Error{Reason: ReasonClasses, Message: "bad classes section"}
	ErrBadOffsets    = &Error{Reason: ReasonOffsets, Message: "bad object map"}
	ErrBadTables     = &Error{Reason: ReasonTables, Message: "bad tables"}
	ErrBadEntities   = &Error{Reason: ReasonEntities, Message: "bad entities"}

	// ErrPartialSupport is returned for versions whose container layout
	// is recognized but not decoded (R10/R11 and R2007 or later). It
	// also matches ErrBadFileHeader.
	ErrPartialSupport = &Error{Reason: ReasonFileHeader, Message: "format partially supported"}
)

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches sentinels by reason. ErrPartialSupport only matches errors
// derived from it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t == ErrPartialSupport {
		return e.kind == ErrPartialSupport
	}
	return t.kind == nil && t.Cause == nil && t.Reason == e.Reason
}

// newError derives an error from a sentinel. The detail is appended to
// the sentinel message.
func newError(kind *Error, cause error, format string, args ...any) *Error {
	msg := kind.Message
	if format != "" {
		msg += ": " + fmt.Sprintf(format, args...)
	}
	return &Error{Reason: kind.Reason, Message: msg, Cause: cause, kind: kind}
}
