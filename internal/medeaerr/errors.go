// Package medeaerr carries the error-kind taxonomy of spec §7: every error
// the core returns to an external caller is one of these kinds, with a
// stable code and human text, and never a bare panic on client input.
package medeaerr

import "fmt"

// Kind enumerates the error categories raised by the signalling core.
type Kind string

const (
	NotFound               Kind = "NotFound"
	AlreadyExists          Kind = "AlreadyExists"
	SpecValidation         Kind = "SpecValidation"
	AuthFailed             Kind = "AuthFailed"
	SessionLost            Kind = "SessionLost"
	NegotiationFailed      Kind = "NegotiationFailed"
	IceFailed              Kind = "IceFailed"
	MediaStopped           Kind = "MediaStopped"
	TurnUnavailable        Kind = "TurnUnavailable"
	CallbackDeliveryFailed Kind = "CallbackDeliveryFailed"
)

// Error is the single error type returned by every Control Gateway and
// orchestrator operation that can fail. Code is a stable machine-readable
// string distinct from Kind (e.g. "dangling_src" for a SpecValidation of
// that particular shape); Fid is the offending element, when known.
type Error struct {
	Kind Kind
	Code string
	Text string
	Fid  string
}

func (e *Error) Error() string {
	if e.Fid != "" {
		return fmt.Sprintf("%s(%s): %s [%s]", e.Kind, e.Code, e.Text, e.Fid)
	}
	return fmt.Sprintf("%s(%s): %s", e.Kind, e.Code, e.Text)
}

// New builds an Error of the given kind.
func New(kind Kind, code, text, fid string) *Error {
	return &Error{Kind: kind, Code: code, Text: text, Fid: fid}
}

// NotFoundf builds a NotFound error.
func NotFoundf(fid, format string, a ...any) *Error {
	return New(NotFound, "not_found", fmt.Sprintf(format, a...), fid)
}

// AlreadyExistsf builds an AlreadyExists error.
func AlreadyExistsf(fid, format string, a ...any) *Error {
	return New(AlreadyExists, "already_exists", fmt.Sprintf(format, a...), fid)
}

// Validationf builds a SpecValidation error with a specific code
// (invalid_fid, unknown_kind, dangling_src, duplicate_id, kind_changed).
func Validationf(code, fid, format string, a ...any) *Error {
	return New(SpecValidation, code, fmt.Sprintf(format, a...), fid)
}
