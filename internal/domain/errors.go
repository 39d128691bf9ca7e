package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can branch without inspecting messages.
type Kind int

const (
	// KindInternal is anything not produced through this package.
	KindInternal Kind = iota
	// KindValidation is malformed or out-of-range input, rejected before any state change.
	KindValidation
	// KindNotPermitted is a business-rule violation: illegal transition, unknown entity, wrong party.
	KindNotPermitted
	// KindExternal is a payment or provider failure.
	KindExternal
	// KindConsistency is calendar bookkeeping that could not be applied; never aborts an operation.
	KindConsistency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotPermitted:
		return "not_permitted"
	case KindExternal:
		return "external"
	case KindConsistency:
		return "consistency"
	default:
		return "internal"
	}
}

// Error codes.
const (
	CodeInvalidInput              = "invalid_input"
	CodeInvalidWindow             = "invalid_window"
	CodeInvalidTemplate           = "invalid_template"
	CodeUnknownCategory           = "unknown_category"
	CodeJobNotFound               = "job_not_found"
	CodeWorkerNotFound            = "worker_not_found"
	CodeClientNotFound            = "client_not_found"
	CodeWorkerExists              = "worker_exists"
	CodeClientExists              = "client_exists"
	CodeInvalidOAuthState         = "invalid_oauth_state"
	CodeIdentityMismatch          = "identity_mismatch"
	CodeTransitionNotPermitted    = "transition_not_permitted"
	CodePaymentNotCollected       = "payment_not_collected"
	CodePaymentStatusNotPermitted = "payment_status_not_permitted"
	CodeRatingNotPermitted        = "rating_not_permitted"
	CodeConcurrentUpdate          = "concurrent_update"
	CodePaymentFailed             = "payment_failed"
	CodeRefundFailed              = "refund_failed"
	CodeCalendarCommitFailed      = "calendar_commit_failed"
	CodeCalendarImportFailed      = "calendar_import_failed"
	CodeCalendarDrift             = "calendar_drift"
)

// Error is the error type returned by the dispatch core.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a KindValidation error.
func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

// NotPermitted builds a KindNotPermitted error.
func NotPermitted(code, msg string) *Error {
	return &Error{Kind: KindNotPermitted, Code: code, Message: msg}
}

// External builds a KindExternal error wrapping the collaborator failure.
func External(code, msg string, err error) *Error {
	return &Error{Kind: KindExternal, Code: code, Message: msg, Err: err}
}

// Consistency builds a KindConsistency error.
func Consistency(code, msg string) *Error {
	return &Error{Kind: KindConsistency, Code: code, Message: msg}
}

// KindOf reports the kind of err, KindInternal when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the code of err, or "" when err is not a *Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
