// Package apperr defines the error kinds surfaced by the curation core.
// Every error carries a machine-checkable Kind plus a human-readable detail.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindUnauthorized              Kind = "unauthorized"
	KindValidation                Kind = "validation_error"
	KindNotFound                  Kind = "not_found"
	KindInvalidJobStatus          Kind = "invalid_job_status"
	KindCannotDeleteActive        Kind = "cannot_delete_active"
	KindCannotDeleteWithActiveJob Kind = "cannot_delete_with_active_jobs"
	KindNoActiveConfiguration     Kind = "no_active_configuration"
	KindUpstream                  Kind = "upstream_error"
	KindInternal                  Kind = "internal_error"
)

// FieldError names a single offending input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind   Kind
	Detail string
	Fields []FieldError

	// Transient is meaningful for KindUpstream only: true when a retry may succeed,
	// false when the failure is structural (missing column/function, bad config).
	Transient bool

	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil && e.Kind != KindValidation {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so callers can write
// errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Detail == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthorized              = &Error{Kind: KindUnauthorized}
	ErrValidation                = &Error{Kind: KindValidation}
	ErrNotFound                  = &Error{Kind: KindNotFound}
	ErrInvalidJobStatus          = &Error{Kind: KindInvalidJobStatus}
	ErrCannotDeleteActive        = &Error{Kind: KindCannotDeleteActive}
	ErrCannotDeleteWithActiveJob = &Error{Kind: KindCannotDeleteWithActiveJob}
	ErrNoActiveConfiguration     = &Error{Kind: KindNoActiveConfiguration}
	ErrUpstream                  = &Error{Kind: KindUpstream}
	ErrInternal                  = &Error{Kind: KindInternal}
)

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsTransient reports whether err is an upstream failure that may succeed on retry.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindUpstream && e.Transient
	}
	return false
}

func Unauthorized(detail string) *Error {
	return &Error{Kind: KindUnauthorized, Detail: detail}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Detail: resource + " not found"}
}

func Validation(detail string) *Error {
	return &Error{Kind: KindValidation, Detail: detail}
}

// ValidationFields builds a validation error from field errors, sorted by field name
// so the message is stable.
func ValidationFields(fields []FieldError) *Error {
	sorted := append([]FieldError(nil), fields...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Field < sorted[j].Field })

	parts := make([]string, 0, len(sorted))
	for _, f := range sorted {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return &Error{
		Kind:   KindValidation,
		Detail: strings.Join(parts, "; "),
		Fields: sorted,
	}
}

func InvalidJobStatus(current, requested string) *Error {
	return &Error{
		Kind:   KindInvalidJobStatus,
		Detail: fmt.Sprintf("cannot move job from %q to %q", current, requested),
	}
}

func CannotDeleteActive() *Error {
	return &Error{Kind: KindCannotDeleteActive, Detail: "weight configuration is active; activate another one first"}
}

func CannotDeleteWithActiveJobs(n int) *Error {
	return &Error{
		Kind:   KindCannotDeleteWithActiveJob,
		Detail: fmt.Sprintf("weight configuration is referenced by %d pending or running job(s)", n),
	}
}

func NoActiveConfiguration(anyConfigs bool) *Error {
	if anyConfigs {
		return &Error{Kind: KindNoActiveConfiguration, Detail: "weight configurations exist but none is active; activate one"}
	}
	return &Error{Kind: KindNoActiveConfiguration, Detail: "no weight configurations exist; create and activate one"}
}

func Upstream(detail string, transient bool, err error) *Error {
	return &Error{Kind: KindUpstream, Detail: detail, Transient: transient, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Detail: "unexpected failure", Err: err}
}
