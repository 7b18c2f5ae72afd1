// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable domain error code.
type Code string

const (
	CodeNotFound                Code = "NOT_FOUND"
	CodeAlreadyExists           Code = "ALREADY_EXISTS"
	CodeInvalidInput            Code = "INVALID_INPUT"
	CodeForbidden               Code = "FORBIDDEN"
	CodeInvalidStatusTransition Code = "INVALID_STATUS_TRANSITION"
	CodeActiveNoModification    Code = "ACTIVE_NO_MODIFICATION"
	CodeActiveNoDeletion        Code = "ACTIVE_NO_DELETION"
	CodeValidatedImmutable      Code = "VALIDATED_IMMUTABLE"
	CodeNotRejectedCannotEdit   Code = "NOT_REJECTED_CANNOT_EDIT"
	CodeNoPartyResults          Code = "NO_PARTY_RESULTS"
	CodeAlreadyValidated        Code = "ALREADY_VALIDATED"
	CodeAlreadyRejected         Code = "ALREADY_REJECTED"
	CodeCannotDeleteValidated   Code = "CANNOT_DELETE_VALIDATED"
	CodeNoResultsForCenter      Code = "NO_RESULTS_FOR_CENTER"
	CodePhotoRequired           Code = "PHOTO_REQUIRED"
	CodeNotAllPostesValidated   Code = "NOT_ALL_POSTES_VALIDATED"
	CodeNoPostesForCenter       Code = "NO_POSTES_FOR_CENTER"
	CodeReasonRequired          Code = "REASON_REQUIRED"
	CodeInvalidPhotoURL         Code = "INVALID_PHOTO_URL"
	CodePartyInUse              Code = "PARTY_IN_USE"
)

// Error is a domain failure. Two Errors match under errors.Is when their codes match,
// so callers compare against the sentinels below regardless of message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrNotFound                = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists           = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrInvalidInput            = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrForbidden               = &Error{Code: CodeForbidden, Message: "outside of caller's scope"}
	ErrInvalidStatusTransition = &Error{Code: CodeInvalidStatusTransition, Message: "invalid status transition"}
	ErrActiveNoModification    = &Error{Code: CodeActiveNoModification, Message: "election in progress: type and vote date are frozen"}
	ErrActiveNoDeletion        = &Error{Code: CodeActiveNoDeletion, Message: "election in progress cannot be deleted"}
	ErrValidatedImmutable      = &Error{Code: CodeValidatedImmutable, Message: "validated record cannot be modified"}
	ErrNotRejectedCannotEdit   = &Error{Code: CodeNotRejectedCannotEdit, Message: "only rejected results can be edited"}
	ErrNoPartyResults          = &Error{Code: CodeNoPartyResults, Message: "result has no party votes"}
	ErrAlreadyValidated        = &Error{Code: CodeAlreadyValidated, Message: "already validated"}
	ErrAlreadyRejected         = &Error{Code: CodeAlreadyRejected, Message: "already rejected"}
	ErrCannotDeleteValidated   = &Error{Code: CodeCannotDeleteValidated, Message: "validated record cannot be deleted"}
	ErrNoResultsForCenter      = &Error{Code: CodeNoResultsForCenter, Message: "no result entered for this center"}
	ErrPhotoRequired           = &Error{Code: CodePhotoRequired, Message: "tally sheet photo required"}
	ErrNotAllPostesValidated   = &Error{Code: CodeNotAllPostesValidated, Message: "not every station of the center is validated"}
	ErrNoPostesForCenter       = &Error{Code: CodeNoPostesForCenter, Message: "center has no station results"}
	ErrReasonRequired          = &Error{Code: CodeReasonRequired, Message: "rejection reason required"}
	ErrInvalidPhotoURL         = &Error{Code: CodeInvalidPhotoURL, Message: "photo URL is not an accepted image or PDF location"}
	ErrPartyInUse              = &Error{Code: CodePartyInUse, Message: "party has recorded votes"}
)

// TransitionError reports a refused status change. It matches ErrInvalidStatusTransition.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStatusTransition
}

// CodeOf returns the domain code carried by err, or "" for infrastructure errors.
func CodeOf(err error) Code {
	var te *TransitionError
	if errors.As(err, &te) {
		return CodeInvalidStatusTransition
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
