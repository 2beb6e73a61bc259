// Package apperr defines the error kinds shared across providers, the draft
// store and the command surface.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable error classification.
type Kind string

const (
	KindInvalidAPIKey       Kind = "INVALID_API_KEY"
	KindRateLimit           Kind = "RATE_LIMIT"
	KindInsufficientCredits Kind = "INSUFFICIENT_CREDITS"
	KindAccessForbidden     Kind = "ACCESS_FORBIDDEN"
	KindAllProvidersFailed  Kind = "ALL_PROVIDERS_FAILED"
	KindNoSuitableImages    Kind = "NO_SUITABLE_IMAGES"
	KindDraftNotFound       Kind = "DRAFT_NOT_FOUND"
	KindFileExists          Kind = "FILE_EXISTS"
	KindTemplateNotFound    Kind = "TEMPLATE_NOT_FOUND"
	KindMissingVariable     Kind = "MISSING_VARIABLE"
	KindUnknown             Kind = "UNKNOWN_ERROR"
)

// Domain selects the status mapping used by FromStatus.
type Domain int

const (
	DomainAI Domain = iota
	DomainImage
)

// Error carries a Kind together with a short human message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

var (
	ErrDraftNotFound      = &Error{Kind: KindDraftNotFound}
	ErrFileExists         = &Error{Kind: KindFileExists}
	ErrAllProvidersFailed = &Error{Kind: KindAllProvidersFailed}
	ErrNoSuitableImages   = &Error{Kind: KindNoSuitableImages}
	ErrTemplateNotFound   = &Error{Kind: KindTemplateNotFound}
)

// New returns an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap returns an Error of the given kind wrapping err.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// FromStatus maps an upstream HTTP status to a Kind.
func FromStatus(d Domain, status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindInvalidAPIKey
	case http.StatusTooManyRequests:
		return KindRateLimit
	case http.StatusPaymentRequired:
		if d == DomainAI {
			return KindInsufficientCredits
		}
	case http.StatusForbidden:
		if d == DomainImage {
			return KindAccessForbidden
		}
	}
	return KindUnknown
}

// UserMessage renders a short, user-safe description of err.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindInvalidAPIKey:
		return "the provider rejected the API key"
	case KindRateLimit:
		return "the provider is rate limiting requests, try again later"
	case KindInsufficientCredits:
		return "the provider account has insufficient credits"
	case KindAccessForbidden:
		return "access to the provider was denied"
	case KindAllProvidersFailed:
		return "all providers are unavailable right now"
	case KindNoSuitableImages:
		return "no suitable images were found"
	case KindDraftNotFound:
		return "draft not found"
	case KindFileExists:
		return "file already exists"
	case KindTemplateNotFound:
		return "prompt template not found"
	case KindMissingVariable:
		var e *Error
		if errors.As(err, &e) && e.Message != "" {
			return e.Message
		}
		return "a required template variable is missing"
	}
	return "unexpected error"
}
