// Package apperror defines the error vocabulary shared by every layer.
//
// Two families live here:
//
//   - AppError wraps one of the sentinel errors (ErrNotFound, ErrValidation,
//     ErrConflict) with a human-readable message. Repositories return these so
//     callers can branch with errors.Is without knowing the storage backend.
//   - ProviderError is the tagged result for failures reported by the identity,
//     record or blob provider. Handlers switch on its Kind instead of poking at
//     raw status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
)

type AppError struct {
	Err     error  // sentinel
	Message string // human-readable
	Field   string // optional: form field the error belongs to
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with %s", resource, key),
	}
}

func Conflict(field, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Field:   field,
	}
}

// FieldErrors collects per-field messages so a form can report every problem
// at once instead of stopping at the first one.
type FieldErrors map[string]string

// Add records msg for field. The first message recorded for a field wins.
func (fe FieldErrors) Add(field, msg string) {
	if _, ok := fe[field]; ok {
		return
	}
	fe[field] = msg
}

func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// Err returns nil when no field failed, otherwise an error wrapping
// ErrValidation that lists every field.
func (fe FieldErrors) Err() error {
	if fe.Empty() {
		return nil
	}
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
}

// Kind classifies a provider failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// ProviderError is a failure reported by the external provider. Status is the
// HTTP status the provider answered with, or 0 when the request never got a
// response.
type ProviderError struct {
	Kind    Kind
	Status  int
	Code    string // provider error code, e.g. "invalid_credentials"
	Message string
	Err     error // transport error, if any
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("provider: %s", e.Message)
	}
	return fmt.Sprintf("provider: %s (status %d)", e.Message, e.Status)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Provider builds a ProviderError and classifies it by status.
// Only 400 counts as bad credentials/input; other 4xx codes such as 401 or 422
// are reported as unknown.
func Provider(status int, code, message string) *ProviderError {
	return &ProviderError{
		Kind:    classify(status),
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// Transport wraps an error that prevented any response from the provider.
func Transport(err error) *ProviderError {
	return &ProviderError{
		Kind:    KindUnknown,
		Message: err.Error(),
		Err:     err,
	}
}

func classify(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindInvalidCredentials
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindUnknown
	}
}

// KindOf reports the Kind of the first ProviderError in err's chain, or
// KindUnknown if there is none.
func KindOf(err error) Kind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
