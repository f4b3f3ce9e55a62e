package services

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/tgdrive/clouddrive/internal/blob"
	"github.com/tgdrive/clouddrive/pkg/store"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidParent   = errors.New("invalid parent folder")
	ErrInvalidQuery    = errors.New("invalid query")
	ErrInvalidState    = errors.New("invalid state")
	ErrExpired         = errors.New("share link expired")
	ErrRevoked         = errors.New("share link revoked")
	ErrUpstream        = errors.New("storage temporarily unavailable")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidPassword = errors.New("invalid password")
)

var kinds = []struct {
	err  error
	kind string
	code int
}{
	{ErrNotFound, "NotFound", http.StatusNotFound},
	{ErrInvalidParent, "InvalidParent", http.StatusBadRequest},
	{ErrInvalidQuery, "InvalidQuery", http.StatusBadRequest},
	{ErrInvalidInput, "InvalidInput", http.StatusBadRequest},
	{ErrInvalidState, "InvalidState", http.StatusConflict},
	{ErrConflict, "Conflict", http.StatusConflict},
	{ErrExpired, "Expired", http.StatusGone},
	{ErrRevoked, "Revoked", http.StatusGone},
	{ErrInvalidPassword, "InvalidPassword", http.StatusUnauthorized},
	{ErrUpstream, "UpstreamFailure", http.StatusServiceUnavailable},
}

type apiError struct {
	err  error
	code int
}

func (a apiError) Error() string {
	return a.err.Error()
}

func (a *apiError) Code() int {
	if a.code == 0 {
		return http.StatusInternalServerError
	}
	return a.code
}

func (a *apiError) Unwrap() error {
	return a.err
}

var _ error = apiError{}

// fail wraps a sentinel with a message and the matching status code.
func fail(kind error, format string, args ...any) error {
	err := kind
	if format != "" {
		err = errors.Wrapf(kind, format, args...)
	}
	return &apiError{err: err, code: StatusCode(kind)}
}

// Kind names the error category of err, or "Internal".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}

// StatusCode maps err to an HTTP status.
func StatusCode(err error) int {
	var ae *apiError
	if errors.As(err, &ae) && ae.code != 0 {
		return ae.code
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return http.StatusInternalServerError
}

// storeErr translates store and blob failures; what names the record.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fail(ErrNotFound, "%s", what)
	case errors.Is(err, store.ErrConflict):
		return fail(ErrConflict, "%s already exists", what)
	case errors.Is(err, store.ErrNotEmpty):
		return fail(ErrInvalidState, "%s is not empty", what)
	case errors.Is(err, store.ErrStateMismatch):
		return fail(ErrInvalidState, "%s", what)
	case errors.Is(err, blob.ErrUnavailable):
		return &apiError{err: errors.Wrap(ErrUpstream, err.Error()), code: http.StatusServiceUnavailable}
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return err
	}
	return &apiError{err: err}
}
