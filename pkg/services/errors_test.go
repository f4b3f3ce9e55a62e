package services

import (
	"net/http"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/tgdrive/clouddrive/internal/blob"
	"github.com/tgdrive/clouddrive/pkg/store"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		kind string
		code int
	}{
		{fail(ErrNotFound, "file %s", "x"), "NotFound", http.StatusNotFound},
		{fail(ErrInvalidQuery, ""), "InvalidQuery", http.StatusBadRequest},
		{fail(ErrExpired, ""), "Expired", http.StatusGone},
		{fail(ErrRevoked, ""), "Revoked", http.StatusGone},
		{fail(ErrInvalidPassword, ""), "InvalidPassword", http.StatusUnauthorized},
		{storeErr(store.ErrNotEmpty, "folder"), "InvalidState", http.StatusConflict},
		{storeErr(store.ErrConflict, "folder"), "Conflict", http.StatusConflict},
		{storeErr(errors.Wrap(blob.ErrUnavailable, "put"), "blob"), "UpstreamFailure", http.StatusServiceUnavailable},
		{storeErr(errors.New("boom"), "file"), "Internal", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, Kind(tt.err), tt.err.Error())
		assert.Equal(t, tt.code, StatusCode(tt.err), tt.err.Error())
	}
	assert.NoError(t, storeErr(nil, "x"))
}

func TestCleanName(t *testing.T) {
	name, err := cleanName("  notes.txt ")
	assert.NoError(t, err)
	assert.Equal(t, "notes.txt", name)

	for _, bad := range []string{"", "   ", "a/b", `a\b`, "a\x00b", string(make([]byte, 256))} {
		_, err := cleanName(bad)
		assert.Error(t, err, bad)
	}
}
