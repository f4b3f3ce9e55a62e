package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	a, n, err := Sum(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Len(t, a, 64)

	b, _, err := Sum(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, _, err := Sum(strings.NewReader("hello world!"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSigner(t *testing.T) {
	s := NewSigner("share-link", "secret")
	mac := s.Sign("link", "file", "2026-01-01T00:00:00Z")

	assert.True(t, s.Verify(mac, "link", "file", "2026-01-01T00:00:00Z"))
	assert.False(t, s.Verify(mac, "link", "other", "2026-01-01T00:00:00Z"))
	// field boundaries are part of the MAC
	assert.False(t, s.Verify(mac, "linkfile", "", "2026-01-01T00:00:00Z"))

	other := NewSigner("blob-access", "secret")
	assert.False(t, other.Verify(mac, "link", "file", "2026-01-01T00:00:00Z"))

	rotated := NewSigner("share-link", "new-secret")
	assert.False(t, rotated.Verify(mac, "link", "file", "2026-01-01T00:00:00Z"))
}
