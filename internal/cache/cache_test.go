package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	ID        string
	Name      string
	ExpiresAt time.Time
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	value := entry{ID: "1", Name: "file.jpeg", ExpiresAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var result entry

	cache := NewMemoryCache(1 * 1024 * 1024)

	require.NoError(t, cache.Set(ctx, "key", value, time.Second))
	require.NoError(t, cache.Get(ctx, "key", &result))
	assert.Equal(t, value.ID, result.ID)
	assert.Equal(t, value.Name, result.Name)
	assert.True(t, value.ExpiresAt.Equal(result.ExpiresAt))

	require.NoError(t, cache.Delete(ctx, "key"))
	assert.ErrorIs(t, cache.Get(ctx, "key", &result), ErrMiss)
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(1024 * 1024)
	calls := 0
	fn := func() (entry, error) {
		calls++
		return entry{ID: "x"}, nil
	}

	v, err := Fetch(ctx, cache, KeyShare("x"), time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "x", v.ID)

	v, err = Fetch(ctx, cache, KeyShare("x"), time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "x", v.ID)
	assert.Equal(t, 1, calls)
}

func TestFetch_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(1024 * 1024)
	boom := errors.New("boom")

	_, err := Fetch(ctx, cache, "k", time.Minute, func() (entry, error) { return entry{}, boom })
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, cache.Get(ctx, "k", &entry{}), ErrMiss)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "shares:abc", KeyShare("abc"))
	assert.Equal(t, "users:stats:alice", KeyStats("alice"))
	assert.Equal(t, "a:[1,2]:nil", Key("a", []int{1, 2}, nil))
}
