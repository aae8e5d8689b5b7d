package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	locator, err := s.Store(ctx, "12/abc_id.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "12/abc_id.pdf", locator)

	data, err := s.Retrieve(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	entries, err := os.ReadDir(filepath.Join(s.Root(), "12"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	require.NoError(t, s.Delete(ctx, locator))
	_, err = s.Retrieve(ctx, locator)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.NoError(t, s.Delete(ctx, locator), "deleting twice is fine")
}

func TestLocalStoreRejectsEscapes(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside.pdf", "/etc/passwd", "a/../../b"} {
		_, err := s.Store(ctx, key, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidLocator, key)
	}
}

func TestLocalStoreHonoursCancelledContext(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Store(ctx, "1/a.pdf", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

type failingStore struct {
	calls int
	err   error
}

func (f *failingStore) Store(context.Context, string, []byte) (string, error) {
	f.calls++
	return "", f.err
}

func (f *failingStore) Retrieve(context.Context, string) ([]byte, error) {
	f.calls++
	return nil, f.err
}

func (f *failingStore) Delete(context.Context, string) error {
	f.calls++
	return f.err
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingStore{err: errors.New("disk unavailable")}
	b := NewBreakerStore(inner, BreakerConfig{
		Name:             "test",
		FailureThreshold: 2,
		Timeout:          time.Hour,
	}, zerolog.Nop())
	ctx := context.Background()

	_, err := b.Store(ctx, "k", nil)
	require.Error(t, err)
	_, err = b.Store(ctx, "k", nil)
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err = b.Retrieve(ctx, "k")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls, "open circuit short-circuits the inner store")
}

func TestBreakerIgnoresMissingBlobs(t *testing.T) {
	inner := &failingStore{err: os.ErrNotExist}
	b := NewBreakerStore(inner, BreakerConfig{Name: "test", FailureThreshold: 1, Timeout: time.Hour}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := b.Retrieve(context.Background(), "missing")
		assert.ErrorIs(t, err, os.ErrNotExist)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerPassesThrough(t *testing.T) {
	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	b := NewBreakerStore(local, DefaultBreakerConfig(), zerolog.Nop())
	ctx := context.Background()

	loc, err := b.Store(ctx, "3/x.png", []byte{1, 2, 3})
	require.NoError(t, err)

	data, err := b.Retrieve(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.NoError(t, b.Delete(ctx, loc))
}
