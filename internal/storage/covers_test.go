package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/vrpanel/internal/storage"
)

type stubFetcher struct {
	covers map[string][]byte
	calls  int
}

func (f *stubFetcher) GetGameCover(ctx context.Context, id string) ([]byte, error) {
	f.calls++
	data, ok := f.covers[id]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return data, nil
}

func newCache(t *testing.T) (*storage.CoverCache, *stubFetcher, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	fetcher := &stubFetcher{covers: map[string][]byte{"546560": []byte("alyx-cover")}}
	return storage.NewCoverCache(storage.NewAferoStore(fs), "/cache/covers", fetcher), fetcher, fs
}

func TestCoverCache_Get(t *testing.T) {
	cache, fetcher, fs := newCache(t)
	ctx := context.Background()

	data, err := cache.Get(ctx, "546560")
	require.NoError(t, err)
	assert.Equal(t, "alyx-cover", string(data))
	assert.Equal(t, 1, fetcher.calls)

	onDisk, err := afero.ReadFile(fs, "/cache/covers/546560.jpg")
	require.NoError(t, err)
	assert.Equal(t, "alyx-cover", string(onDisk))

	// Second read is served from the cache.
	data, err = cache.Get(ctx, "546560")
	require.NoError(t, err)
	assert.Equal(t, "alyx-cover", string(data))
	assert.Equal(t, 1, fetcher.calls)
}

func TestCoverCache_FetchReplaces(t *testing.T) {
	cache, fetcher, _ := newCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "546560")
	require.NoError(t, err)

	fetcher.covers["546560"] = []byte("new-art")
	data, err := cache.Fetch(ctx, "546560")
	require.NoError(t, err)
	assert.Equal(t, "new-art", string(data))

	data, err = cache.Get(ctx, "546560")
	require.NoError(t, err)
	assert.Equal(t, "new-art", string(data))
	assert.Equal(t, 2, fetcher.calls)
}

func TestCoverCache_FetchError(t *testing.T) {
	cache, _, fs := newCache(t)

	_, err := cache.Get(context.Background(), "missing")
	require.Error(t, err)

	exists, err := afero.Exists(fs, "/cache/covers/missing.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCoverCache_Evict(t *testing.T) {
	cache, fetcher, _ := newCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "546560")
	require.NoError(t, err)
	require.NoError(t, cache.Evict(ctx, "546560"))
	require.NoError(t, cache.Evict(ctx, "546560"), "evicting twice is fine")

	_, err = cache.Get(ctx, "546560")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestCoverCache_RejectsPathIDs(t *testing.T) {
	cache, fetcher, _ := newCache(t)
	for _, id := range []string{"", ".", "..", "../etc/passwd", `a\b`, "a/b"} {
		_, err := cache.Get(context.Background(), id)
		assert.ErrorIs(t, err, storage.ErrInvalidGameID, "id %q", id)
	}
	assert.Zero(t, fetcher.calls)
}
