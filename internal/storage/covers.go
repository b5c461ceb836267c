package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// ErrInvalidGameID is returned for ids that cannot be used as a file name.
var ErrInvalidGameID = errors.New("invalid game id")

// CoverFetcher downloads a game's cover image.
type CoverFetcher interface {
	GetGameCover(ctx context.Context, id string) ([]byte, error)
}

// CoverCache keeps downloaded cover images under a directory so they are
// fetched from the appliance once.
type CoverCache struct {
	store   Store
	dir     string
	fetcher CoverFetcher
}

// NewCoverCache creates a cache rooted at dir.
func NewCoverCache(store Store, dir string, fetcher CoverFetcher) *CoverCache {
	return &CoverCache{store: store, dir: dir, fetcher: fetcher}
}

// Path returns where the cover of a game is stored.
func (c *CoverCache) Path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidGameID, id)
	}
	return filepath.Join(c.dir, id+".jpg"), nil
}

// Get returns the cover of a game, downloading and caching it on a miss.
func (c *CoverCache) Get(ctx context.Context, id string) ([]byte, error) {
	path, err := c.Path(id)
	if err != nil {
		return nil, err
	}

	if ok, err := c.store.Exists(ctx, path); err == nil && ok {
		data, err := c.read(ctx, path)
		if err == nil {
			return data, nil
		}
		slog.Warn("Failed to read cached cover, refetching", "game_id", id, "error", err)
	}

	return c.Fetch(ctx, id)
}

// Fetch downloads the cover of a game and replaces the cached copy.
func (c *CoverCache) Fetch(ctx context.Context, id string) ([]byte, error) {
	path, err := c.Path(id)
	if err != nil {
		return nil, err
	}

	data, err := c.fetcher.GetGameCover(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch cover %s: %w", id, err)
	}
	if _, err := c.store.Save(ctx, path, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("cache cover %s: %w", id, err)
	}
	slog.Debug("Cached game cover", "game_id", id, "path", path, "bytes", len(data))
	return data, nil
}

// Evict removes the cached cover of a game, if any.
func (c *CoverCache) Evict(ctx context.Context, id string) error {
	path, err := c.Path(id)
	if err != nil {
		return err
	}
	ok, err := c.store.Exists(ctx, path)
	if err != nil || !ok {
		return err
	}
	return c.store.Delete(ctx, path)
}

func (c *CoverCache) read(ctx context.Context, path string) ([]byte, error) {
	rc, err := c.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
