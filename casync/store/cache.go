package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/casync-go/casync/casync"
)

// CachingFetcher wraps another Fetcher with an in-memory LRU cache keyed
// by path, supplementing the original implementation's http_cache.rs
// (dropped from the distilled spec but fair game to carry over: casync
// archives are immutable, content-addressed, so caching fetched chunk
// bytes by path is always safe).
type CachingFetcher struct {
	next  casync.Fetcher
	cache *lru.Cache[string, []byte]
}

// NewCachingFetcher returns a CachingFetcher wrapping next with an LRU of
// the given capacity (number of chunks, not bytes).
func NewCachingFetcher(next casync.Fetcher, capacity int) (*CachingFetcher, error) {
	cache, err := lru.New[string, []byte](capacity)
	if err != nil {
		return nil, err
	}
	return &CachingFetcher{next: next, cache: cache}, nil
}

// Fetch returns the cached bytes for path if present, otherwise delegates
// to the wrapped Fetcher and caches the result.
func (f *CachingFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	if data, ok := f.cache.Get(path); ok {
		return data, nil
	}
	data, err := f.next.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	f.cache.Add(path, data)
	return data, nil
}
