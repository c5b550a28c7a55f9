// Package archive wires together index decoding, chunk reassembly, and
// record-stream parsing for the cmd/casync subcommands.
package archive

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/casync-go/casync/casync"
	"github.com/casync-go/casync/casync/store"
)

// chunkCacheSize is the number of chunks an HTTP store's CachingFetcher
// keeps in memory, chosen to comfortably cover one archive's worth of
// re-fetched chunks (e.g. a record-stream payload referencing an earlier
// chunk again) without needing a size knob on the CLI.
const chunkCacheSize = 256

// Stream is an opened archive: a flat byte reader backed by a
// Reassembler, plus the resources that must be released once the caller
// is done draining it. Callers that want the record-stream view
// construct their own casync.NewParser(s.Reader); callers that want the
// raw TLV bytes (e.g. dump-packets) use s.Reader directly.
type Stream struct {
	Reader      *casync.FlatReader
	reassembler *casync.Reassembler
}

// Close releases the underlying zstd decoder.
func (s *Stream) Close() {
	s.reassembler.Close()
}

// Open decodes the index at caidxPath and returns a Stream whose Reader
// yields the reconstructed record-stream bytes. If storeOverride is empty, the store
// prefix is derived from caidxPath. If storeOverride is an http:// or
// https:// URL, chunks are fetched over HTTP (through an LRU cache)
// instead of from the local filesystem, and the URL is used as the
// store's base location rather than a path prefix.
func Open(ctx context.Context, caidxPath, storeOverride string) (*Stream, error) {
	f, err := os.Open(caidxPath)
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", caidxPath, err)
	}
	defer func() {
		_ = f.Close()
	}()

	_, chunks, err := casync.DecodeIndex(f)
	if err != nil {
		return nil, fmt.Errorf("decoding index %s: %w", caidxPath, err)
	}

	fetcher, prefix, err := resolveFetcher(caidxPath, storeOverride)
	if err != nil {
		return nil, err
	}

	reassembler, err := casync.NewReassembler(ctx, chunks, fetcher, prefix)
	if err != nil {
		return nil, fmt.Errorf("constructing reassembler: %w", err)
	}

	return &Stream{
		Reader:      casync.NewFlatReader(reassembler),
		reassembler: reassembler,
	}, nil
}

// resolveFetcher picks the Fetcher implementation for storeOverride: an
// HTTP store (with LRU caching) for an http:// or https:// URL, a local
// directory otherwise. It also returns the path prefix the Reassembler
// should join onto each chunk's relative path; for an HTTP store this is
// empty, since the base URL already names the store's location.
func resolveFetcher(caidxPath, storeOverride string) (casync.Fetcher, string, error) {
	if strings.HasPrefix(storeOverride, "http://") || strings.HasPrefix(storeOverride, "https://") {
		cached, err := store.NewCachingFetcher(store.NewHTTPFetcher(storeOverride), chunkCacheSize)
		if err != nil {
			return nil, "", fmt.Errorf("constructing HTTP store cache: %w", err)
		}
		return cached, "", nil
	}

	prefix := storeOverride
	if prefix == "" {
		derived, err := casync.StorePrefixFromIndexPath(caidxPath)
		if err != nil {
			return nil, "", err
		}
		prefix = derived
	}
	return store.NewLocalFetcher(""), prefix, nil
}
