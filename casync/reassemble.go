package casync

import (
	"context"
	"crypto/sha512"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Fetcher retrieves the raw (compressed) bytes stored at a path relative
// to a store's root, e.g. "AABB/AABB....cacnk" as produced by
// FormatChunkID. Implementations live in package store.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Reassembler turns an index's chunk table into a ChunkSequence: each
// Next() call fetches, decompresses, and verifies exactly one chunk. It
// fetches at most one chunk ahead of what has been consumed, mirroring
// the teacher's single-slot read-ahead in filen/download.go's
// ChunkedReader, collapsed from a ring buffer to one outstanding fetch
// since this reader is forward-only.
type Reassembler struct {
	ctx     context.Context
	chunks  []Chunk
	fetcher Fetcher
	prefix  string
	decoder *zstd.Decoder

	next    int
	err     error // sticky error from a prior Next() call
	results chan fetchOutcome
	wg      sync.WaitGroup // tracks the outstanding background fetchOne, if any
}

type fetchOutcome struct {
	data []byte
	err  error
}

// NewReassembler returns a Reassembler over chunks, fetching each one's
// compressed bytes from fetcher under storePrefix (see
// StorePrefixFromIndexPath). The returned Reassembler owns decoder
// resources and must be Closed.
func NewReassembler(ctx context.Context, chunks []Chunk, fetcher Fetcher, storePrefix string) (*Reassembler, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("constructing zstd decoder: %w", err)
	}

	r := &Reassembler{
		ctx:     ctx,
		chunks:  chunks,
		fetcher: fetcher,
		prefix:  storePrefix,
		decoder: dec,
		results: make(chan fetchOutcome, 1),
	}
	if len(r.chunks) > 0 {
		r.startFetch(0)
	}
	return r, nil
}

// Close waits for any in-flight background fetch to finish, then
// releases the Reassembler's zstd decoder. It must be called after the
// caller is done with the Reassembler, even on an early abort, since a
// fetchOne goroutine may still be decompressing with the same decoder.
func (r *Reassembler) Close() {
	r.wg.Wait()
	r.decoder.Close()
}

func (r *Reassembler) startFetch(i int) {
	r.wg.Add(1)
	go r.fetchOne(i)
}

// Next implements ChunkSequence. Chunks are produced in index order; a
// fetch of chunk i+1 is started as soon as chunk i's result has been
// delivered, so it proceeds concurrently with the caller consuming
// chunk i's bytes. After Next returns a non-EOF error, the Reassembler
// must not be used again; it returns that same error on every
// subsequent call instead of blocking on a fetch that was never
// started.
func (r *Reassembler) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.next >= len(r.chunks) {
		return nil, io.EOF
	}

	outcome := <-r.results
	r.next++
	if outcome.err != nil {
		r.err = outcome.err
		return nil, outcome.err
	}
	if r.next < len(r.chunks) {
		r.startFetch(r.next)
	}
	return outcome.data, nil
}

func (r *Reassembler) fetchOne(i int) {
	defer r.wg.Done()
	data, err := r.fetchAndVerify(i)
	r.results <- fetchOutcome{data: data, err: err}
}

// fetchAndVerify performs the fetch -> decompress -> verify pipeline for
// a single chunk. A checksum mismatch is fatal: casync chunks are never
// retried.
func (r *Reassembler) fetchAndVerify(i int) ([]byte, error) {
	c := r.chunks[i]
	path := FormatChunkID(c.ID)
	if r.prefix != "" {
		path = r.prefix + "/" + path
	}

	compressed, err := r.fetcher.Fetch(r.ctx, path)
	if err != nil {
		return nil, &FetchError{Path: path, Err: err}
	}

	decompressed, err := r.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, &MalformedChunkError{ID: c.ID, Err: err}
	}

	got := ChunkID(sha512.Sum512_256(decompressed))
	if got != c.ID {
		return nil, &ChecksumMismatchError{Want: c.ID, Got: got}
	}
	return decompressed, nil
}
