// Package casync reconstructs the byte stream of a casync archive from a
// content-addressed chunk store and parses it into a sequence of
// filesystem entries.
//
// An archive is described by an index (a chunk table) and backed by a
// store of individually compressed, hash-verified chunks. Reconstruction
// is pull-driven: the record-stream Parser reads from a FlatReader over a
// Reassembler (NewReassembler), which fetches, decompresses and verifies
// one chunk at a time via a Fetcher supplied by the caller.
package casync
