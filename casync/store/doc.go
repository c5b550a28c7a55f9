// Package store provides Fetcher implementations: local filesystem,
// HTTP, and an LRU caching wrapper, for use with casync.Reassembler.
package store
