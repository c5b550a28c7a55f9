package casync

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ChunkIDSize is the length in bytes of a ChunkID (SHA-512/256 digest).
const ChunkIDSize = 32

// ChunkSizeMax is the largest permitted value of ChunkSize.Max (128 MiB).
const ChunkSizeMax = 128 << 20

// ChunkID is the SHA-512/256 digest of a chunk's decompressed payload. It
// is both the chunk's identifier and, via FormatChunkID, its relative
// path within a store.
type ChunkID [ChunkIDSize]byte

// headIsZero reports whether the first 8 bytes of the id are all zero, the
// heuristic the index terminator entry is detected by.
func (id ChunkID) headIsZero() bool {
	for _, b := range id[:8] {
		if b != 0 {
			return false
		}
	}
	return true
}

// FormatChunkID renders id as "AABB/AABBCCDD...EE.cacnk": the first two
// hex bytes, a slash, the full lowercase hex digest, and the ".cacnk"
// suffix. This is the chunk's relative path within a store.
func FormatChunkID(id ChunkID) string {
	full := hex.EncodeToString(id[:])
	return full[:4] + "/" + full + ".cacnk"
}

// ParseChunkID parses the textual form produced by FormatChunkID (or just
// the bare 64-character hex digest) back into a ChunkID.
func ParseChunkID(s string) (ChunkID, error) {
	var id ChunkID
	s = strings.TrimSuffix(s, ".cacnk")
	if idx := strings.LastIndexByte(s, '/'); idx >= 0 {
		s = s[idx+1:]
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse chunk id %q: %w", s, err)
	}
	if len(decoded) != ChunkIDSize {
		return id, fmt.Errorf("parse chunk id %q: want %d bytes, got %d", s, ChunkIDSize, len(decoded))
	}
	copy(id[:], decoded)
	return id, nil
}

// ChunkSize describes a chunker's parameters. It is carried through from
// the index for informational purposes; the reader's core logic does not
// use it other than to validate the invariants below.
type ChunkSize struct {
	Min uint64
	Avg uint64
	Max uint64
}

// Validate checks the ChunkSize invariants: min >= 1, max <= 128 MiB,
// min <= avg <= max.
func (cs ChunkSize) Validate() error {
	if cs.Min < 1 {
		return fmt.Errorf("chunk size: min must be >= 1, got %d", cs.Min)
	}
	if cs.Max > ChunkSizeMax {
		return fmt.Errorf("chunk size: max must be <= %d, got %d", ChunkSizeMax, cs.Max)
	}
	if cs.Min > cs.Avg || cs.Avg > cs.Max {
		return fmt.Errorf("chunk size: require min <= avg <= max, got %d <= %d <= %d", cs.Min, cs.Avg, cs.Max)
	}
	return nil
}

// Chunk is one entry of an index's chunk table. Offset is the
// cumulative end-offset of this chunk's decompressed bytes within the
// reconstructed stream.
type Chunk struct {
	Offset uint64
	ID     ChunkID
}
