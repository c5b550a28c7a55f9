package casync

import (
	"encoding/binary"
	"errors"
	"io"
	"strings"
)

const (
	indexHeaderSize = 48
	magicIndex      = 0x96824d9c7b129ff9
	magicTable      = 0xe75b9e112f17417d
	tableSizeTail   = 0xFFFFFFFFFFFFFFFF

	tableEntrySize = ChunkIDSize + 8 // offset + id
)

// DecodeIndex reads a .caidx/.caibx stream and returns its chunker
// parameters and ordered chunk table. The returned chunk slice is
// never empty; a valid index always has at least one chunk.
func DecodeIndex(r io.Reader) (ChunkSize, []Chunk, error) {
	var header [56]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return ChunkSize{}, nil, malformedIndexf(err, "reading header")
	}

	headerSize := binary.LittleEndian.Uint64(header[0:8])
	if headerSize != indexHeaderSize {
		return ChunkSize{}, nil, malformedIndex("header_size must be 48")
	}

	magic := binary.LittleEndian.Uint64(header[8:16])
	if magic != magicIndex {
		return ChunkSize{}, nil, malformedIndex("index magic mismatch")
	}

	// feature_flags at header[16:24] is ignored.

	chunkSize := ChunkSize{
		Min: binary.LittleEndian.Uint64(header[24:32]),
		Avg: binary.LittleEndian.Uint64(header[32:40]),
		Max: binary.LittleEndian.Uint64(header[40:48]),
	}
	if err := chunkSize.Validate(); err != nil {
		return ChunkSize{}, nil, malformedIndexf(err, "chunk size invariants")
	}

	tableSize := binary.LittleEndian.Uint64(header[48:56])
	if tableSize != tableSizeTail {
		return ChunkSize{}, nil, malformedIndex("table_size must be 0xFFFFFFFFFFFFFFFF")
	}

	var tableMagicBuf [8]byte
	if _, err := io.ReadFull(r, tableMagicBuf[:]); err != nil {
		return ChunkSize{}, nil, malformedIndexf(err, "reading table magic")
	}
	if binary.LittleEndian.Uint64(tableMagicBuf[:]) != magicTable {
		return ChunkSize{}, nil, malformedIndex("table magic missing")
	}

	var chunks []Chunk
	var entry [tableEntrySize]byte
	for {
		if _, err := io.ReadFull(r, entry[:]); err != nil {
			return ChunkSize{}, nil, malformedIndexf(err, "reading table entry")
		}

		offset := binary.LittleEndian.Uint64(entry[0:8])
		var id ChunkID
		copy(id[:], entry[8:8+ChunkIDSize])

		if offset == 0 && id.headIsZero() {
			// Terminator entry: the stream must be at EOF immediately after.
			var extra [1]byte
			if _, err := io.ReadFull(r, extra[:]); !errors.Is(err, io.EOF) {
				return ChunkSize{}, nil, malformedIndex("unexpected bytes after terminator")
			}
			break
		}

		chunks = append(chunks, Chunk{Offset: offset, ID: id})
	}

	if len(chunks) == 0 {
		return ChunkSize{}, nil, malformedIndex("chunks must be non-empty")
	}
	if chunks[0].Offset == 0 {
		return ChunkSize{}, nil, malformedIndex("first chunk offset must be > 0")
	}

	return chunkSize, chunks, nil
}

// StorePrefixFromIndexPath derives a chunk store's root path from its
// companion index's path by replacing the ".caidx" suffix with ".castr".
// An indexPath not ending in ".caidx" is an error; callers that need a
// different convention must compute the prefix themselves.
func StorePrefixFromIndexPath(indexPath string) (string, error) {
	if !strings.HasSuffix(indexPath, ".caidx") {
		return "", malformedIndex("index path does not end in .caidx")
	}
	return strings.TrimSuffix(indexPath, ".caidx") + ".castr", nil
}
