package casync

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordBuilder struct {
	buf bytes.Buffer
}

func (b *recordBuilder) write(magic uint64, payload []byte) *recordBuilder {
	var head [16]byte
	binary.LittleEndian.PutUint64(head[0:8], uint64(16+len(payload)))
	binary.LittleEndian.PutUint64(head[8:16], magic)
	b.buf.Write(head[:])
	b.buf.Write(payload)
	return b
}

func entryPayload(mode uint64) []byte {
	var p [48]byte
	binary.LittleEndian.PutUint64(p[0:8], 0)    // feature_flags
	binary.LittleEndian.PutUint64(p[8:16], mode)
	binary.LittleEndian.PutUint64(p[16:24], 0) // flags
	binary.LittleEndian.PutUint64(p[24:32], 0) // uid
	binary.LittleEndian.PutUint64(p[32:40], 0) // gid
	binary.LittleEndian.PutUint64(p[40:48], 0) // mtime
	return p[:]
}

func nulString(s string) []byte {
	return append([]byte(s), 0)
}

const (
	modeDir = 0o040755
	modeReg = 0o100644
)

func TestParserTwoFilesThenGoodbye(t *testing.T) {
	var b recordBuilder
	b.write(magicEntry, entryPayload(modeDir)) // root
	b.write(magicFilename, nulString("a"))
	b.write(magicEntry, entryPayload(modeReg))
	b.write(magicPayload, []byte("hello"))
	b.write(magicFilename, nulString("b"))
	b.write(magicEntry, entryPayload(modeReg))
	b.write(magicPayload, []byte("world!"))
	b.write(magicGoodbye, nil)

	p := NewParser(&b.buf)

	path, content, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "./a", path.String())
	assert.Equal(t, KindFile, content.Kind)
	data, err := io.ReadAll(content.Reader)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	path, content, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, "./b", path.String())
	assert.Equal(t, KindFile, content.Kind)
	data, err = io.ReadAll(content.Reader)
	require.NoError(t, err)
	assert.Equal(t, "world!", string(data))

	path, content, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, ".", path.String())
	assert.Equal(t, KindDirectory, content.Kind)

	_, _, err = p.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParserSkipsUndrainedPayload(t *testing.T) {
	var b recordBuilder
	b.write(magicEntry, entryPayload(modeDir))
	b.write(magicFilename, nulString("a"))
	b.write(magicEntry, entryPayload(modeReg))
	b.write(magicPayload, []byte("not drained"))
	b.write(magicFilename, nulString("b"))
	b.write(magicEntry, entryPayload(modeReg))
	b.write(magicPayload, []byte("b-data"))
	b.write(magicGoodbye, nil)

	p := NewParser(&b.buf)

	_, content, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, KindFile, content.Kind)
	// deliberately not draining content.Reader

	path, content, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "./b", path.String())
	data, err := io.ReadAll(content.Reader)
	require.NoError(t, err)
	assert.Equal(t, "b-data", string(data))
}

func TestParserZeroLengthPayloadIsValid(t *testing.T) {
	var b recordBuilder
	b.write(magicEntry, entryPayload(modeDir))
	b.write(magicFilename, nulString("empty"))
	b.write(magicEntry, entryPayload(modeReg))
	b.write(magicPayload, nil)
	b.write(magicGoodbye, nil)

	p := NewParser(&b.buf)
	path, content, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "./empty", path.String())
	assert.Equal(t, int64(0), content.Size)
	data, err := io.ReadAll(content.Reader)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestParserHeaderSizeTooSmall(t *testing.T) {
	var head [16]byte
	binary.LittleEndian.PutUint64(head[0:8], 8) // less than HeaderTagLen
	binary.LittleEndian.PutUint64(head[8:16], magicEntry)

	p := NewParser(bytes.NewReader(head[:]))
	_, _, err := p.Next()
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestParserEmptyFilenameRejected(t *testing.T) {
	var b recordBuilder
	b.write(magicEntry, entryPayload(modeDir))
	b.write(magicFilename, nulString(""))

	p := NewParser(&b.buf)
	_, _, err := p.Next()
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestParserRecordSizeLimitExceeded(t *testing.T) {
	var b recordBuilder
	oversized := make([]byte, RecordSizeLimit+1)
	oversized[len(oversized)-1] = 0
	b.write(magicFilename, oversized)

	p := NewParser(&b.buf)
	_, _, err := p.Next()
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestParserUnrecognizedMagic(t *testing.T) {
	var b recordBuilder
	b.write(0xdeadbeefdeadbeef, nil)

	p := NewParser(&b.buf)
	_, _, err := p.Next()
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestParserUserGroupBeforeEntryRejected(t *testing.T) {
	var b recordBuilder
	b.write(magicUser, nulString("root"))

	p := NewParser(&b.buf)
	_, _, err := p.Next()
	require.Error(t, err)
}

func TestParserEntryTwiceRejected(t *testing.T) {
	var b recordBuilder
	b.write(magicEntry, entryPayload(modeDir))
	b.write(magicEntry, entryPayload(modeDir))

	p := NewParser(&b.buf)
	_, _, err := p.Next()
	require.Error(t, err)
}

func TestParserStickyErrorAfterFailure(t *testing.T) {
	var b recordBuilder
	b.write(0xdeadbeefdeadbeef, nil)

	p := NewParser(&b.buf)
	_, _, err1 := p.Next()
	require.Error(t, err1)
	_, _, err2 := p.Next()
	assert.Equal(t, err1, err2)
}

func TestParserUserGroupSetsNames(t *testing.T) {
	var b recordBuilder
	b.write(magicEntry, entryPayload(modeReg))
	b.write(magicUser, nulString("alice"))
	b.write(magicGroup, nulString("staff"))
	b.write(magicPayload, []byte("x"))

	p := NewParser(&b.buf)
	path, _, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, path[len(path)-1].Entry)
	assert.Equal(t, "alice", string(path[len(path)-1].Entry.UserName))
	assert.Equal(t, "staff", string(path[len(path)-1].Entry.GroupName))
}
