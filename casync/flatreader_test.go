package casync

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSequence struct {
	chunks [][]byte
	err    error
	i      int
}

func (s *sliceSequence) Next() ([]byte, error) {
	if s.i >= len(s.chunks) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	b := s.chunks[s.i]
	s.i++
	return b, nil
}

func TestFlatReaderConcatenatesChunks(t *testing.T) {
	seq := &sliceSequence{chunks: [][]byte{[]byte("hello "), []byte("world"), []byte("!")}}
	fr := NewFlatReader(seq)

	data, err := io.ReadAll(fr)
	require.NoError(t, err)
	assert.Equal(t, "hello world!", string(data))
}

func TestFlatReaderSmallReadBuffer(t *testing.T) {
	seq := &sliceSequence{chunks: [][]byte{[]byte("abcdef"), []byte("ghi")}}
	fr := NewFlatReader(seq)

	var out []byte
	buf := make([]byte, 2)
	for {
		n, err := fr.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, "abcdefghi", string(out))
}

func TestFlatReaderSurfacesSourceError(t *testing.T) {
	boom := errors.New("boom")
	seq := &sliceSequence{chunks: [][]byte{[]byte("ok")}, err: boom}
	fr := NewFlatReader(seq)

	buf := make([]byte, 16)
	n, err := fr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(buf[:n]))

	_, err = fr.Read(buf)
	assert.ErrorIs(t, err, boom)

	// error is sticky
	_, err = fr.Read(buf)
	assert.ErrorIs(t, err, boom)
}

func TestFlatReaderEmptyChunksSkipped(t *testing.T) {
	seq := &sliceSequence{chunks: [][]byte{nil, []byte("x"), {}, []byte("y")}}
	fr := NewFlatReader(seq)

	data, err := io.ReadAll(fr)
	require.NoError(t, err)
	assert.Equal(t, "xy", string(data))
}

func TestFlatReaderNoChunks(t *testing.T) {
	seq := &sliceSequence{}
	fr := NewFlatReader(seq)

	buf := make([]byte, 4)
	n, err := fr.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}
