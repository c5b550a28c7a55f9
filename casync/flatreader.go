package casync

import "io"

// ChunkSequence yields decoded chunk byte slices one at a time. Next
// returns io.EOF once no chunks remain; any other error is fatal and
// surfaced on the FlatReader.Read call that would have first touched that
// chunk's bytes.
type ChunkSequence interface {
	Next() ([]byte, error)
}

// FlatReader concatenates the byte slices produced by a ChunkSequence
// into one seamless io.Reader, pulling a new source buffer only once the
// previous one is fully delivered; it never reads ahead beyond one
// source buffer.
type FlatReader struct {
	src  ChunkSequence
	buf  []byte
	err  error
	done bool
}

// NewFlatReader returns a FlatReader draining src.
func NewFlatReader(src ChunkSequence) *FlatReader {
	return &FlatReader{src: src}
}

// Read implements io.Reader. It returns 0, io.EOF exactly when src is
// exhausted, and never blends bytes from two different source buffers
// into the same Read call's EOF/error edge in a way that loses data.
func (f *FlatReader) Read(p []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	for len(f.buf) == 0 {
		if f.done {
			return 0, io.EOF
		}
		next, err := f.src.Next()
		if err != nil {
			if err == io.EOF {
				f.done = true
				return 0, io.EOF
			}
			f.err = err
			return 0, err
		}
		f.buf = next
	}
	n := copy(p, f.buf)
	f.buf = f.buf[n:]
	return n, nil
}
