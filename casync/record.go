package casync

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Record kind magics.
const (
	magicEntry    uint64 = 0x1396fabcea5bbb51
	magicUser     uint64 = 0xf453131aaeeaccb3
	magicGroup    uint64 = 0x25eb6ac969396a52
	magicFilename uint64 = 0x6dbb6ebcb3161f0b
	magicPayload  uint64 = 0x8b9e1d93d6dcffc9
	magicGoodbye  uint64 = 0xdfd35c5e8327c403
)

// HeaderTagLen is the fixed size, in bytes, of a record's header_size +
// kind_magic pair.
const HeaderTagLen = 16

// RecordSizeLimit bounds the payload size (the header tag excluded) of
// any record other than PAYLOAD, which is unbounded: such a record is
// rejected once its header_size exceeds RecordSizeLimit + HeaderTagLen.
const RecordSizeLimit = 64 * 1024

// Entry carries the per-item attributes set by an ENTRY record and
// amended by USER/GROUP records.
type Entry struct {
	FeatureFlags uint64
	Mode         uint64
	Flags        uint64
	UID          uint64
	GID          uint64
	Mtime        uint64
	UserName     []byte
	GroupName    []byte
}

// IsDir reports whether Mode's file-type bits (0o170000) select a
// directory.
func (e *Entry) IsDir() bool { return e.Mode&0o170000 == 0o040000 }

// IsRegular reports whether Mode's file-type bits select a regular file.
func (e *Entry) IsRegular() bool { return e.Mode&0o170000 == 0o100000 }

// Item is one element of a Path: a name, and the Entry describing it once
// an ENTRY record has been applied.
type Item struct {
	Name  []byte
	Entry *Entry
}

// Path is the stack of Items from the archive root down to the item
// currently being described. The root item has Name "." and a nil Entry
// until the stream's first ENTRY record is applied to it.
type Path []Item

// String renders p as a slash-joined relative path, e.g. "./a/b".
func (p Path) String() string {
	s := ""
	for i, item := range p {
		if i > 0 {
			s += "/"
		}
		s += string(item.Name)
	}
	return s
}

func (p Path) clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// ContentKind distinguishes the two kinds of item a Parser yields.
type ContentKind int

const (
	// KindFile means the Content carries a bounded reader over a file's
	// payload bytes.
	KindFile ContentKind = iota
	// KindDirectory means a directory has just been closed (a GOODBYE
	// record was consumed); Content carries no reader.
	KindDirectory
)

// Content is the value yielded alongside a Path by Parser.Next.
type Content struct {
	Kind   ContentKind
	Size   int64     // valid only when Kind == KindFile
	Reader io.Reader // valid only when Kind == KindFile; must be drained before the next Next() call, or it is skipped
}

// Parser is a pull-based TLV state machine over a casync record stream.
// It is not safe for concurrent use.
type Parser struct {
	r    io.Reader
	path Path

	pending io.Reader // unread remainder of the last yielded file payload
	err     error      // sticky error from a prior Next() call
}

// NewParser returns a Parser reading the record stream from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{
		r:    r,
		path: Path{{Name: []byte(".")}},
	}
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// readNulString reads exactly length bytes and requires the final byte to
// be a NUL terminator, returning the bytes with that terminator stripped.
func readNulString(r io.Reader, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, protocolErrorf("NUL-terminated string record has zero length")
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if buf[len(buf)-1] != 0 {
		return nil, protocolErrorf("string record missing trailing NUL")
	}
	return buf[:len(buf)-1], nil
}

func (p *Parser) tail() *Item {
	return &p.path[len(p.path)-1]
}

// drainPending discards whatever remains of the last yielded file
// payload; an unread payload is silently skipped rather than treated
// as an error.
func (p *Parser) drainPending() error {
	if p.pending == nil {
		return nil
	}
	_, err := io.Copy(io.Discard, p.pending)
	p.pending = nil
	if err != nil {
		return fmt.Errorf("skipping undrained payload: %w", err)
	}
	return nil
}

// Next reads records until it can yield the next (Path, Content) pair. It
// returns io.EOF once the Path stack has emptied (the stream is
// exhausted). After Next returns a non-EOF error, the Parser must not be
// used again.
func (p *Parser) Next() (Path, Content, error) {
	if p.err != nil {
		return nil, Content{}, p.err
	}

	path, content, err := p.next()
	if err != nil {
		p.err = err
	}
	return path, content, err
}

func (p *Parser) next() (Path, Content, error) {
	for {
		if len(p.path) == 0 {
			return nil, Content{}, io.EOF
		}

		if err := p.drainPending(); err != nil {
			return nil, Content{}, err
		}

		headerSize, err := readUint64(p.r)
		if err != nil {
			if err == io.EOF {
				return nil, Content{}, protocolErrorf("unexpected end of stream: %d item(s) still open", len(p.path))
			}
			return nil, Content{}, fmt.Errorf("reading record header: %w", err)
		}
		if headerSize < HeaderTagLen {
			return nil, Content{}, protocolErrorf("header_size %d is less than %d", headerSize, HeaderTagLen)
		}

		kindMagic, err := readUint64(p.r)
		if err != nil {
			return nil, Content{}, fmt.Errorf("reading record kind magic: %w", err)
		}

		payloadLen := headerSize - HeaderTagLen

		if kindMagic != magicPayload && headerSize > RecordSizeLimit+HeaderTagLen {
			return nil, Content{}, protocolErrorf("record of kind %#x exceeds size limit: %d bytes", kindMagic, headerSize)
		}

		switch kindMagic {
		case magicEntry:
			if err := p.applyEntry(payloadLen); err != nil {
				return nil, Content{}, err
			}
		case magicUser:
			if err := p.applyUserOrGroup(payloadLen, true); err != nil {
				return nil, Content{}, err
			}
		case magicGroup:
			if err := p.applyUserOrGroup(payloadLen, false); err != nil {
				return nil, Content{}, err
			}
		case magicFilename:
			if err := p.applyFilename(payloadLen); err != nil {
				return nil, Content{}, err
			}
		case magicPayload:
			return p.applyPayload(payloadLen)
		case magicGoodbye:
			return p.applyGoodbye(payloadLen)
		default:
			return nil, Content{}, protocolErrorf("unrecognized record kind magic %#x", kindMagic)
		}
	}
}

func (p *Parser) applyEntry(payloadLen uint64) error {
	if payloadLen != 48 {
		return protocolErrorf("ENTRY payload must be 48 bytes, got %d", payloadLen)
	}
	tail := p.tail()
	if tail.Entry != nil {
		return protocolErrorf("entry without data")
	}
	var e Entry
	var err error
	if e.FeatureFlags, err = readUint64(p.r); err != nil {
		return fmt.Errorf("reading ENTRY feature_flags: %w", err)
	}
	if e.Mode, err = readUint64(p.r); err != nil {
		return fmt.Errorf("reading ENTRY mode: %w", err)
	}
	if e.Flags, err = readUint64(p.r); err != nil {
		return fmt.Errorf("reading ENTRY flags: %w", err)
	}
	if e.UID, err = readUint64(p.r); err != nil {
		return fmt.Errorf("reading ENTRY uid: %w", err)
	}
	if e.GID, err = readUint64(p.r); err != nil {
		return fmt.Errorf("reading ENTRY gid: %w", err)
	}
	if e.Mtime, err = readUint64(p.r); err != nil {
		return fmt.Errorf("reading ENTRY mtime: %w", err)
	}
	tail.Entry = &e
	return nil
}

func (p *Parser) applyUserOrGroup(payloadLen uint64, isUser bool) error {
	tail := p.tail()
	if tail.Entry == nil {
		kind := "GROUP"
		if isUser {
			kind = "USER"
		}
		return protocolErrorf("%s record before ENTRY", kind)
	}
	name, err := readNulString(p.r, payloadLen)
	if err != nil {
		return err
	}
	if isUser {
		tail.Entry.UserName = name
	} else {
		tail.Entry.GroupName = name
	}
	return nil
}

func (p *Parser) applyFilename(payloadLen uint64) error {
	name, err := readNulString(p.r, payloadLen)
	if err != nil {
		return err
	}
	if len(name) == 0 {
		return protocolErrorf("empty filename")
	}
	p.path = append(p.path, Item{Name: name})
	return nil
}

func (p *Parser) applyPayload(payloadLen uint64) (Path, Content, error) {
	snapshot := p.path.clone()
	limited := io.LimitReader(p.r, int64(payloadLen))
	p.pending = limited
	p.path = p.path[:len(p.path)-1]
	return snapshot, Content{Kind: KindFile, Size: int64(payloadLen), Reader: limited}, nil
}

func (p *Parser) applyGoodbye(payloadLen uint64) (Path, Content, error) {
	if _, err := io.CopyN(io.Discard, p.r, int64(payloadLen)); err != nil {
		return nil, Content{}, fmt.Errorf("reading GOODBYE payload: %w", err)
	}
	snapshot := p.path.clone()
	p.path = p.path[:len(p.path)-1]
	return snapshot, Content{Kind: KindDirectory}, nil
}
