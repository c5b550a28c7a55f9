package casync

import (
	"fmt"
	"io"
)

// DumpPackets is an alternate consumer of a record stream: it reads every
// record and writes one line per yielded item to w: FILE with the item's
// name and payload size for a file, GOODBYE with the name for a closed
// directory, indented two spaces per level below the root. It is a
// debugging aid, never used on the reconstruction data path.
func DumpPackets(r io.Reader, w io.Writer) error {
	p := NewParser(r)
	for {
		path, content, err := p.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		depth := len(path) - 1
		if depth < 0 {
			depth = 0
		}
		name := "."
		if len(path) > 0 {
			name = string(path[len(path)-1].Name)
		}

		var line string
		switch content.Kind {
		case KindFile:
			line = fmt.Sprintf("FILE %q size=%d", name, content.Size)
			if _, werr := io.Copy(io.Discard, content.Reader); werr != nil {
				return fmt.Errorf("draining payload for %q: %w", name, werr)
			}
		case KindDirectory:
			line = fmt.Sprintf("GOODBYE %q", name)
		}

		if _, werr := fmt.Fprintf(w, "%s%s\n", indent(depth), line); werr != nil {
			return werr
		}
	}
}

func indent(depth int) string {
	b := make([]byte, depth*2)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
