// Package mtree renders a casync archive's entries as one line per item,
// in the style of BSD mtree(5) output, adapted from the original
// implementation's tool/src/main.rs mtree subcommand.
package mtree

import (
	"fmt"
	"io"

	"github.com/casync-go/casync/casync"
)

// Render drains p, writing one line per yielded item to w: its path,
// file mode in octal, owning uid/gid, and (for files) size.
func Render(p *casync.Parser, w io.Writer) error {
	for {
		path, content, err := p.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if len(path) == 0 {
			continue
		}
		last := path[len(path)-1]
		if last.Entry == nil {
			return fmt.Errorf("mtree: %s: no entry for item", path.String())
		}

		switch content.Kind {
		case casync.KindFile:
			if _, werr := fmt.Fprintf(w, "%s mode=%04o uid=%d gid=%d size=%d\n",
				path.String(), last.Entry.Mode&0o7777, last.Entry.UID, last.Entry.GID, content.Size); werr != nil {
				return werr
			}
			if _, werr := io.Copy(io.Discard, content.Reader); werr != nil {
				return fmt.Errorf("mtree: reading %s: %w", path.String(), werr)
			}
		case casync.KindDirectory:
			if _, werr := fmt.Fprintf(w, "%s mode=%04o uid=%d gid=%d type=dir\n",
				path.String(), last.Entry.Mode&0o7777, last.Entry.UID, last.Entry.GID); werr != nil {
				return werr
			}
		}
	}
}
