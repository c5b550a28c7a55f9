// Package fastexport renders a casync archive as a git fast-import
// stream, adapted from the original implementation's casync/src/tools.rs
// fast_export function.
package fastexport

import (
	"fmt"
	"io"

	"github.com/casync-go/casync/casync"
)

// Render drains p, writing one "M <mode> inline <path>" + "data <len>" +
// raw bytes block per regular file to w. Directories are required to
// have a directory-mode entry but otherwise produce no output, matching
// git fast-import's implicit directory creation.
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
			return fmt.Errorf("fast-export: %s: no entry for item", path.String())
		}

		switch content.Kind {
		case casync.KindFile:
			if !last.Entry.IsRegular() {
				return fmt.Errorf("fast-export: %s: data for non-regular file", path.String())
			}
			mode := "100644"
			if last.Entry.Mode&0o100 != 0 {
				mode = "100755"
			}
			if _, werr := fmt.Fprintf(w, "M %s inline %s\n", mode, path.String()); werr != nil {
				return werr
			}
			if _, werr := fmt.Fprintf(w, "data %d\n", content.Size); werr != nil {
				return werr
			}
			if _, werr := io.Copy(w, content.Reader); werr != nil {
				return fmt.Errorf("fast-export: copying %s: %w", path.String(), werr)
			}
			if _, werr := fmt.Fprintln(w); werr != nil {
				return werr
			}
		case casync.KindDirectory:
			if !last.Entry.IsDir() {
				return fmt.Errorf("fast-export: %s: directory end for non-directory", path.String())
			}
		}
	}
}

// Preamble writes the commit header for one archive's worth of entries,
// matching the original CLI's per-archive commit framing.
func Preamble(w io.Writer, refPrefix string, nth int) error {
	if _, err := fmt.Fprintf(w, "commit %s%d\n", refPrefix, nth); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "committer casync-go <casync-go@localhost> 0 +0000"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "data 0"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "deleteall")
	return err
}
