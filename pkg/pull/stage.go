package pull

import (
	"fmt"
	"io"
	"os"
)

// copyFile copies src to dst, truncating any existing dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	return out.Close()
}

// commitStaged promotes the staged set into the destination in two
// passes. Pass one lands every file in the destination directory under
// a *.partial name: a same-filesystem rename when possible, a
// cross-device copy otherwise. That is the pass that can realistically
// fail midway, and a failure there removes the partial files and leaves
// no final name behind. Pass two renames the partials to their final
// names, all within one directory.
func commitStaged(staged []*transfer) error {
	partials := make([]string, len(staged))
	committed := false
	defer func() {
		if committed {
			return
		}
		for _, p := range partials {
			if p != "" {
				os.Remove(p)
			}
		}
	}()

	for i, t := range staged {
		tmp := t.destPath + ".partial"
		if err := os.Rename(t.stagePath, tmp); err != nil {
			if err := copyFile(t.stagePath, tmp); err != nil {
				return fmt.Errorf("committing %s: %w", t.filename, err)
			}
		}
		partials[i] = tmp
	}

	for i, t := range staged {
		if err := os.Rename(partials[i], t.destPath); err != nil {
			for _, done := range staged[:i] {
				os.Remove(done.destPath)
			}
			return fmt.Errorf("committing %s: %w", t.filename, err)
		}
		partials[i] = ""
	}
	committed = true
	return nil
}
