package media

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// PairsDirName and SinglesDirName are the destination folders the
// organizer creates; the walker never descends into them so a sorted
// root can be re-scanned safely.
const (
	PairsDirName   = "pairs"
	SinglesDirName = "singles"
)

// ListImages enumerates supported image files under root in a fixed,
// deterministic order (directory entries sorted by name, depth-first).
// Pairing depends on this order staying stable across runs, so the
// walk is intentionally sequential.
//
// pairs/ folders are always skipped. singles/ folders are skipped
// unless includeSingles is set, which is the re-processing workflow:
// re-run a previous singles set against looser thresholds. That flag
// reaches into root's singles/ even when recurse is false; otherwise
// a flat scan reads only root itself.
func ListImages(root string, recurse, includeSingles bool) ([]string, error) {
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("stat root %q: %w", root, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", root)
	}

	var images []string
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		// os.ReadDir returns entries sorted by filename, which is the
		// enumeration order the engine's tie-breaking relies on.
		entries, err := os.ReadDir(dir)
		if err != nil {
			// Unreadable root is fatal; deeper directories are not.
			if depth == 0 {
				return fmt.Errorf("read root %q: %w", dir, err)
			}
			return nil
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())

			if entry.IsDir() {
				if entry.Name() == PairsDirName {
					continue
				}
				if entry.Name() == SinglesDirName {
					// The re-processing workflow reaches into singles/
					// even on a flat scan.
					if includeSingles {
						if err := walk(path, depth+1); err != nil {
							return err
						}
					}
					continue
				}
				if !recurse {
					continue
				}
				if err := walk(path, depth+1); err != nil {
					return err
				}
				continue
			}

			if entry.Type()&fs.ModeSymlink != 0 {
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}
			if !IsImage(path) {
				continue
			}
			images = append(images, path)
		}
		return nil
	}

	if err := walk(root, 0); err != nil {
		return nil, err
	}
	return images, nil
}
