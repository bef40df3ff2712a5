// Package organize moves a pairing partition into pairs/ and singles/
// subfolders of the scanned root.
package organize

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/tiMaxal/pairs3d/internal/media"
	"github.com/tiMaxal/pairs3d/internal/pair"
)

// Failure records one file that could not be moved. The file stays at
// Path; nothing is retried or rolled back.
type Failure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report summarises one organize run.
type Report struct {
	PairsMoved   int       `json:"pairs_moved"`
	SinglesMoved int       `json:"singles_moved"`
	Failures     []Failure `json:"failures"`
}

// Organize creates pairs/ and singles/ under root and moves every file
// of the partition into them. Each move is attempted independently; a
// failed move is recorded in the report and the rest proceed. Only a
// failure to create the destination folders themselves is fatal.
func Organize(root string, part pair.Partition) (Report, error) {
	pairsDir := filepath.Join(root, media.PairsDirName)
	singlesDir := filepath.Join(root, media.SinglesDirName)
	for _, dir := range []string{pairsDir, singlesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Report{}, fmt.Errorf("create %q: %w", dir, err)
		}
	}

	report := Report{Failures: []Failure{}}

	for _, p := range part.Pairs {
		okA := moveInto(pairsDir, p.A.Path, &report)
		okB := moveInto(pairsDir, p.B.Path, &report)
		if okA && okB {
			report.PairsMoved++
		}
	}

	for _, s := range part.Singles {
		// A file already sitting in a singles/ folder (include-singles
		// re-processing) stays put rather than being moved onto itself.
		if filepath.Dir(s.Path) == singlesDir ||
			filepath.Base(filepath.Dir(s.Path)) == media.SinglesDirName {
			continue
		}
		if moveInto(singlesDir, s.Path, &report) {
			report.SinglesMoved++
		}
	}

	slog.Info("organize finished",
		"root", root,
		"pairs_moved", report.PairsMoved,
		"singles_moved", report.SinglesMoved,
		"failures", len(report.Failures))
	return report, nil
}

// moveInto moves src into dir under a collision-free name and records
// any failure in the report. Returns true on success.
func moveInto(dir, src string, report *Report) bool {
	dst, err := collisionFreePath(dir, filepath.Base(src))
	if err != nil {
		report.Failures = append(report.Failures, Failure{Path: src, Reason: err.Error()})
		return false
	}
	if err := moveFile(src, dst); err != nil {
		slog.Warn("move failed", "src", src, "dst", dst, "error", err)
		report.Failures = append(report.Failures, Failure{Path: src, Reason: err.Error()})
		return false
	}
	return true
}

// collisionFreePath returns dir/base, or dir/base_N before the
// extension when that name is taken. Files are never overwritten.
func collisionFreePath(dir, base string) (string, error) {
	candidate := filepath.Join(dir, base)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for n := 1; ; n++ {
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}
		if n > 10000 {
			return "", fmt.Errorf("no free name for %q in %q", base, dir)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
}

// moveFile tries os.Rename first; falls back to copy+delete on
// cross-device errors.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if le, ok := err.(*os.LinkError); ok && errors.Is(le.Err, syscall.EXDEV) {
		return copyThenDelete(src, dst)
	} else {
		return err
	}
}

// copyThenDelete copies src to dst then removes src. dst is cleaned up on error.
func copyThenDelete(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}
