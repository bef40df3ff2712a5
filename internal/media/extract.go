package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corona10/goimagehash"

	"github.com/tiMaxal/pairs3d/internal/pair"
)

// Extract builds the pairing descriptor for the image at path: a
// 64-bit perceptual hash of the decoded pixels plus a timestamp. The
// EXIF capture time is preferred; files without EXIF fall back to the
// filesystem modification time, matching how camera-fresh cha-cha
// shots are actually ordered on disk.
func Extract(path string) (pair.Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return pair.Descriptor{}, fmt.Errorf("stat %q: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return pair.Descriptor{}, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	img, err := decodeImage(ext, f)
	if err != nil {
		return pair.Descriptor{}, fmt.Errorf("decode %q: %w", path, err)
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return pair.Descriptor{}, fmt.Errorf("hash %q: %w", path, err)
	}

	ts := takenAt(path)
	if ts.IsZero() {
		ts = info.ModTime()
	}

	return pair.Descriptor{
		Path:      path,
		Timestamp: ts,
		Hash:      hash.GetHash(),
	}, nil
}
