package media

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// takenAt returns the EXIF capture time of the image at path.
// Returns the zero time (no error) for files without usable EXIF data;
// the caller falls back to the filesystem mtime.
func takenAt(path string) time.Time {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{} // no EXIF, not an error
	}
	t, err := x.DateTime()
	if err != nil {
		return time.Time{}
	}
	return t
}
