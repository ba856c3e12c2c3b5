package display

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Placeholder returns the static image shown at startup and left on the
// sinks at exit: the splash file fitted to the panel, or a blank panel
// when path is empty or unreadable. The error reports why the splash was
// not used.
func Placeholder(path string, width, height, rotation int) (*image.NRGBA, error) {
	blank := func() *image.NRGBA {
		return rotate(newCanvas(width, height, colBackground).img, rotation)
	}
	if path == "" {
		return blank(), nil
	}

	src, err := imaging.Open(path)
	if err != nil {
		return blank(), fmt.Errorf("display: load splash %s: %w", path, err)
	}
	fitted := imaging.Fill(src, width, height, imaging.Center, imaging.Lanczos)
	return rotate(fitted, rotation), nil
}
