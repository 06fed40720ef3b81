package frame

import (
	"fmt"
	"image"
	"os"

	"golang.org/x/image/bmp"
)

// dumpBMP writes one presented frame to path as a BMP image. pix holds
// tightly packed BGRA rows, the presentation byte order; BMP wants RGBA
// through image.RGBA, so the red and blue channels are swapped on the way
// out.
func dumpBMP(path string, pix []byte, width, height int) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i+3 < len(pix) && i+3 < len(img.Pix); i += 4 {
		img.Pix[i+0] = pix[i+2]
		img.Pix[i+1] = pix[i+1]
		img.Pix[i+2] = pix[i+0]
		img.Pix[i+3] = pix[i+3]
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("frame: create dump file: %w", err)
	}
	if err := bmp.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("frame: encode dump: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("frame: close dump file: %w", err)
	}
	return nil
}
