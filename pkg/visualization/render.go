// Package visualization renders float images, detection masks and residual
// overlays for inspection, and saves them to disk.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"

	"bbscatter/internal/models"
)

// AutoRange returns the finite minimum and maximum of img. Images without
// finite values give [0, 1].
func AutoRange(img *models.Image) (lo, hi float64) {
	finite := make([]float64, 0, len(img.Data))
	for _, v := range img.Data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 1
	}
	return floats.Min(finite), floats.Max(finite)
}

// ToGray16 maps img onto 16-bit grey levels, clipping to [lo, hi]. Values at
// or below lo are black and values at or above hi are white. NaN is black.
func ToGray16(img *models.Image, lo, hi float64) *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, img.Cols, img.Rows))
	span := hi - lo
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			v := img.At(r, c)
			var t float64
			switch {
			case math.IsNaN(v) || span <= 0:
				t = 0
			default:
				t = math.Max(0, math.Min(1, (v-lo)/span))
			}
			out.SetGray16(c, r, color.Gray16{Y: uint16(math.Round(t * 65535))})
		}
	}
	return out
}

// MaskToGray converts a mask to an 8-bit image with foreground at 255.
func MaskToGray(mask *models.Mask) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, mask.Cols, mask.Rows))
	for i, v := range mask.Data {
		if v != 0 {
			out.Pix[i] = 255
		}
	}
	return out
}

// SaveImage writes img to filename, choosing the encoder from the extension
// and creating the parent directory when needed.
func SaveImage(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filename, err)
	}
	if err := imaging.Save(img, filename); err != nil {
		return fmt.Errorf("failed to save %s: %w", filename, err)
	}
	return nil
}

// SaveFloat renders img with its automatic range and saves it.
func SaveFloat(img *models.Image, filename string) error {
	lo, hi := AutoRange(img)
	return SaveImage(ToGray16(img, lo, hi), filename)
}

// SaveMask saves a detection mask as a black and white image.
func SaveMask(mask *models.Mask, filename string) error {
	return SaveImage(MaskToGray(mask), filename)
}
