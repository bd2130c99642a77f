//go:build !opencv

package imgproc

import (
	"bbscatter/internal/models"
)

// crossCorrelate returns the raw sum of template times image for every
// template placement whose top-left corner sits at (r - th/2, c - tw/2),
// with zeros outside the image. The output has the image's shape.
//
// The sums are computed as a linear convolution with the flipped template
// in the frequency domain.
func crossCorrelate(img, tmpl *models.Image) []float64 {
	th, tw := tmpl.Rows, tmpl.Cols
	ph := fastLength(img.Rows + th - 1)
	pw := fastLength(img.Cols + tw - 1)

	a := make([]complex128, ph*pw)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			a[r*pw+c] = complex(img.At(r, c), 0)
		}
	}
	b := make([]complex128, ph*pw)
	for r := 0; r < th; r++ {
		for c := 0; c < tw; c++ {
			b[r*pw+c] = complex(tmpl.At(th-1-r, tw-1-c), 0)
		}
	}

	f := newFFT2D(ph, pw)
	f.forward(a)
	f.forward(b)
	for i := range a {
		a[i] *= b[i]
	}
	f.inverse(a)

	// Full convolution index m corresponds to a template top-left at m-(t-1)
	offR := th - 1 - th/2
	offC := tw - 1 - tw/2
	out := make([]float64, img.Rows*img.Cols)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			out[r*img.Cols+c] = real(a[(r+offR)*pw+c+offC])
		}
	}
	return out
}
