//go:build opencv

package imgproc

import (
	"image/color"

	"gocv.io/x/gocv"

	"bbscatter/internal/models"
)

// crossCorrelate returns the raw sum of template times image for every
// template placement whose top-left corner sits at (r - th/2, c - tw/2),
// with zeros outside the image. The output has the image's shape.
//
// This variant pads the image with a constant zero border and lets OpenCV's
// plain cross-correlation mode do the sums.
func crossCorrelate(img, tmpl *models.Image) []float64 {
	src := toMat(img)
	defer src.Close()
	templ := toMat(tmpl)
	defer templ.Close()

	th, tw := tmpl.Rows, tmpl.Cols
	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(src, &padded, th/2, th-1-th/2, tw/2, tw-1-tw/2, gocv.BorderConstant, color.RGBA{})

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(padded, templ, &result, gocv.TmCcorr, mask)

	out := make([]float64, img.Rows*img.Cols)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			out[r*img.Cols+c] = float64(result.GetFloatAt(r, c))
		}
	}
	return out
}

// toMat copies an image into a single-channel float32 OpenCV matrix.
func toMat(img *models.Image) gocv.Mat {
	m := gocv.NewMatWithSize(img.Rows, img.Cols, gocv.MatTypeCV32F)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			m.SetFloatAt(r, c, float32(img.At(r, c)))
		}
	}
	return m
}
