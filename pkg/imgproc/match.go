package imgproc

import (
	"fmt"
	"math"

	"bbscatter/internal/models"
)

// MatchTemplate computes the normalized cross-correlation between img and
// tmpl for every pixel of img. The template is centered on each pixel (its
// top-left corner at r - rows/2, c - cols/2) and the image is padded with
// zeros, so the score map has the same shape as img. Scores lie in [-1, 1];
// windows whose variance makes the denominator vanish score 0.
func MatchTemplate(img, tmpl *models.Image) (*models.Image, error) {
	if img.Empty() || tmpl.Empty() {
		return nil, fmt.Errorf("match template: empty image or template")
	}
	if tmpl.Rows > img.Rows || tmpl.Cols > img.Cols {
		return nil, fmt.Errorf("match template: template %dx%d larger than image %dx%d",
			tmpl.Rows, tmpl.Cols, img.Rows, img.Cols)
	}

	th, tw := tmpl.Rows, tmpl.Cols
	volume := float64(th * tw)
	tmean := Mean(tmpl.Data)
	var tssd float64
	for _, v := range tmpl.Data {
		d := v - tmean
		tssd += d * d
	}

	xcorr := crossCorrelate(img, tmpl)
	sum, sumSq := integralImages(img)

	score := models.NewImage(img.Rows, img.Cols)
	stride := img.Cols + 1
	for r := 0; r < img.Rows; r++ {
		r0 := clampRange(r-th/2, img.Rows)
		r1 := clampRange(r-th/2+th, img.Rows)
		for c := 0; c < img.Cols; c++ {
			c0 := clampRange(c-tw/2, img.Cols)
			c1 := clampRange(c-tw/2+tw, img.Cols)

			s1 := sum[r1*stride+c1] - sum[r0*stride+c1] - sum[r1*stride+c0] + sum[r0*stride+c0]
			s2 := sumSq[r1*stride+c1] - sumSq[r0*stride+c1] - sumSq[r1*stride+c0] + sumSq[r0*stride+c0]

			num := xcorr[r*img.Cols+c] - s1*tmean
			den := (s2 - s1*s1/volume) * tssd
			if den < 0 {
				den = 0
			}
			den = math.Sqrt(den)
			if den > epsilon {
				score.Set(r, c, num/den)
			}
		}
	}
	return score, nil
}

// epsilon is the float64 machine epsilon.
const epsilon = 2.220446049250313e-16

// integralImages returns summed-area tables of the image and of its squares.
// Both have (rows+1) x (cols+1) entries with a zero first row and column.
func integralImages(img *models.Image) (sum, sumSq []float64) {
	stride := img.Cols + 1
	sum = make([]float64, (img.Rows+1)*stride)
	sumSq = make([]float64, (img.Rows+1)*stride)
	for r := 0; r < img.Rows; r++ {
		var rowSum, rowSq float64
		for c := 0; c < img.Cols; c++ {
			v := img.At(r, c)
			rowSum += v
			rowSq += v * v
			sum[(r+1)*stride+c+1] = sum[r*stride+c+1] + rowSum
			sumSq[(r+1)*stride+c+1] = sumSq[r*stride+c+1] + rowSq
		}
	}
	return sum, sumSq
}

// clampRange limits a half-open window bound to [0, size].
func clampRange(idx, size int) int {
	if idx < 0 {
		return 0
	}
	if idx > size {
		return size
	}
	return idx
}
