package imgproc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultOtsuBins is the histogram resolution used by OtsuThreshold callers
// that have no better choice.
const DefaultOtsuBins = 256

// OtsuThreshold returns the threshold that maximises the between-class
// variance of a histogram of values with nbins equal-width bins spanning the
// data range. The threshold is the center of the winning bin; pixels
// strictly above it form the upper class. Constant input returns the
// constant itself.
func OtsuThreshold(values []float64, nbins int) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("otsu threshold: no values")
	}
	if nbins < 2 {
		return 0, fmt.Errorf("otsu threshold: need at least 2 bins, got %d", nbins)
	}

	lo := floats.Min(values)
	hi := floats.Max(values)
	if lo == hi {
		return lo, nil
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, fmt.Errorf("otsu threshold: non-finite values")
	}

	// Histogram with the last bin closed on the right
	counts := make([]float64, nbins)
	width := (hi - lo) / float64(nbins)
	for _, v := range values {
		bin := int((v - lo) / width)
		if bin >= nbins {
			bin = nbins - 1
		}
		counts[bin]++
	}
	centers := make([]float64, nbins)
	for i := range centers {
		centers[i] = lo + (float64(i)+0.5)*width
	}

	// Class weights and means for every split point, accumulated from both ends
	weight1 := make([]float64, nbins)
	mean1 := make([]float64, nbins)
	var w, s float64
	for i := 0; i < nbins; i++ {
		w += counts[i]
		s += counts[i] * centers[i]
		weight1[i] = w
		mean1[i] = s / w
	}
	weight2 := make([]float64, nbins)
	mean2 := make([]float64, nbins)
	w, s = 0, 0
	for i := nbins - 1; i >= 0; i-- {
		w += counts[i]
		s += counts[i] * centers[i]
		weight2[i] = w
		mean2[i] = s / w
	}

	best := 0
	bestVar := math.Inf(-1)
	for i := 0; i < nbins-1; i++ {
		d := mean1[i] - mean2[i+1]
		v := weight1[i] * weight2[i+1] * d * d
		if v > bestVar {
			bestVar = v
			best = i
		}
	}
	return centers[best], nil
}
