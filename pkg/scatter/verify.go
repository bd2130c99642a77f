package scatter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"bbscatter/internal/models"
	"bbscatter/pkg/imgproc"
)

// Check compares an observed black-body image against a fitted estimate
// inside the regions of mask.
//
// The mask is labeled with 8-connectivity (any nonzero pixel is foreground)
// and regions outside band are skipped. For every remaining region the
// difference observed - estimate is summarised over the region's pixels.
// Rows come out in label order.
func Check(observed, estimate *models.Image, mask *models.Mask, band models.AreaBand) ([]models.Residual, error) {
	if observed.Empty() || estimate.Empty() {
		return nil, fmt.Errorf("scatter check: empty image")
	}
	if !observed.SameShape(estimate) {
		return nil, fmt.Errorf("scatter check: observed %dx%d vs estimate %dx%d: %w",
			observed.Rows, observed.Cols, estimate.Rows, estimate.Cols, models.ErrShapeMismatch)
	}
	if mask == nil || mask.Rows != observed.Rows || mask.Cols != observed.Cols || len(mask.Data) != mask.Rows*mask.Cols {
		return nil, fmt.Errorf("scatter check: mask does not cover the %dx%d image: %w",
			observed.Rows, observed.Cols, models.ErrInvalidRegion)
	}
	if err := band.Validate(); err != nil {
		return nil, fmt.Errorf("scatter check: %w", err)
	}

	_, regions, err := imgproc.Label(mask.Foreground(), mask.Rows, mask.Cols)
	if err != nil {
		return nil, fmt.Errorf("scatter check: %w", err)
	}

	residuals := make([]models.Residual, 0, len(regions))
	for _, reg := range regions {
		if !band.Contains(reg.Area) {
			continue
		}

		diff := make([]float64, len(reg.Pixels))
		var sq float64
		for i, p := range reg.Pixels {
			d := observed.Data[p] - estimate.Data[p]
			diff[i] = d
			sq += d * d
		}
		mse := sq / float64(len(diff))

		residuals = append(residuals, models.Residual{
			Label:  reg.Label,
			Median: imgproc.Median(diff),
			Mean:   imgproc.Mean(diff),
			MSE:    mse,
			RMSE:   math.Sqrt(mse),
			Area:   reg.Area,
			R:      reg.R,
			C:      reg.C,
			X:      reg.C,
			Y:      reg.R,
		})
	}
	return residuals, nil
}

// ColorRange returns the color limits for a residual plot colored by the
// per-region median. In symmetric mode the range is [-v, v] where v is the
// largest absolute median, so zero sits in the middle of the colormap.
// An empty table yields [0, 0].
func ColorRange(residuals []models.Residual, symmetric bool) (lo, hi float64) {
	if len(residuals) == 0 {
		return 0, 0
	}
	medians := make([]float64, len(residuals))
	for i, r := range residuals {
		medians[i] = r.Median
	}
	lo, hi = floats.Min(medians), floats.Max(medians)
	if symmetric {
		v := math.Max(math.Abs(lo), math.Abs(hi))
		return -v, v
	}
	return lo, hi
}

// Summary pools the residual table into a few figures for reporting.
type Summary struct {
	// Regions is the number of verified regions.
	Regions int

	// MeanMedian is the average of the per-region medians.
	MeanMedian float64

	// MaxAbsMedian is the largest absolute per-region median.
	MaxAbsMedian float64

	// PooledRMSE is the RMSE over all region pixels.
	PooledRMSE float64
}

// Summarize pools a verification table. An empty table gives a zero
// Summary with NaN averages.
func Summarize(residuals []models.Residual) Summary {
	s := Summary{Regions: len(residuals)}
	if len(residuals) == 0 {
		s.MeanMedian = math.NaN()
		s.PooledRMSE = math.NaN()
		return s
	}

	medians := make([]float64, len(residuals))
	var sqSum, area float64
	for i, r := range residuals {
		medians[i] = r.Median
		s.MaxAbsMedian = math.Max(s.MaxAbsMedian, math.Abs(r.Median))
		sqSum += r.MSE * float64(r.Area)
		area += float64(r.Area)
	}
	s.MeanMedian = imgproc.Mean(medians)
	s.PooledRMSE = math.Sqrt(sqSum / area)
	return s
}
