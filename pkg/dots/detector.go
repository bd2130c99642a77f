package dots

import (
	"fmt"

	"bbscatter/internal/models"
	"bbscatter/pkg/imgproc"
)

// MaskValue is the value stamped into the detection mask for dot pixels.
const MaskValue uint8 = 255

// Result holds the output of a detection pass.
type Result struct {
	// Mask has the input image's shape with MaskValue under every dot disk.
	Mask *models.Mask

	// Rows and Cols are the coordinates of all mask pixels in row-major order.
	Rows []int
	Cols []int

	// Dots is the detection table ordered by component label.
	Dots []models.Dot

	// Score is the correlation map, set only by DetectByTemplate.
	Score *models.Image
}

// Empty reports whether no dot survived the area filter.
func (r *Result) Empty() bool {
	return r == nil || len(r.Dots) == 0
}

// Samples returns the dots as surface fitting samples using the median or
// the mean of each disk.
func (r *Result) Samples(useMean bool) []models.Sample {
	samples := make([]models.Sample, len(r.Dots))
	for i, d := range r.Dots {
		v := d.Median
		if useMean {
			v = d.Mean
		}
		samples[i] = models.Sample{R: d.R, C: d.C, Value: v}
	}
	return samples
}

// DetectByThreshold finds dark dots as connected regions of pixels strictly
// below threshold.
//
// Parameters:
//   - img: the source image
//   - threshold: grey level separating dots from background
//   - band: accepted region areas, inclusive on both ends
//   - radius: radius of the disk stamped at each accepted centroid
//
// Returns the disk mask, its pixel coordinates and one Dot per accepted
// region. Zero accepted regions give an empty table and an all-zero mask.
func DetectByThreshold(img *models.Image, threshold float64, band models.AreaBand, radius float64) (*Result, error) {
	if err := validateInputs(img, band, radius); err != nil {
		return nil, fmt.Errorf("detect by threshold: %w", err)
	}

	fg := make([]bool, len(img.Data))
	for i, v := range img.Data {
		fg[i] = v < threshold
	}
	return collect(img, fg, band, radius)
}

// DetectByTemplate finds dots as connected regions where the normalized
// cross-correlation between img and template exceeds scoreThreshold.
//
// The score map has the shape of img with the template centered on every
// pixel. When band is nil the area band is derived from the template with
// TemplateAreaBand. The returned Result carries the score map.
func DetectByTemplate(img, template *models.Image, scoreThreshold float64, band *models.AreaBand, radius float64) (*Result, error) {
	if template.Empty() {
		return nil, fmt.Errorf("detect by template: empty template")
	}

	var b models.AreaBand
	if band != nil {
		b = *band
	} else {
		derived, err := TemplateAreaBand(template)
		if err != nil {
			return nil, fmt.Errorf("detect by template: %w", err)
		}
		b = derived
	}
	if err := validateInputs(img, b, radius); err != nil {
		return nil, fmt.Errorf("detect by template: %w", err)
	}

	score, err := imgproc.MatchTemplate(img, template)
	if err != nil {
		return nil, fmt.Errorf("detect by template: %w", err)
	}

	fg := make([]bool, len(score.Data))
	for i, v := range score.Data {
		fg[i] = scoreThreshold < v
	}
	res, err := collect(img, fg, b, radius)
	if err != nil {
		return nil, err
	}
	res.Score = score
	return res, nil
}

func validateInputs(img *models.Image, band models.AreaBand, radius float64) error {
	if img.Empty() {
		return fmt.Errorf("empty image")
	}
	if radius <= 0 {
		return fmt.Errorf("disk radius must be positive, got %g", radius)
	}
	return band.Validate()
}

// collect labels the foreground, drops regions outside the band and
// summarises the image under a disk at every remaining centroid.
func collect(img *models.Image, fg []bool, band models.AreaBand, radius float64) (*Result, error) {
	_, regions, err := imgproc.Label(fg, img.Rows, img.Cols)
	if err != nil {
		return nil, err
	}

	mask := models.NewMask(img.Rows, img.Cols)
	dots := make([]models.Dot, 0, len(regions))
	for _, reg := range regions {
		if !band.Contains(reg.Area) {
			continue
		}

		rr, cc := imgproc.Disk(reg.R, reg.C, radius, img.Rows, img.Cols)
		values := make([]float64, len(rr))
		for i := range rr {
			mask.Set(rr[i], cc[i], MaskValue)
			values[i] = img.At(rr[i], cc[i])
		}

		dots = append(dots, models.Dot{
			Label:  reg.Label,
			Mean:   imgproc.Mean(values),
			Median: imgproc.Median(values),
			R:      reg.R,
			C:      reg.C,
			Area:   reg.Area,
		})
	}

	rows, cols := mask.Points()
	return &Result{
		Mask: mask,
		Rows: rows,
		Cols: cols,
		Dots: dots,
	}, nil
}
