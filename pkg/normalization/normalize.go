// Package normalization converts raw detector counts into normalized
// transmission or attenuation images.
package normalization

import (
	"fmt"
	"math"

	"bbscatter/internal/models"
	"bbscatter/pkg/imgproc"
)

// MinCount is the lower clamp applied after dark current subtraction so the
// result stays positive under a logarithm.
const MinCount = 1.0

// RemoveDarkCurrent subtracts dc from img and clamps the result at MinCount.
// A nil or all-zero dark current returns an unmodified copy of img.
func RemoveDarkCurrent(img, dc *models.Image) (*models.Image, error) {
	if img.Empty() {
		return nil, fmt.Errorf("remove dark current: empty image")
	}
	if isZero(dc) {
		return img.Clone(), nil
	}
	return subtractClamped(img, dc)
}

// subtractClamped returns max(img - dc, MinCount). A nil dc counts as zero.
func subtractClamped(img, dc *models.Image) (*models.Image, error) {
	if dc != nil && !img.SameShape(dc) {
		return nil, fmt.Errorf("dark current %dx%d vs image %dx%d: %w",
			dc.Rows, dc.Cols, img.Rows, img.Cols, models.ErrShapeMismatch)
	}
	out := img.Clone()
	for i := range out.Data {
		if dc != nil {
			out.Data[i] -= dc.Data[i]
		}
		if out.Data[i] < MinCount {
			out.Data[i] = MinCount
		}
	}
	return out, nil
}

func isZero(img *models.Image) bool {
	if img == nil {
		return true
	}
	for _, v := range img.Data {
		if v != 0 {
			return false
		}
	}
	return true
}

// RegionDose estimates the dose inside roi: the median of every column of
// the ROI followed by the mean of those medians.
func RegionDose(img *models.Image, roi models.ROI) (float64, error) {
	if img.Empty() {
		return 0, fmt.Errorf("region dose: empty image")
	}
	if err := roi.Validate(img.Rows, img.Cols); err != nil {
		return 0, fmt.Errorf("region dose: %w", err)
	}

	column := make([]float64, roi.Height())
	medians := make([]float64, 0, roi.Width())
	for c := roi.Col0; c < roi.Col1; c++ {
		for r := roi.Row0; r < roi.Row1; r++ {
			column[r-roi.Row0] = img.At(r, c)
		}
		medians = append(medians, imgproc.Median(column))
	}
	return imgproc.Mean(medians), nil
}

// Normalize divides a projection by its open beam.
//
// Dark current is subtracted from both images and the results are clamped
// at MinCount; dc may be nil. When doseROI is set the ratio is scaled by
// dose(ob)/dose(img) measured with RegionDose. With applyLog the result is
// -ln(ratio).
func Normalize(img, ob, dc *models.Image, doseROI *models.ROI, applyLog bool) (*models.Image, error) {
	if img.Empty() || ob.Empty() {
		return nil, fmt.Errorf("normalize: empty image or open beam")
	}
	if !img.SameShape(ob) {
		return nil, fmt.Errorf("normalize: image %dx%d vs open beam %dx%d: %w",
			img.Rows, img.Cols, ob.Rows, ob.Cols, models.ErrShapeMismatch)
	}

	sample, err := subtractClamped(img, dc)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	open, err := subtractClamped(ob, dc)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	dose := 1.0
	if doseROI != nil {
		dob, err := RegionDose(open, *doseROI)
		if err != nil {
			return nil, fmt.Errorf("normalize: %w", err)
		}
		dimg, err := RegionDose(sample, *doseROI)
		if err != nil {
			return nil, fmt.Errorf("normalize: %w", err)
		}
		dose = dob / dimg
	}

	out := models.NewImage(img.Rows, img.Cols)
	for i := range out.Data {
		v := dose * sample.Data[i] / open.Data[i]
		if applyLog {
			v = -math.Log(v)
		}
		out.Data[i] = v
	}
	return out, nil
}
