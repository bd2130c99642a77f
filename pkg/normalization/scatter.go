package normalization

import (
	"fmt"

	"bbscatter/internal/models"
)

// ScatterCorrectionInput collects the exposures used by the black-body
// scatter correction.
type ScatterCorrectionInput struct {
	// Sample and OpenBeam are the projections to normalize.
	Sample   *models.Image
	OpenBeam *models.Image

	// DarkCurrent is optional.
	DarkCurrent *models.Image

	// BBSample and BBOpenBeam are the same exposures taken with the
	// black-body grid in the beam.
	BBSample   *models.Image
	BBOpenBeam *models.Image

	// ScatterSample and ScatterOpenBeam are the scatter surfaces fitted to
	// the dots of BBSample and BBOpenBeam. They are used as given.
	ScatterSample   *models.Image
	ScatterOpenBeam *models.Image

	// ROI is the dose reference region.
	ROI models.ROI

	// Tau is the primary-beam transmission through a black body.
	Tau float64
}

// Validate checks that all required images are present with one shape and
// that Tau is positive.
func (in ScatterCorrectionInput) Validate() error {
	images := []struct {
		name string
		img  *models.Image
	}{
		{"sample", in.Sample},
		{"open beam", in.OpenBeam},
		{"black-body sample", in.BBSample},
		{"black-body open beam", in.BBOpenBeam},
		{"sample scatter", in.ScatterSample},
		{"open beam scatter", in.ScatterOpenBeam},
	}
	for _, im := range images {
		if im.img.Empty() {
			return fmt.Errorf("%s image is missing", im.name)
		}
		if !im.img.SameShape(in.Sample) {
			return fmt.Errorf("%s image is %dx%d, sample is %dx%d: %w",
				im.name, im.img.Rows, im.img.Cols, in.Sample.Rows, in.Sample.Cols, models.ErrShapeMismatch)
		}
	}
	if in.DarkCurrent != nil && !in.DarkCurrent.SameShape(in.Sample) {
		return fmt.Errorf("dark current image is %dx%d, sample is %dx%d: %w",
			in.DarkCurrent.Rows, in.DarkCurrent.Cols, in.Sample.Rows, in.Sample.Cols, models.ErrShapeMismatch)
	}
	if in.Tau <= 0 {
		return fmt.Errorf("tau must be positive, got %g", in.Tau)
	}
	return in.ROI.Validate(in.Sample.Rows, in.Sample.Cols)
}

// NormalizeWithScatterCorrection returns the scatter and dose corrected
// transmission of the sample.
//
// With d(x) the RegionDose of x in the ROI, the dose factors are
//
//	ds = d(sample) / (tau * (d(bbsample) - (1 - 1/tau) * d(ssample)))
//	do = d(ob) / (tau * (d(bbob) - (1 - 1/tau) * d(sob)))
//
// and the result is (sample - ssample*ds) / (ob - sob*do) * (do/ds). Dark
// current is removed from the sample, open beam and both black-body images
// first.
func NormalizeWithScatterCorrection(in ScatterCorrectionInput) (*models.Image, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("scatter correction: %w", err)
	}

	sample, err := RemoveDarkCurrent(in.Sample, in.DarkCurrent)
	if err != nil {
		return nil, fmt.Errorf("scatter correction: %w", err)
	}
	ob, err := RemoveDarkCurrent(in.OpenBeam, in.DarkCurrent)
	if err != nil {
		return nil, fmt.Errorf("scatter correction: %w", err)
	}
	bbSample, err := RemoveDarkCurrent(in.BBSample, in.DarkCurrent)
	if err != nil {
		return nil, fmt.Errorf("scatter correction: %w", err)
	}
	bbOB, err := RemoveDarkCurrent(in.BBOpenBeam, in.DarkCurrent)
	if err != nil {
		return nil, fmt.Errorf("scatter correction: %w", err)
	}

	doses := make([]float64, 6)
	for i, img := range []*models.Image{sample, ob, bbSample, bbOB, in.ScatterSample, in.ScatterOpenBeam} {
		d, err := RegionDose(img, in.ROI)
		if err != nil {
			return nil, fmt.Errorf("scatter correction: %w", err)
		}
		doses[i] = d
	}
	dSample, dOB, dBBSample, dBBOB, dSSample, dSOB := doses[0], doses[1], doses[2], doses[3], doses[4], doses[5]

	k := 1 - 1/in.Tau
	ds := dSample / (in.Tau * (dBBSample - k*dSSample))
	do := dOB / (in.Tau * (dBBOB - k*dSOB))

	out := models.NewImage(sample.Rows, sample.Cols)
	for i := range out.Data {
		num := sample.Data[i] - in.ScatterSample.Data[i]*ds
		den := ob.Data[i] - in.ScatterOpenBeam.Data[i]*do
		out.Data[i] = num / den * (do / ds)
	}
	return out, nil
}
