package dots

import (
	"fmt"

	"bbscatter/internal/models"
	"bbscatter/pkg/imgproc"
)

// DefaultTemplateFootprint is the structuring element conventionally used to
// clean a dot template.
var DefaultTemplateFootprint = imgproc.DiskFootprint(5)

// Template area band fractions, applied to the dark area of a template.
const (
	templateBandLow  = 0.2
	templateBandHigh = 0.8
)

// ExtractTemplate crops img to roi and median filters the patch with the
// given footprint to suppress outlier pixels. The result is used as the
// correlation kernel for DetectByTemplate.
func ExtractTemplate(img *models.Image, roi models.ROI, fp imgproc.Footprint) (*models.Image, error) {
	if img.Empty() {
		return nil, fmt.Errorf("extract template: empty image")
	}
	patch, err := img.Crop(roi)
	if err != nil {
		return nil, fmt.Errorf("extract template: %w", err)
	}
	template, err := imgproc.MedianFilter(patch, fp)
	if err != nil {
		return nil, fmt.Errorf("extract template: %w", err)
	}
	return template, nil
}

// TemplateAreaBand derives the default area band for template matching.
//
// The template is binarized at its own Otsu threshold and the pixels strictly
// below it are counted as the dot area a. The band is [0.2*a, 0.8*a].
func TemplateAreaBand(template *models.Image) (models.AreaBand, error) {
	if template.Empty() {
		return models.AreaBand{}, fmt.Errorf("template area band: empty template")
	}
	th, err := imgproc.OtsuThreshold(template.Data, imgproc.DefaultOtsuBins)
	if err != nil {
		return models.AreaBand{}, fmt.Errorf("template area band: %w", err)
	}

	area := 0
	for _, v := range template.Data {
		if v < th {
			area++
		}
	}

	band := models.AreaBand{
		Min: templateBandLow * float64(area),
		Max: templateBandHigh * float64(area),
	}
	if err := band.Validate(); err != nil {
		return models.AreaBand{}, fmt.Errorf("template area band: dark area %d: %w", area, err)
	}
	return band, nil
}
