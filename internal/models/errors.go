package models

import "errors"

var (
	// ErrInvalidRegion is returned when an ROI, mask or pixel index lies
	// outside the image it refers to.
	ErrInvalidRegion = errors.New("invalid region")

	// ErrInsufficientSamples is returned when a surface fit has fewer than
	// six distinct sample points.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrDegenerateAreaBand is returned for an area band with a negative
	// lower bound or a lower bound not below the upper bound.
	ErrDegenerateAreaBand = errors.New("degenerate area band")

	// ErrEmptyDetection signals that no region survived area filtering.
	// Detectors return an empty table instead; callers that need dots
	// wrap this error.
	ErrEmptyDetection = errors.New("no regions detected")

	// ErrShapeMismatch is returned when images combined pixel by pixel
	// have different dimensions.
	ErrShapeMismatch = errors.New("image shape mismatch")
)
