package models

import (
	"fmt"
)

// ROI is a rectangular region of interest. Row0/Col0 are inclusive and
// Row1/Col1 are exclusive.
type ROI struct {
	Row0 int `yaml:"row0" json:"row0"`
	Col0 int `yaml:"col0" json:"col0"`
	Row1 int `yaml:"row1" json:"row1"`
	Col1 int `yaml:"col1" json:"col1"`
}

// NewROI builds an ROI from the (row0, col0, row1, col1) tuple convention.
func NewROI(row0, col0, row1, col1 int) ROI {
	return ROI{Row0: row0, Col0: col0, Row1: row1, Col1: col1}
}

// Height is the number of rows covered by the ROI.
func (r ROI) Height() int { return r.Row1 - r.Row0 }

// Width is the number of columns covered by the ROI.
func (r ROI) Width() int { return r.Col1 - r.Col0 }

// Validate checks that the ROI is non-empty and lies within an image of the
// given shape.
func (r ROI) Validate(rows, cols int) error {
	if r.Row0 >= r.Row1 || r.Col0 >= r.Col1 {
		return fmt.Errorf("%w: (%d,%d,%d,%d) must satisfy row0<row1 and col0<col1",
			ErrInvalidRegion, r.Row0, r.Col0, r.Row1, r.Col1)
	}
	if r.Row0 < 0 || r.Col0 < 0 || r.Row1 > rows || r.Col1 > cols {
		return fmt.Errorf("%w: (%d,%d,%d,%d) outside image bounds %dx%d",
			ErrInvalidRegion, r.Row0, r.Col0, r.Row1, r.Col1, rows, cols)
	}
	return nil
}

// AreaBand is the accepted range of region areas in pixels. Both bounds are
// inclusive.
type AreaBand struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Validate rejects negative or empty bands.
func (b AreaBand) Validate() error {
	if b.Min < 0 || b.Max < 0 {
		return fmt.Errorf("%w: negative bound in [%g, %g]", ErrDegenerateAreaBand, b.Min, b.Max)
	}
	if b.Min >= b.Max {
		return fmt.Errorf("%w: lower bound %g not below upper bound %g", ErrDegenerateAreaBand, b.Min, b.Max)
	}
	return nil
}

// Contains reports whether area lies within the band.
func (b AreaBand) Contains(area int) bool {
	a := float64(area)
	return b.Min <= a && a <= b.Max
}

// Dot is one row of a detection table: a connected region that passed the
// area filter, summarised over a fixed-radius disk around its centroid.
type Dot struct {
	// Label is the connected-component label of the region.
	Label int `json:"label"`

	// Mean and Median are taken over the image values under the disk.
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`

	// R and C are the sub-pixel centroid of the region.
	R float64 `json:"r"`
	C float64 `json:"c"`

	// Area is the pixel count of the labeled region.
	Area int `json:"area"`
}

// Residual is one row of a verification table.
type Residual struct {
	Label  int     `json:"label"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	MSE    float64 `json:"mse"`
	RMSE   float64 `json:"rmse"`
	Area   int     `json:"area"`

	// R and C are the region centroid in (row, col) order.
	R float64 `json:"r"`
	C float64 `json:"c"`

	// X and Y repeat the centroid in plotting order: X is the column and
	// Y is the row.
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sample is a single scattered measurement used for surface fitting.
type Sample struct {
	R     float64
	C     float64
	Value float64
}
