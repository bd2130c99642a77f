package models

import (
	"fmt"
)

// Image is a 2D array of real-valued pixel intensities indexed (row, col).
type Image struct {
	// Rows is the number of image rows.
	Rows int

	// Cols is the number of image columns.
	Cols int

	// Data holds the pixel values in row-major order.
	Data []float64
}

// NewImage allocates a zero-valued image of the given shape.
func NewImage(rows, cols int) *Image {
	return &Image{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

// NewFilledImage allocates an image with every pixel set to value.
func NewFilledImage(rows, cols int, value float64) *Image {
	img := NewImage(rows, cols)
	for i := range img.Data {
		img.Data[i] = value
	}
	return img
}

// NewImageFromData wraps row-major data as an image. The data slice is
// copied so later changes by the caller do not leak into the image.
func NewImageFromData(rows, cols int, data []float64) (*Image, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid image shape %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for a %dx%d image", ErrShapeMismatch, len(data), rows, cols)
	}
	img := NewImage(rows, cols)
	copy(img.Data, data)
	return img, nil
}

// At returns the pixel value at (r, c).
func (im *Image) At(r, c int) float64 {
	return im.Data[r*im.Cols+c]
}

// Set assigns the pixel value at (r, c).
func (im *Image) Set(r, c int, v float64) {
	im.Data[r*im.Cols+c] = v
}

// Empty reports whether the image holds no pixels.
func (im *Image) Empty() bool {
	return im == nil || im.Rows <= 0 || im.Cols <= 0 || len(im.Data) != im.Rows*im.Cols
}

// Clone returns a deep copy of the image.
func (im *Image) Clone() *Image {
	out := NewImage(im.Rows, im.Cols)
	copy(out.Data, im.Data)
	return out
}

// SameShape reports whether two images have identical dimensions.
func (im *Image) SameShape(other *Image) bool {
	return other != nil && im.Rows == other.Rows && im.Cols == other.Cols
}

// Contains reports whether (r, c) is a valid pixel index.
func (im *Image) Contains(r, c int) bool {
	return r >= 0 && r < im.Rows && c >= 0 && c < im.Cols
}

// Crop copies the pixels inside roi into a new image.
func (im *Image) Crop(roi ROI) (*Image, error) {
	if err := roi.Validate(im.Rows, im.Cols); err != nil {
		return nil, err
	}
	out := NewImage(roi.Height(), roi.Width())
	for r := roi.Row0; r < roi.Row1; r++ {
		src := im.Data[r*im.Cols+roi.Col0 : r*im.Cols+roi.Col1]
		copy(out.Data[(r-roi.Row0)*out.Cols:], src)
	}
	return out, nil
}

// Mask is a binary image. Detector output uses 0 and 255; any nonzero value
// counts as foreground when a mask is used as input.
type Mask struct {
	Rows int
	Cols int
	Data []uint8
}

// NewMask allocates an all-zero mask.
func NewMask(rows, cols int) *Mask {
	return &Mask{
		Rows: rows,
		Cols: cols,
		Data: make([]uint8, rows*cols),
	}
}

// At returns the mask value at (r, c).
func (m *Mask) At(r, c int) uint8 {
	return m.Data[r*m.Cols+c]
}

// Set assigns the mask value at (r, c).
func (m *Mask) Set(r, c int, v uint8) {
	m.Data[r*m.Cols+c] = v
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Foreground returns the mask as a boolean slice in row-major order.
func (m *Mask) Foreground() []bool {
	fg := make([]bool, len(m.Data))
	for i, v := range m.Data {
		fg[i] = v != 0
	}
	return fg
}

// Points returns the row and column coordinates of all foreground pixels,
// scanned in row-major order.
func (m *Mask) Points() (rows, cols []int) {
	n := m.Count()
	rows = make([]int, 0, n)
	cols = make([]int, 0, n)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if m.Data[r*m.Cols+c] != 0 {
				rows = append(rows, r)
				cols = append(cols, c)
			}
		}
	}
	return rows, cols
}
