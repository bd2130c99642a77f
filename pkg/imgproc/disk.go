package imgproc

import (
	"math"
)

// Disk returns the coordinates of the pixels strictly inside the circle of
// the given radius centered at (r0, c0). The center may be sub-pixel. Pixels
// outside a rows x cols image are dropped. Coordinates come out in row-major
// order.
func Disk(r0, c0, radius float64, rows, cols int) (rr, cc []int) {
	if radius <= 0 {
		return nil, nil
	}

	// Integer bounding box of the circle, clipped to the image
	top := int(math.Ceil(r0 - radius))
	left := int(math.Ceil(c0 - radius))
	bottom := int(math.Floor(r0 + radius))
	right := int(math.Floor(c0 + radius))
	if top < 0 {
		top = 0
	}
	if left < 0 {
		left = 0
	}
	if bottom > rows-1 {
		bottom = rows - 1
	}
	if right > cols-1 {
		right = cols - 1
	}

	for r := top; r <= bottom; r++ {
		dr := (float64(r) - r0) / radius
		for c := left; c <= right; c++ {
			dc := (float64(c) - c0) / radius
			if dr*dr+dc*dc < 1 {
				rr = append(rr, r)
				cc = append(cc, c)
			}
		}
	}
	return rr, cc
}

// Footprint is a square structuring element. Only pixels where On is true
// take part in a filter window.
type Footprint struct {
	// Size is the side length, always odd.
	Size int

	// On holds Size*Size flags in row-major order.
	On []bool
}

// DiskFootprint builds a disk-shaped footprint of the given radius, selecting
// offsets with x*x + y*y <= radius*radius.
func DiskFootprint(radius int) Footprint {
	if radius < 0 {
		radius = 0
	}
	size := 2*radius + 1
	fp := Footprint{Size: size, On: make([]bool, size*size)}
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= radius*radius {
				fp.On[(y+radius)*size+(x+radius)] = true
			}
		}
	}
	return fp
}

// SquareFootprint builds a fully populated size x size footprint.
func SquareFootprint(size int) Footprint {
	if size < 1 {
		size = 1
	}
	if size%2 == 0 {
		size++
	}
	fp := Footprint{Size: size, On: make([]bool, size*size)}
	for i := range fp.On {
		fp.On[i] = true
	}
	return fp
}

// Count returns the number of active offsets in the footprint.
func (fp Footprint) Count() int {
	n := 0
	for _, on := range fp.On {
		if on {
			n++
		}
	}
	return n
}
