package imgproc

import (
	"fmt"
	"sort"

	"bbscatter/internal/models"
)

// MedianFilter replaces every pixel with the median of its footprint
// neighbourhood. Pixels beyond the border take the value of the nearest edge
// pixel. For footprints with an even number of active offsets the upper of
// the two middle values is used.
func MedianFilter(src *models.Image, fp Footprint) (*models.Image, error) {
	if src.Empty() {
		return nil, fmt.Errorf("median filter: empty image")
	}
	n := fp.Count()
	if fp.Size%2 == 0 || n == 0 {
		return nil, fmt.Errorf("median filter: footprint must be odd-sized and non-empty, got size %d with %d active", fp.Size, n)
	}

	// Offsets of the active footprint cells relative to the center
	half := fp.Size / 2
	offsets := make([][2]int, 0, n)
	for y := 0; y < fp.Size; y++ {
		for x := 0; x < fp.Size; x++ {
			if fp.On[y*fp.Size+x] {
				offsets = append(offsets, [2]int{y - half, x - half})
			}
		}
	}

	dst := models.NewImage(src.Rows, src.Cols)
	window := make([]float64, n)
	rank := n / 2
	for r := 0; r < src.Rows; r++ {
		for c := 0; c < src.Cols; c++ {
			for i, off := range offsets {
				window[i] = src.At(clamp(r+off[0], src.Rows), clamp(c+off[1], src.Cols))
			}
			sort.Float64s(window)
			dst.Set(r, c, window[rank])
		}
	}
	return dst, nil
}

// clamp limits idx to [0, size).
func clamp(idx, size int) int {
	if idx < 0 {
		return 0
	}
	if idx >= size {
		return size - 1
	}
	return idx
}
