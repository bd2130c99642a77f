package imgproc

import (
	"fmt"
)

// Region holds the properties of one connected component.
type Region struct {
	// Label is the component number, starting at 1.
	Label int

	// Area is the number of pixels in the component.
	Area int

	// R and C are the centroid (mean pixel row and column).
	R float64
	C float64

	// Pixels are the flat row-major indices of the component, in the order
	// they were reached during the flood fill.
	Pixels []int
}

// neighbours8 lists the row/col offsets of the 8-connected neighbourhood.
var neighbours8 = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Label finds the 8-connected components of the foreground pixels in fg.
//
// Components are numbered from 1 in the raster order of their first pixel,
// so the returned regions are sorted by label. The returned label image holds
// 0 for background pixels.
func Label(fg []bool, rows, cols int) ([]int, []Region, error) {
	if rows <= 0 || cols <= 0 || len(fg) != rows*cols {
		return nil, nil, fmt.Errorf("foreground of length %d does not match shape %dx%d", len(fg), rows, cols)
	}

	labels := make([]int, len(fg))
	var regions []Region
	queue := make([]int, 0, 64)

	next := 1
	for start, on := range fg {
		if !on || labels[start] != 0 {
			continue
		}

		// Breadth-first flood fill from the first unlabeled pixel
		region := Region{Label: next}
		var sumR, sumC float64
		labels[start] = next
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]

			r, c := idx/cols, idx%cols
			region.Pixels = append(region.Pixels, idx)
			sumR += float64(r)
			sumC += float64(c)

			for _, d := range neighbours8 {
				nr, nc := r+d[0], c+d[1]
				if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
					continue
				}
				nidx := nr*cols + nc
				if fg[nidx] && labels[nidx] == 0 {
					labels[nidx] = next
					queue = append(queue, nidx)
				}
			}
		}

		region.Area = len(region.Pixels)
		region.R = sumR / float64(region.Area)
		region.C = sumC / float64(region.Area)
		regions = append(regions, region)
		next++
	}

	return labels, regions, nil
}
