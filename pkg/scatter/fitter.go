// Package scatter fits and verifies the quadratic scatter surface that
// models the background response of a radiographic detector.
package scatter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"bbscatter/internal/models"
)

// NumTerms is the number of basis terms of the surface.
const NumTerms = 6

// Model holds the surface coefficients in the fixed order
// [1, r, c, r², c², r·c].
type Model [NumTerms]float64

// At evaluates the surface at (r, c).
func (q Model) At(r, c float64) float64 {
	return q[0] + q[1]*r + q[2]*c + q[3]*r*r + q[4]*c*c + q[5]*r*c
}

// basis fills row with the basis terms at (r, c).
func basis(row []float64, r, c float64) {
	row[0] = 1
	row[1] = r
	row[2] = c
	row[3] = r * r
	row[4] = c * c
	row[5] = r * c
}

// Fit solves the least-squares problem for the surface coefficients.
//
// The system is solved through a thin SVD with singular values below
// eps*max(m,n) times the largest one treated as zero, which gives the
// minimum-norm solution when the design matrix is rank deficient. Columns
// are scaled to unit norm before factorization.
//
// Fewer than six distinct sample positions return ErrInsufficientSamples.
// Six or more distinct positions that are still dependent, such as
// collinear points or points on one conic, are fitted with the
// minimum-norm solution instead of an error.
func Fit(samples []models.Sample) (Model, error) {
	var q Model

	distinct := make(map[[2]float64]struct{}, len(samples))
	for i, s := range samples {
		if !finite(s.R) || !finite(s.C) || !finite(s.Value) {
			return q, fmt.Errorf("scatter fit: sample %d is not finite: %+v", i, s)
		}
		distinct[[2]float64{s.R, s.C}] = struct{}{}
	}
	if len(distinct) < NumTerms {
		return q, fmt.Errorf("scatter fit: %d distinct positions, need %d: %w",
			len(distinct), NumTerms, models.ErrInsufficientSamples)
	}

	m := len(samples)
	a := mat.NewDense(m, NumTerms, nil)
	b := mat.NewVecDense(m, nil)
	row := make([]float64, NumTerms)
	for i, s := range samples {
		basis(row, s.R, s.C)
		a.SetRow(i, row)
		b.SetVec(i, s.Value)
	}

	// Equilibrate columns; r² and c² are orders of magnitude larger than 1
	scale := make([]float64, NumTerms)
	for j := 0; j < NumTerms; j++ {
		col := mat.Col(nil, j, a)
		scale[j] = floats.Norm(col, 2)
		if scale[j] == 0 {
			scale[j] = 1
		}
		floats.Scale(1/scale[j], col)
		a.SetCol(j, col)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return q, fmt.Errorf("scatter fit: SVD factorization failed")
	}
	rank := svd.Rank(machineEpsilon * float64(max(m, NumTerms)))
	if rank == 0 {
		return q, fmt.Errorf("scatter fit: design matrix has rank 0: %w", models.ErrInsufficientSamples)
	}

	var x mat.VecDense
	svd.SolveVecTo(&x, b, rank)
	for j := 0; j < NumTerms; j++ {
		q[j] = x.AtVec(j) / scale[j]
	}
	return q, nil
}

// FitPoints fits the surface to img sampled at the given pixel coordinates.
func FitPoints(img *models.Image, rows, cols []int) (Model, error) {
	if img.Empty() {
		return Model{}, fmt.Errorf("scatter fit: empty image")
	}
	if len(rows) != len(cols) {
		return Model{}, fmt.Errorf("scatter fit: %d row coordinates but %d column coordinates", len(rows), len(cols))
	}

	samples := make([]models.Sample, len(rows))
	for i := range rows {
		r, c := rows[i], cols[i]
		if !img.Contains(r, c) {
			return Model{}, fmt.Errorf("scatter fit: point (%d,%d) outside %dx%d image: %w",
				r, c, img.Rows, img.Cols, models.ErrInvalidRegion)
		}
		samples[i] = models.Sample{R: float64(r), C: float64(c), Value: img.At(r, c)}
	}
	return Fit(samples)
}

// FromPoints fits the surface to img at the given pixels and evaluates it
// over the full image shape.
func FromPoints(img *models.Image, rows, cols []int) (*models.Image, error) {
	q, err := FitPoints(img, rows, cols)
	if err != nil {
		return nil, err
	}
	return EvaluatePolynomial(img.Rows, img.Cols, q), nil
}

// Column selects which dot statistic is used as the sample value.
type Column string

const (
	ColumnMedian Column = "median"
	ColumnMean   Column = "mean"
)

// ParseColumn converts a configuration string to a Column.
func ParseColumn(s string) (Column, error) {
	switch Column(s) {
	case ColumnMedian, "":
		return ColumnMedian, nil
	case ColumnMean:
		return ColumnMean, nil
	default:
		return "", fmt.Errorf("unknown value column %q (want %q or %q)", s, ColumnMedian, ColumnMean)
	}
}

// FitTable fits the surface to the centroids of a detection table using the
// selected statistic as the value.
func FitTable(dots []models.Dot, column Column) (Model, error) {
	samples := make([]models.Sample, len(dots))
	for i, d := range dots {
		var v float64
		switch column {
		case ColumnMedian:
			v = d.Median
		case ColumnMean:
			v = d.Mean
		default:
			return Model{}, fmt.Errorf("scatter fit: unknown value column %q", column)
		}
		samples[i] = models.Sample{R: d.R, C: d.C, Value: v}
	}
	return Fit(samples)
}

// FromTable fits the surface to a detection table and evaluates it over a
// rows x cols grid.
func FromTable(dots []models.Dot, rows, cols int, column Column) (*models.Image, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("scatter fit: invalid output shape %dx%d", rows, cols)
	}
	q, err := FitTable(dots, column)
	if err != nil {
		return nil, err
	}
	return EvaluatePolynomial(rows, cols, q), nil
}

// EvaluatePolynomial materialises the surface over every pixel of a
// rows x cols grid.
func EvaluatePolynomial(rows, cols int, q Model) *models.Image {
	img := models.NewImage(rows, cols)
	for r := 0; r < rows; r++ {
		fr := float64(r)
		// Terms that depend only on the row
		base := q[0] + q[1]*fr + q[3]*fr*fr
		slope := q[2] + q[5]*fr
		for c := 0; c < cols; c++ {
			fc := float64(c)
			img.Data[r*cols+c] = base + slope*fc + q[4]*fc*fc
		}
	}
	return img
}

// machineEpsilon is the float64 machine epsilon.
const machineEpsilon = 2.220446049250313e-16

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
