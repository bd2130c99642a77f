package imgproc

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2D performs 2D discrete Fourier transforms on row-major complex data
// by applying 1D transforms along the rows and then along the columns.
type fft2D struct {
	rows, cols int
	rowFFT     *fourier.CmplxFFT
	colFFT     *fourier.CmplxFFT

	// scratch buffers for one row or column.
	rowIn, rowOut []complex128
	colIn, colOut []complex128
}

// newFFT2D prepares the transforms for a rows x cols grid.
func newFFT2D(rows, cols int) *fft2D {
	return &fft2D{
		rows:   rows,
		cols:   cols,
		rowFFT: fourier.NewCmplxFFT(cols),
		colFFT: fourier.NewCmplxFFT(rows),
		rowIn:  make([]complex128, cols),
		rowOut: make([]complex128, cols),
		colIn:  make([]complex128, rows),
		colOut: make([]complex128, rows),
	}
}

// forward replaces data with its 2D Fourier coefficients.
func (f *fft2D) forward(data []complex128) {
	f.apply(data, false)
}

// inverse replaces 2D coefficients with the sequence they describe. The
// gonum transforms are unnormalized, so the result is scaled by 1/(rows*cols).
func (f *fft2D) inverse(data []complex128) {
	f.apply(data, true)
	scale := complex(1/float64(f.rows*f.cols), 0)
	for i := range data {
		data[i] *= scale
	}
}

func (f *fft2D) apply(data []complex128, inverse bool) {
	// Row-wise transform
	for r := 0; r < f.rows; r++ {
		copy(f.rowIn, data[r*f.cols:(r+1)*f.cols])
		if inverse {
			f.rowFFT.Sequence(f.rowOut, f.rowIn)
		} else {
			f.rowFFT.Coefficients(f.rowOut, f.rowIn)
		}
		copy(data[r*f.cols:], f.rowOut)
	}

	// Column-wise transform
	for c := 0; c < f.cols; c++ {
		for r := 0; r < f.rows; r++ {
			f.colIn[r] = data[r*f.cols+c]
		}
		if inverse {
			f.colFFT.Sequence(f.colOut, f.colIn)
		} else {
			f.colFFT.Coefficients(f.colOut, f.colIn)
		}
		for r := 0; r < f.rows; r++ {
			data[r*f.cols+c] = f.colOut[r]
		}
	}
}

// fastLength returns the smallest n >= target whose only prime factors are
// 2, 3 and 5, which keeps the mixed-radix transforms fast.
func fastLength(target int) int {
	if target <= 1 {
		return 1
	}
	for n := target; ; n++ {
		m := n
		for _, p := range []int{2, 3, 5} {
			for m%p == 0 {
				m /= p
			}
		}
		if m == 1 {
			return n
		}
	}
}
