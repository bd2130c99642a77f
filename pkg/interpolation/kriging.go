// Package interpolation estimates a dense scatter surface from scattered dot
// measurements with ordinary kriging.
package interpolation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/stat"

	"bbscatter/internal/models"
)

// Variogram models supported by the implementation.
type VariogramModel int

const (
	Spherical VariogramModel = iota
	Exponential
	Gaussian
)

// String returns the configuration name of the model.
func (m VariogramModel) String() string {
	switch m {
	case Spherical:
		return "spherical"
	case Exponential:
		return "exponential"
	case Gaussian:
		return "gaussian"
	default:
		return fmt.Sprintf("VariogramModel(%d)", int(m))
	}
}

// ParseVariogramModel converts a configuration name to a VariogramModel.
func ParseVariogramModel(s string) (VariogramModel, error) {
	switch s {
	case "spherical", "":
		return Spherical, nil
	case "exponential":
		return Exponential, nil
	case "gaussian":
		return Gaussian, nil
	default:
		return 0, fmt.Errorf("unknown variogram model %q", s)
	}
}

// KrigingParams holds the parameters for kriging interpolation.
type KrigingParams struct {
	Range  float64        // Range parameter of the variogram
	Sill   float64        // Sill parameter of the variogram
	Nugget float64        // Nugget effect parameter
	Model  VariogramModel // Type of variogram model to use
}

// Validate rejects parameters that cannot form a variogram.
func (p KrigingParams) Validate() error {
	if !(p.Range > 0) {
		return fmt.Errorf("variogram range must be positive, got %g", p.Range)
	}
	if p.Sill < 0 || p.Nugget < 0 {
		return fmt.Errorf("variogram sill and nugget must be non-negative, got %g and %g", p.Sill, p.Nugget)
	}
	return nil
}

// Point2D is a sample position in (row, col) pixel coordinates.
type Point2D struct {
	R, C float64

	// Index is the position of the sample in the input slice.
	Index int
}

// Compare implements the kdtree.Comparable interface.
func (p Point2D) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point2D)
	switch d {
	case 0:
		return p.R - q.R
	case 1:
		return p.C - q.C
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree.
func (p Point2D) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two points.
func (p Point2D) Distance(c kdtree.Comparable) float64 {
	q := c.(Point2D)
	dr := p.R - q.R
	dc := p.C - q.C
	return dr*dr + dc*dc
}

// Points2D is a collection of Point2D that satisfies kdtree.Interface.
type Points2D []Point2D

func (p Points2D) Index(i int) kdtree.Comparable         { return p[i] }
func (p Points2D) Len() int                              { return len(p) }
func (p Points2D) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method.
func (p Points2D) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{Points2D: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{Points2D: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for Points2D.
type pointPlane struct {
	Points2D
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.Points2D[i].R < p.Points2D[j].R
	case 1:
		return p.Points2D[i].C < p.Points2D[j].C
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{Points2D: p.Points2D[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.Points2D[i], p.Points2D[j] = p.Points2D[j], p.Points2D[i]
}

// ProgressCallback is a function that reports progress during interpolation.
type ProgressCallback func(completed, total int, message string)

// DefaultNeighbors is the number of nearest samples used for each estimate.
const DefaultNeighbors = 16

// Kriging estimates values between scattered samples with ordinary kriging
// over the nearest samples of each query point.
type Kriging struct {
	values    []float64
	points    []Point2D
	kdTree    *kdtree.Tree
	params    KrigingParams
	neighbors int

	progressCallback ProgressCallback
}

// NewKriging builds an interpolator over samples. The variogram parameters
// are estimated from the data with EstimateParams and can be replaced with
// SetParams or tuned with Optimize.
func NewKriging(samples []models.Sample) (*Kriging, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("kriging: %d samples: %w", len(samples), models.ErrInsufficientSamples)
	}

	k := &Kriging{
		values:    make([]float64, len(samples)),
		points:    make([]Point2D, len(samples)),
		neighbors: DefaultNeighbors,
	}
	for i, s := range samples {
		if math.IsNaN(s.R) || math.IsNaN(s.C) || math.IsNaN(s.Value) {
			return nil, fmt.Errorf("kriging: sample %d is NaN", i)
		}
		k.values[i] = s.Value
		k.points[i] = Point2D{R: s.R, C: s.C, Index: i}
	}

	// The tree reorders its input, so it gets its own copy
	treePoints := make(Points2D, len(k.points))
	copy(treePoints, k.points)
	k.kdTree = kdtree.New(treePoints, false)

	k.params = EstimateParams(samples)
	return k, nil
}

// EstimateParams derives variogram parameters from the samples: the sill is
// the sample variance and the range is half the diagonal of the sample
// bounding box.
func EstimateParams(samples []models.Sample) KrigingParams {
	params := KrigingParams{Model: Spherical, Sill: 1, Range: 1}
	if len(samples) == 0 {
		return params
	}

	values := make([]float64, len(samples))
	minR, maxR := math.Inf(1), math.Inf(-1)
	minC, maxC := math.Inf(1), math.Inf(-1)
	for i, s := range samples {
		values[i] = s.Value
		minR, maxR = math.Min(minR, s.R), math.Max(maxR, s.R)
		minC, maxC = math.Min(minC, s.C), math.Max(maxC, s.C)
	}

	if len(values) > 1 {
		if v := stat.Variance(values, nil); v > 0 {
			params.Sill = v
		}
	}
	if d := math.Hypot(maxR-minR, maxC-minC) / 2; d > 0 {
		params.Range = d
	}
	return params
}

// Params returns the variogram parameters in use.
func (k *Kriging) Params() KrigingParams { return k.params }

// SetParams replaces the variogram parameters.
func (k *Kriging) SetParams(p KrigingParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	k.params = p
	return nil
}

// SetNeighbors sets how many nearest samples take part in each estimate.
func (k *Kriging) SetNeighbors(n int) {
	if n < 1 {
		n = 1
	}
	k.neighbors = n
}

// SetProgressCallback sets a callback function for progress reporting.
func (k *Kriging) SetProgressCallback(callback ProgressCallback) {
	k.progressCallback = callback
}

// reportProgress reports progress if a callback is set.
func (k *Kriging) reportProgress(completed, total int, message string) {
	if k.progressCallback != nil {
		k.progressCallback(completed, total, message)
	}
}

// Optimize picks the variogram model and range with the lowest
// leave-one-out cross-validation error, keeping the estimated sill. It
// returns the selected parameters and their RMSE.
func (k *Kriging) Optimize() (KrigingParams, float64) {
	base := k.params
	best := base
	bestError := math.Inf(1)

	candidates := []VariogramModel{Spherical, Exponential, Gaussian}
	factors := []float64{0.5, 1, 2}
	total := len(candidates) * len(factors)
	done := 0
	for _, m := range candidates {
		for _, f := range factors {
			p := KrigingParams{Range: base.Range * f, Sill: base.Sill, Nugget: base.Nugget, Model: m}
			if e := k.CrossValidate(p); e < bestError {
				bestError = e
				best = p
			}
			done++
			k.reportProgress(done, total, fmt.Sprintf("variogram %s range %.1f", m, p.Range))
		}
	}

	k.params = best
	return best, bestError
}

// CrossValidate returns the leave-one-out RMSE of the interpolator with the
// given parameters.
func (k *Kriging) CrossValidate(params KrigingParams) float64 {
	var total float64
	for i, p := range k.points {
		e := k.values[i] - k.estimate(p.R, p.C, i, params)
		total += e * e
	}
	return math.Sqrt(total / float64(len(k.points)))
}

// At estimates the value at (r, c).
func (k *Kriging) At(r, c float64) float64 {
	return k.estimate(r, c, -1, k.params)
}

// Surface evaluates the interpolator over a rows x cols grid. Estimates are
// computed every step pixels (and on the last row and column) and the
// pixels in between are filled bilinearly. A step below 2 evaluates every
// pixel.
func (k *Kriging) Surface(rows, cols, step int) (*models.Image, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("kriging surface: invalid shape %dx%d", rows, cols)
	}
	if step < 1 {
		step = 1
	}

	rowNodes := gridNodes(rows, step)
	colNodes := gridNodes(cols, step)
	coarse := make([]float64, len(rowNodes)*len(colNodes))
	for i, r := range rowNodes {
		for j, c := range colNodes {
			coarse[i*len(colNodes)+j] = k.At(float64(r), float64(c))
		}
		k.reportProgress(i+1, len(rowNodes), "")
	}

	out := models.NewImage(rows, cols)
	for r := 0; r < rows; r++ {
		i0, i1, tr := interval(rowNodes, r, step)
		for c := 0; c < cols; c++ {
			j0, j1, tc := interval(colNodes, c, step)
			top := coarse[i0*len(colNodes)+j0]*(1-tc) + coarse[i0*len(colNodes)+j1]*tc
			bottom := coarse[i1*len(colNodes)+j0]*(1-tc) + coarse[i1*len(colNodes)+j1]*tc
			out.Set(r, c, top*(1-tr)+bottom*tr)
		}
	}
	return out, nil
}

// interval locates x between two grid nodes and returns their indices with
// the interpolation weight of the second one.
func interval(nodes []int, x, step int) (i0, i1 int, t float64) {
	if len(nodes) == 1 {
		return 0, 0, 0
	}
	i0 = min(x/step, len(nodes)-2)
	i1 = i0 + 1
	t = float64(x-nodes[i0]) / float64(nodes[i1]-nodes[i0])
	return i0, i1, t
}

// gridNodes returns 0, step, 2*step, ... and always ends on size-1.
func gridNodes(size, step int) []int {
	nodes := make([]int, 0, size/step+2)
	for n := 0; n < size; n += step {
		nodes = append(nodes, n)
	}
	if nodes[len(nodes)-1] != size-1 {
		nodes = append(nodes, size-1)
	}
	return nodes
}

// neighbor is a sample taking part in one estimate.
type neighbor struct {
	point Point2D
	value float64
	dist  float64
}

// findNeighbors returns the nearest samples to (r, c), skipping the sample
// with index exclude.
func (k *Kriging) findNeighbors(r, c float64, exclude int) []neighbor {
	n := k.neighbors
	if exclude >= 0 {
		n++
	}
	keeper := kdtree.NewNKeeper(n)
	k.kdTree.NearestSet(keeper, Point2D{R: r, C: c})

	result := make([]neighbor, 0, keeper.Len())
	for _, item := range keeper.Heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		p := item.Comparable.(Point2D)
		if p.Index == exclude {
			continue
		}
		result = append(result, neighbor{point: p, value: k.values[p.Index], dist: math.Sqrt(item.Dist)})
	}
	return result
}

// estimate computes the kriging estimate at (r, c) from its neighbours,
// falling back to inverse distance weighting for tiny or singular systems.
func (k *Kriging) estimate(r, c float64, exclude int, params KrigingParams) float64 {
	nb := k.findNeighbors(r, c, exclude)
	if len(nb) == 0 {
		return math.NaN()
	}
	for _, s := range nb {
		if s.dist < 1e-10 {
			return s.value
		}
	}
	if len(nb) <= 3 {
		return inverseDistance(nb)
	}

	weights, err := k.calculateWeights(r, c, nb, params)
	if err != nil {
		return inverseDistance(nb)
	}
	var estimate float64
	for i, w := range weights {
		estimate += w * nb[i].value
	}
	return estimate
}

// calculateWeights solves the ordinary kriging system for the neighbour set.
// The last row and column carry the unbiasedness constraint.
func (k *Kriging) calculateWeights(r, c float64, nb []neighbor, params KrigingParams) ([]float64, error) {
	n := len(nb)
	a := mat.NewDense(n+1, n+1, nil)
	b := mat.NewVecDense(n+1, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			h := math.Sqrt(nb[i].point.Distance(nb[j].point))
			g := variogram(h, params)
			a.Set(i, j, g)
			a.Set(j, i, g)
		}
		a.Set(i, n, 1)
		a.Set(n, i, 1)
		b.SetVec(i, variogram(nb[i].dist, params))
	}
	b.SetVec(n, 1)

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("kriging system at (%g,%g): %w", r, c, err)
	}
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = x.AtVec(i)
		if math.IsNaN(weights[i]) || math.IsInf(weights[i], 0) {
			return nil, fmt.Errorf("kriging system at (%g,%g) produced non-finite weights", r, c)
		}
	}
	return weights, nil
}

// inverseDistance is the squared inverse distance weighted mean of the
// neighbours.
func inverseDistance(nb []neighbor) float64 {
	var sum, total float64
	for _, s := range nb {
		w := 1 / (s.dist * s.dist)
		sum += w * s.value
		total += w
	}
	return sum / total
}

// variogram calculates the semivariance between two points at distance h.
//
// Spherical reaches the sill at the range; exponential and gaussian reach
// about 95% of it there.
func variogram(h float64, params KrigingParams) float64 {
	if h == 0 {
		return 0
	}

	gamma := params.Nugget
	switch params.Model {
	case Spherical:
		if h < params.Range {
			r := h / params.Range
			gamma += params.Sill * (1.5*r - 0.5*r*r*r)
		} else {
			gamma += params.Sill
		}
	case Exponential:
		gamma += params.Sill * (1 - math.Exp(-3*h/params.Range))
	case Gaussian:
		gamma += params.Sill * (1 - math.Exp(-3*h*h/(params.Range*params.Range)))
	}
	return gamma
}
