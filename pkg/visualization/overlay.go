package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"bbscatter/internal/models"
	"bbscatter/pkg/scatter"
)

// OverlayOptions controls the residual overlay rendering.
type OverlayOptions struct {
	// Clim is the grey level window for the observed image. A zero window
	// uses the image's own range.
	Clim [2]float64

	// Symmetric centers the marker color range on zero.
	Symmetric bool

	// Scale is the integer upscaling factor; values below 1 mean 1.
	Scale int

	// MarkerRadius is the marker radius in output pixels; 0 picks a default.
	MarkerRadius int

	// Colorbar appends a vertical color scale on the right.
	Colorbar bool
}

const (
	defaultMarkerRadius = 4
	colorbarWidth       = 16
)

// ResidualOverlay draws the observed image in grey with one filled marker
// per verified region, colored by the region's median residual on the jet
// colormap. Marker positions use the residual X (column) and Y (row).
func ResidualOverlay(observed *models.Image, residuals []models.Residual, opts OverlayOptions) (*image.NRGBA, error) {
	if observed.Empty() {
		return nil, fmt.Errorf("residual overlay: empty image")
	}

	lo, hi := opts.Clim[0], opts.Clim[1]
	if lo == 0 && hi == 0 {
		lo, hi = AutoRange(observed)
	}
	scale := max(opts.Scale, 1)
	radius := opts.MarkerRadius
	if radius <= 0 {
		radius = defaultMarkerRadius
	}

	base := ToGray16(observed, lo, hi)
	canvas := imaging.Resize(base, observed.Cols*scale, observed.Rows*scale, imaging.NearestNeighbor)

	cmin, cmax := scatter.ColorRange(residuals, opts.Symmetric)
	for _, res := range residuals {
		cx := (res.X + 0.5) * float64(scale)
		cy := (res.Y + 0.5) * float64(scale)
		drawDisk(canvas, cx, cy, float64(radius), ColorFor(res.Median, cmin, cmax))
	}

	if !opts.Colorbar {
		return canvas, nil
	}
	bounds := canvas.Bounds()
	out := imaging.New(bounds.Dx()+colorbarWidth, bounds.Dy(), color.White)
	out = imaging.Paste(out, canvas, image.Pt(0, 0))
	out = imaging.Paste(out, colorbar(colorbarWidth, bounds.Dy()), image.Pt(bounds.Dx(), 0))
	return out, nil
}

// drawDisk fills a circle of radius centered at (cx, cy).
func drawDisk(img *image.NRGBA, cx, cy, radius float64, col color.NRGBA) {
	b := img.Bounds()
	x0 := max(int(math.Floor(cx-radius)), b.Min.X)
	x1 := min(int(math.Ceil(cx+radius)), b.Max.X-1)
	y0 := max(int(math.Floor(cy-radius)), b.Min.Y)
	y1 := min(int(math.Ceil(cy+radius)), b.Max.Y-1)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy <= radius*radius {
				img.SetNRGBA(x, y, col)
			}
		}
	}
}

// colorbar renders the jet colormap top (high) to bottom (low).
func colorbar(width, height int) *image.NRGBA {
	bar := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		t := 1.0
		if height > 1 {
			t = 1 - float64(y)/float64(height-1)
		}
		col := Jet(t)
		for x := 0; x < width; x++ {
			bar.SetNRGBA(x, y, col)
		}
	}
	return bar
}
