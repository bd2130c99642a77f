package dots

import (
	"errors"
	"math"
	"testing"

	"bbscatter/internal/models"
	"bbscatter/pkg/imgproc"
)

// paintDisk sets the pixels of a disk to value.
func paintDisk(img *models.Image, r0, c0, radius, value float64) {
	rr, cc := imgproc.Disk(r0, c0, radius, img.Rows, img.Cols)
	for i := range rr {
		img.Set(rr[i], cc[i], value)
	}
}

// paintSquare fills a size x size block with its top-left corner at (r, c).
func paintSquare(img *models.Image, r, c, size int, value float64) {
	for i := r; i < r+size; i++ {
		for j := c; j < c+size; j++ {
			img.Set(i, j, value)
		}
	}
}

func TestDetectByThresholdTwoDisks(t *testing.T) {
	img := models.NewFilledImage(30, 30, 100)
	paintDisk(img, 5, 5, 2, 0)
	paintDisk(img, 5, 20, 2, 0)

	res, err := DetectByThreshold(img, 50, models.AreaBand{Min: 1, Max: 100}, 2)
	if err != nil {
		t.Fatalf("DetectByThreshold failed: %v", err)
	}
	if len(res.Dots) != 2 {
		t.Fatalf("expected 2 dots, got %d", len(res.Dots))
	}

	want := [][2]float64{{5, 5}, {5, 20}}
	for i, d := range res.Dots {
		if d.R != want[i][0] || d.C != want[i][1] {
			t.Errorf("dot %d at (%f,%f), want (%f,%f)", i, d.R, d.C, want[i][0], want[i][1])
		}
		if d.Mean != 0 || d.Median != 0 {
			t.Errorf("dot %d statistics mean=%f median=%f, want 0", i, d.Mean, d.Median)
		}
		if d.Area != 9 {
			t.Errorf("dot %d area %d, want 9", i, d.Area)
		}
	}

	if res.Mask.Count() != 18 {
		t.Errorf("mask has %d pixels, want 18", res.Mask.Count())
	}
	for _, v := range res.Mask.Data {
		if v != 0 && v != MaskValue {
			t.Fatalf("mask value %d is neither 0 nor %d", v, MaskValue)
		}
	}
	if len(res.Rows) != 18 || len(res.Cols) != 18 {
		t.Fatalf("coordinate lists have %d/%d entries, want 18", len(res.Rows), len(res.Cols))
	}
	for i := 1; i < len(res.Rows); i++ {
		prev := res.Rows[i-1]*img.Cols + res.Cols[i-1]
		cur := res.Rows[i]*img.Cols + res.Cols[i]
		if cur <= prev {
			t.Fatalf("coordinates not in row-major order at %d", i)
		}
	}
	if res.Score != nil {
		t.Error("threshold detection should not produce a score map")
	}
}

func TestDetectByThresholdAreaFilter(t *testing.T) {
	img := models.NewFilledImage(40, 40, 100)
	paintSquare(img, 2, 2, 1, 0)   // area 1
	paintSquare(img, 2, 10, 3, 0)  // area 9
	paintSquare(img, 10, 2, 5, 0)  // area 25
	paintSquare(img, 20, 20, 8, 0) // area 64

	tests := []struct {
		name  string
		band  models.AreaBand
		areas []int
	}{
		{"middle", models.AreaBand{Min: 5, Max: 30}, []int{9, 25}},
		{"inclusive bounds", models.AreaBand{Min: 9, Max: 25}, []int{9, 25}},
		{"all", models.AreaBand{Min: 1, Max: 64}, []int{1, 9, 25, 64}},
		{"none", models.AreaBand{Min: 100, Max: 200}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := DetectByThreshold(img, 50, tt.band, 1.5)
			if err != nil {
				t.Fatalf("DetectByThreshold failed: %v", err)
			}
			if len(res.Dots) != len(tt.areas) {
				t.Fatalf("got %d dots, want %d", len(res.Dots), len(tt.areas))
			}
			for i, d := range res.Dots {
				if !tt.band.Contains(d.Area) {
					t.Errorf("dot %d area %d outside band %+v", i, d.Area, tt.band)
				}
				if d.Area != tt.areas[i] {
					t.Errorf("dot %d area %d, want %d", i, d.Area, tt.areas[i])
				}
				if i > 0 && d.Label <= res.Dots[i-1].Label {
					t.Errorf("dots not ordered by label")
				}
			}
		})
	}
}

func TestDetectByThresholdEmpty(t *testing.T) {
	img := models.NewImage(20, 20)
	res, err := DetectByThreshold(img, 0, models.AreaBand{Min: 1, Max: 10}, 2)
	if err != nil {
		t.Fatalf("DetectByThreshold failed: %v", err)
	}
	if !res.Empty() {
		t.Errorf("expected no dots, got %d", len(res.Dots))
	}
	if res.Mask.Count() != 0 || len(res.Rows) != 0 {
		t.Error("expected an all-zero mask")
	}
	if res.Mask.Rows != 20 || res.Mask.Cols != 20 {
		t.Errorf("mask shape %dx%d, want 20x20", res.Mask.Rows, res.Mask.Cols)
	}
}

func TestDetectByThresholdInvalidInput(t *testing.T) {
	img := models.NewImage(10, 10)

	_, err := DetectByThreshold(img, 1, models.AreaBand{Min: 10, Max: 5}, 2)
	if !errors.Is(err, models.ErrDegenerateAreaBand) {
		t.Errorf("expected ErrDegenerateAreaBand, got %v", err)
	}
	_, err = DetectByThreshold(img, 1, models.AreaBand{Min: -1, Max: 5}, 2)
	if !errors.Is(err, models.ErrDegenerateAreaBand) {
		t.Errorf("expected ErrDegenerateAreaBand for a negative bound, got %v", err)
	}
	if _, err := DetectByThreshold(img, 1, models.AreaBand{Min: 1, Max: 5}, 0); err == nil {
		t.Error("expected an error for a zero radius")
	}
	if _, err := DetectByThreshold(nil, 1, models.AreaBand{Min: 1, Max: 5}, 2); err == nil {
		t.Error("expected an error for a nil image")
	}
}

func TestDetectInputNotModified(t *testing.T) {
	img := models.NewFilledImage(30, 30, 100)
	paintDisk(img, 10, 10, 3, 0)
	orig := img.Clone()

	if _, err := DetectByThreshold(img, 50, models.AreaBand{Min: 1, Max: 100}, 2); err != nil {
		t.Fatalf("DetectByThreshold failed: %v", err)
	}
	for i := range img.Data {
		if img.Data[i] != orig.Data[i] {
			t.Fatalf("input modified at %d", i)
		}
	}
}

func TestExtractTemplate(t *testing.T) {
	img := models.NewFilledImage(40, 40, 100)
	paintDisk(img, 20, 20, 4, 10)
	img.Set(14, 14, 5000) // hot pixel inside the ROI

	template, err := ExtractTemplate(img, models.NewROI(13, 13, 28, 28), DefaultTemplateFootprint)
	if err != nil {
		t.Fatalf("ExtractTemplate failed: %v", err)
	}
	if template.Rows != 15 || template.Cols != 15 {
		t.Fatalf("template shape %dx%d, want 15x15", template.Rows, template.Cols)
	}
	if template.At(1, 1) != 100 {
		t.Errorf("hot pixel not removed: %f", template.At(1, 1))
	}
	if template.At(7, 7) != 10 {
		t.Errorf("template center %f, want 10", template.At(7, 7))
	}

	_, err = ExtractTemplate(img, models.NewROI(30, 30, 45, 45), DefaultTemplateFootprint)
	if !errors.Is(err, models.ErrInvalidRegion) {
		t.Errorf("expected ErrInvalidRegion, got %v", err)
	}
	_, err = ExtractTemplate(img, models.NewROI(10, 10, 10, 20), DefaultTemplateFootprint)
	if !errors.Is(err, models.ErrInvalidRegion) {
		t.Errorf("expected ErrInvalidRegion for an empty ROI, got %v", err)
	}
}

func TestTemplateAreaBand(t *testing.T) {
	template := models.NewFilledImage(11, 11, 100)
	paintDisk(template, 5, 5, 3, 0) // 25 dark pixels

	band, err := TemplateAreaBand(template)
	if err != nil {
		t.Fatalf("TemplateAreaBand failed: %v", err)
	}
	if math.Abs(band.Min-5) > 1e-12 || math.Abs(band.Max-20) > 1e-12 {
		t.Errorf("band = %+v, want [5, 20]", band)
	}

	_, err = TemplateAreaBand(models.NewFilledImage(5, 5, 3))
	if !errors.Is(err, models.ErrDegenerateAreaBand) {
		t.Errorf("expected ErrDegenerateAreaBand for a flat template, got %v", err)
	}
}

func TestDetectByTemplate(t *testing.T) {
	img := models.NewFilledImage(80, 80, 1000)
	centers := [][2]float64{{15, 15}, {15, 55}, {50, 35}}
	for _, c := range centers {
		paintDisk(img, c[0], c[1], 4, 100)
	}

	template := models.NewFilledImage(15, 15, 1000)
	paintDisk(template, 7, 7, 4, 100)

	band := models.AreaBand{Min: 1, Max: 500}
	res, err := DetectByTemplate(img, template, 0.9, &band, 3)
	if err != nil {
		t.Fatalf("DetectByTemplate failed: %v", err)
	}
	if res.Score == nil || !res.Score.SameShape(img) {
		t.Fatal("score map missing or of wrong shape")
	}
	if len(res.Dots) != len(centers) {
		t.Fatalf("found %d dots, want %d", len(res.Dots), len(centers))
	}
	for i, d := range res.Dots {
		if math.Abs(d.R-centers[i][0]) > 0.5 || math.Abs(d.C-centers[i][1]) > 0.5 {
			t.Errorf("dot %d at (%f,%f), want near (%f,%f)", i, d.R, d.C, centers[i][0], centers[i][1])
		}
		if d.Median != 100 {
			t.Errorf("dot %d median %f, want 100", i, d.Median)
		}
	}

	// Template larger than the image
	if _, err := DetectByTemplate(models.NewImage(5, 5), template, 0.5, &band, 2); err == nil {
		t.Error("expected an error for a template larger than the image")
	}
}

func TestResultSamples(t *testing.T) {
	res := &Result{Dots: []models.Dot{
		{Label: 1, Mean: 2, Median: 3, R: 4, C: 5},
	}}
	if s := res.Samples(false); s[0] != (models.Sample{R: 4, C: 5, Value: 3}) {
		t.Errorf("median sample = %+v", s[0])
	}
	if s := res.Samples(true); s[0].Value != 2 {
		t.Errorf("mean sample value = %f, want 2", s[0].Value)
	}
}
