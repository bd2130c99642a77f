package models

import (
	"errors"
	"testing"
)

func TestNewImageFromData(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	img, err := NewImageFromData(2, 3, data)
	if err != nil {
		t.Fatalf("NewImageFromData failed: %v", err)
	}
	if img.At(1, 0) != 4 || img.At(0, 2) != 3 {
		t.Errorf("unexpected layout: %v", img.Data)
	}
	data[0] = 99
	if img.At(0, 0) != 1 {
		t.Error("image shares the caller's slice")
	}

	if _, err := NewImageFromData(2, 2, data); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	if _, err := NewImageFromData(0, 3, nil); err == nil {
		t.Error("expected an error for an empty shape")
	}
}

func TestImageEmpty(t *testing.T) {
	var nilImage *Image
	tests := []struct {
		name string
		img  *Image
		want bool
	}{
		{"nil", nilImage, true},
		{"zero shape", &Image{}, true},
		{"short data", &Image{Rows: 2, Cols: 2, Data: make([]float64, 3)}, true},
		{"valid", NewImage(2, 2), false},
	}
	for _, tt := range tests {
		if got := tt.img.Empty(); got != tt.want {
			t.Errorf("%s: Empty() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCrop(t *testing.T) {
	img := NewImage(4, 5)
	for i := range img.Data {
		img.Data[i] = float64(i)
	}

	out, err := img.Crop(NewROI(1, 2, 3, 5))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if out.Rows != 2 || out.Cols != 3 {
		t.Fatalf("expected 2x3, got %dx%d", out.Rows, out.Cols)
	}
	want := []float64{7, 8, 9, 12, 13, 14}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("pixel %d: expected %g, got %g", i, v, out.Data[i])
		}
	}

	if _, err := img.Crop(NewROI(0, 0, 5, 5)); !errors.Is(err, ErrInvalidRegion) {
		t.Errorf("expected ErrInvalidRegion, got %v", err)
	}
}

func TestROIValidate(t *testing.T) {
	tests := []struct {
		name  string
		roi   ROI
		valid bool
	}{
		{"full frame", NewROI(0, 0, 10, 20), true},
		{"single pixel", NewROI(3, 4, 4, 5), true},
		{"empty rows", NewROI(5, 0, 5, 10), false},
		{"inverted cols", NewROI(0, 8, 10, 2), false},
		{"negative origin", NewROI(-1, 0, 5, 5), false},
		{"past the edge", NewROI(0, 0, 11, 20), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.roi.Validate(10, 20)
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidRegion) {
				t.Errorf("expected ErrInvalidRegion, got %v", err)
			}
		})
	}
}

func TestAreaBand(t *testing.T) {
	band := AreaBand{Min: 5, Max: 10}
	if err := band.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for area, want := range map[int]bool{4: false, 5: true, 7: true, 10: true, 11: false} {
		if got := band.Contains(area); got != want {
			t.Errorf("Contains(%d) = %v, want %v", area, got, want)
		}
	}

	for _, b := range []AreaBand{{Min: -1, Max: 3}, {Min: 4, Max: 4}, {Min: 9, Max: 2}} {
		if err := b.Validate(); !errors.Is(err, ErrDegenerateAreaBand) {
			t.Errorf("%+v: expected ErrDegenerateAreaBand, got %v", b, err)
		}
	}
}

func TestMask(t *testing.T) {
	m := NewMask(3, 4)
	m.Set(0, 3, 255)
	m.Set(2, 1, 1)
	m.Set(1, 0, 255)

	if m.Count() != 3 {
		t.Errorf("expected 3 foreground pixels, got %d", m.Count())
	}
	rows, cols := m.Points()
	wantRows, wantCols := []int{0, 1, 2}, []int{3, 0, 1}
	for i := range wantRows {
		if rows[i] != wantRows[i] || cols[i] != wantCols[i] {
			t.Errorf("point %d: expected (%d,%d), got (%d,%d)", i, wantRows[i], wantCols[i], rows[i], cols[i])
		}
	}
	fg := m.Foreground()
	if !fg[3] || !fg[4] || !fg[9] || fg[0] {
		t.Errorf("unexpected foreground %v", fg)
	}
}
