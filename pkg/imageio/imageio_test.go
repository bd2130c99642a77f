package imageio

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/astrogo/fitsio"
	"golang.org/x/image/tiff"

	"bbscatter/internal/models"
)

func TestFromImage(t *testing.T) {
	g16 := image.NewGray16(image.Rect(0, 0, 3, 2))
	g16.SetGray16(2, 1, color.Gray16{Y: 40000})

	g8 := image.NewGray(image.Rect(0, 0, 3, 2))
	g8.SetGray(2, 1, color.Gray{Y: 200})

	rgba := image.NewRGBA(image.Rect(0, 0, 3, 2))
	rgba.Set(2, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	tests := []struct {
		name string
		img  image.Image
		want float64
	}{
		{"gray16", g16, 40000},
		{"gray", g8, 200},
		{"rgba", rgba, 65535},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FromImage(tt.img)
			if out.Rows != 2 || out.Cols != 3 {
				t.Fatalf("shape %dx%d, want 2x3", out.Rows, out.Cols)
			}
			if out.At(1, 2) != tt.want {
				t.Errorf("pixel (1,2) = %f, want %f", out.At(1, 2), tt.want)
			}
			if out.At(0, 0) != 0 {
				t.Errorf("pixel (0,0) = %f, want 0", out.At(0, 0))
			}
		})
	}
}

func TestFromImageOffsetBounds(t *testing.T) {
	img := image.NewGray(image.Rect(5, 10, 8, 12))
	img.SetGray(5, 10, color.Gray{Y: 7})
	out := FromImage(img)
	if out.Rows != 2 || out.Cols != 3 || out.At(0, 0) != 7 {
		t.Errorf("unexpected conversion: %dx%d, first pixel %f", out.Rows, out.Cols, out.At(0, 0))
	}
}

func TestLoadPNGAndTIFF(t *testing.T) {
	dir := t.TempDir()

	src := image.NewGray16(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			src.SetGray16(x, y, color.Gray16{Y: uint16(1000*y + x)})
		}
	}

	pngPath := filepath.Join(dir, "frame.png")
	f, err := os.Create(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	tiffPath := filepath.Join(dir, "frame.tif")
	f, err = os.Create(tiffPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := tiff.Encode(f, src, nil); err != nil {
		t.Fatal(err)
	}
	f.Close()

	for _, path := range []string{pngPath, tiffPath} {
		img, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", path, err)
		}
		if img.Rows != 3 || img.Cols != 4 {
			t.Fatalf("%s: shape %dx%d, want 3x4", path, img.Rows, img.Cols)
		}
		if img.At(2, 3) != 2003 {
			t.Errorf("%s: pixel (2,3) = %f, want 2003", path, img.At(2, 3))
		}
	}

	if _, err := Load(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestFITSRoundTrip(t *testing.T) {
	img := models.NewImage(3, 5)
	for i := range img.Data {
		img.Data[i] = float64(i) * 1.5
	}

	path := filepath.Join(t.TempDir(), "surface.fits")
	if err := SaveFITS(path, img); err != nil {
		t.Fatalf("SaveFITS failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Rows != 3 || got.Cols != 5 {
		t.Fatalf("shape %dx%d, want 3x5", got.Rows, got.Cols)
	}
	for i := range img.Data {
		if got.Data[i] != img.Data[i] {
			t.Fatalf("pixel %d = %f, want %f", i, got.Data[i], img.Data[i])
		}
	}
}

func TestLoadFITSInt16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.fits")
	w, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	f, err := fitsio.Create(w)
	if err != nil {
		t.Fatal(err)
	}
	hdu := fitsio.NewImage(16, []int{4, 2})
	defer hdu.Close()
	data := []int16{-3, 0, 7, 1000, 12, 13, 14, 15}
	if err := hdu.Write(&data); err != nil {
		t.Fatal(err)
	}
	if err := f.Write(hdu); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	img, err := LoadFITS(path)
	if err != nil {
		t.Fatalf("LoadFITS failed: %v", err)
	}
	if img.Rows != 2 || img.Cols != 4 {
		t.Fatalf("shape %dx%d, want 2x4", img.Rows, img.Cols)
	}
	for i, v := range data {
		if img.Data[i] != float64(v) {
			t.Errorf("pixel %d = %f, want %d", i, img.Data[i], v)
		}
	}
}

func TestIsFITS(t *testing.T) {
	tests := map[string]bool{
		"a.fits": true,
		"b.FIT":  true,
		"c.fts":  true,
		"d.tif":  false,
		"e.png":  false,
	}
	for path, want := range tests {
		if got := isFITS(path); got != want {
			t.Errorf("isFITS(%q) = %v, want %v", path, got, want)
		}
	}
}
