package normalization

import (
	"errors"
	"math"
	"testing"

	"bbscatter/internal/models"
)

func TestRemoveDarkCurrent(t *testing.T) {
	img := models.NewFilledImage(4, 4, 10)
	img.Set(0, 0, 2)

	t.Run("nil is identity", func(t *testing.T) {
		out, err := RemoveDarkCurrent(img, nil)
		if err != nil {
			t.Fatalf("RemoveDarkCurrent failed: %v", err)
		}
		for i := range img.Data {
			if out.Data[i] != img.Data[i] {
				t.Fatalf("pixel %d changed: %f", i, out.Data[i])
			}
		}
		out.Data[0] = 99
		if img.Data[0] == 99 {
			t.Error("result aliases the input")
		}
	})

	t.Run("zero frame is identity", func(t *testing.T) {
		zero := models.NewImage(4, 4)
		src := models.NewFilledImage(4, 4, 0.5)
		out, err := RemoveDarkCurrent(src, zero)
		if err != nil {
			t.Fatalf("RemoveDarkCurrent failed: %v", err)
		}
		// No clamping either
		if out.At(1, 1) != 0.5 {
			t.Errorf("pixel = %f, want 0.5", out.At(1, 1))
		}
	})

	t.Run("subtract and clamp", func(t *testing.T) {
		dc := models.NewFilledImage(4, 4, 3)
		out, err := RemoveDarkCurrent(img, dc)
		if err != nil {
			t.Fatalf("RemoveDarkCurrent failed: %v", err)
		}
		if out.At(1, 1) != 7 {
			t.Errorf("pixel = %f, want 7", out.At(1, 1))
		}
		if out.At(0, 0) != MinCount {
			t.Errorf("clamped pixel = %f, want %f", out.At(0, 0), MinCount)
		}
		if img.At(1, 1) != 10 {
			t.Error("input modified")
		}
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := RemoveDarkCurrent(img, models.NewFilledImage(3, 4, 1))
		if !errors.Is(err, models.ErrShapeMismatch) {
			t.Errorf("expected ErrShapeMismatch, got %v", err)
		}
	})
}

func TestRegionDose(t *testing.T) {
	img := models.NewFilledImage(4, 4, 7)
	d, err := RegionDose(img, models.NewROI(0, 0, 4, 4))
	if err != nil {
		t.Fatalf("RegionDose failed: %v", err)
	}
	if d != 7 {
		t.Errorf("dose = %f, want 7", d)
	}

	// Column medians 1, 2, 30 -> mean 11
	data := []float64{
		1, 2, 100,
		1, 2, 30,
		9, 0, 20,
	}
	img, _ = models.NewImageFromData(3, 3, data)
	d, err = RegionDose(img, models.NewROI(0, 0, 3, 3))
	if err != nil {
		t.Fatalf("RegionDose failed: %v", err)
	}
	if d != 11 {
		t.Errorf("dose = %f, want 11", d)
	}

	_, err = RegionDose(img, models.NewROI(0, 0, 4, 3))
	if !errors.Is(err, models.ErrInvalidRegion) {
		t.Errorf("expected ErrInvalidRegion, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	sample := models.NewFilledImage(10, 10, 8)
	ob := models.NewFilledImage(10, 10, 8)
	dc := models.NewFilledImage(10, 10, 2)

	out, err := Normalize(sample, ob, dc, nil, false)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	for i, v := range out.Data {
		if v != 1 {
			t.Fatalf("pixel %d = %f, want 1", i, v)
		}
	}

	logged, err := Normalize(sample, ob, dc, nil, true)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if logged.At(3, 3) != 0 {
		t.Errorf("log of unit transmission = %f, want 0", logged.At(3, 3))
	}
}

func TestNormalizeDoseAndLog(t *testing.T) {
	// Sample at half transmission, taken with half the dose of the open beam
	sample := models.NewFilledImage(6, 6, 25)
	sample.Set(0, 0, 50) // unattenuated reference pixel
	ob := models.NewFilledImage(6, 6, 100)
	roi := models.NewROI(0, 0, 1, 1)

	out, err := Normalize(sample, ob, nil, &roi, true)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	// D = 100/50 = 2, n = 2*25/100 = 0.5
	want := -math.Log(0.5)
	if math.Abs(out.At(3, 3)-want) > 1e-12 {
		t.Errorf("pixel = %f, want %f", out.At(3, 3), want)
	}
	if math.Abs(out.At(0, 0)) > 1e-12 {
		t.Errorf("reference pixel = %f, want 0", out.At(0, 0))
	}

	// Clamping happens even without dark current
	low := models.NewFilledImage(6, 6, 0.25)
	out, err = Normalize(low, ob, nil, nil, false)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if out.At(1, 1) != 0.01 {
		t.Errorf("clamped ratio = %f, want 0.01", out.At(1, 1))
	}

	if _, err := Normalize(sample, models.NewImage(5, 6), nil, nil, false); !errors.Is(err, models.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	bad := models.NewROI(0, 0, 7, 7)
	if _, err := Normalize(sample, ob, nil, &bad, false); !errors.Is(err, models.ErrInvalidRegion) {
		t.Errorf("expected ErrInvalidRegion, got %v", err)
	}
}

func scatterInput(tau float64) ScatterCorrectionInput {
	return ScatterCorrectionInput{
		Sample:          models.NewFilledImage(8, 8, 50),
		OpenBeam:        models.NewFilledImage(8, 8, 100),
		BBSample:        models.NewFilledImage(8, 8, 10),
		BBOpenBeam:      models.NewFilledImage(8, 8, 20),
		ScatterSample:   models.NewFilledImage(8, 8, 5),
		ScatterOpenBeam: models.NewFilledImage(8, 8, 10),
		ROI:             models.NewROI(2, 2, 6, 6),
		Tau:             tau,
	}
}

func TestNormalizeWithScatterCorrection(t *testing.T) {
	for _, tau := range []float64{1, 0.5, 0.8} {
		in := scatterInput(tau)
		out, err := NormalizeWithScatterCorrection(in)
		if err != nil {
			t.Fatalf("tau %g: NormalizeWithScatterCorrection failed: %v", tau, err)
		}

		k := 1 - 1/tau
		ds := 50 / (tau * (10 - k*5))
		do := 100 / (tau * (20 - k*10))
		want := (50 - 5*ds) / (100 - 10*do) * (do / ds)
		for i, v := range out.Data {
			if math.Abs(v-want) > 1e-12 {
				t.Fatalf("tau %g: pixel %d = %f, want %f", tau, i, v, want)
			}
		}
	}
}

func TestNormalizeWithScatterCorrectionDarkCurrent(t *testing.T) {
	in := scatterInput(1)
	in.DarkCurrent = models.NewFilledImage(8, 8, 2)

	out, err := NormalizeWithScatterCorrection(in)
	if err != nil {
		t.Fatalf("NormalizeWithScatterCorrection failed: %v", err)
	}
	// Scatter images are not dark current corrected
	ds := 48.0 / 8
	do := 98.0 / 18
	want := (48 - 5*ds) / (98 - 10*do) * (do / ds)
	if math.Abs(out.At(4, 4)-want) > 1e-12 {
		t.Errorf("pixel = %f, want %f", out.At(4, 4), want)
	}
	if in.Sample.At(0, 0) != 50 {
		t.Error("input modified")
	}
}

func TestScatterCorrectionInputValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ScatterCorrectionInput)
		target error
	}{
		{"zero tau", func(in *ScatterCorrectionInput) { in.Tau = 0 }, nil},
		{"negative tau", func(in *ScatterCorrectionInput) { in.Tau = -1 }, nil},
		{"missing scatter", func(in *ScatterCorrectionInput) { in.ScatterSample = nil }, nil},
		{"shape", func(in *ScatterCorrectionInput) { in.BBOpenBeam = models.NewImage(8, 9) }, models.ErrShapeMismatch},
		{"dark current shape", func(in *ScatterCorrectionInput) { in.DarkCurrent = models.NewImage(2, 2) }, models.ErrShapeMismatch},
		{"roi", func(in *ScatterCorrectionInput) { in.ROI = models.NewROI(0, 0, 9, 4) }, models.ErrInvalidRegion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := scatterInput(0.5)
			tt.modify(&in)
			_, err := NormalizeWithScatterCorrection(in)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}
