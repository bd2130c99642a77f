// Package calibration runs a complete black-body calibration: dot
// detection, scatter surface estimation, verification and normalization.
package calibration

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bbscatter/internal/models"
	"bbscatter/pkg/config"
	"bbscatter/pkg/dots"
	"bbscatter/pkg/imageio"
	"bbscatter/pkg/imgproc"
	"bbscatter/pkg/interpolation"
	"bbscatter/pkg/normalization"
	"bbscatter/pkg/scatter"
)

// Inputs holds the paths of the exposures of one calibration run.
type Inputs struct {
	// BlackBody is the sample exposure with the black-body grid in the
	// beam. It is required.
	BlackBody string

	// BlackBodyOpenBeam is the open beam exposure with the grid in the
	// beam. When set together with Sample and OpenBeam the sample is
	// normalized with black-body scatter correction.
	BlackBodyOpenBeam string

	// Sample and OpenBeam are the projections to normalize. Both are
	// optional but must be given together.
	Sample   string
	OpenBeam string

	// DarkCurrent is optional.
	DarkCurrent string
}

// Params holds the calibration parameters.
type Params struct {
	// Inputs are the image paths.
	Inputs Inputs

	// Config holds the processing parameters. Nil means the defaults.
	Config *config.Config

	// OutputDir receives tables and renderings.
	OutputDir string

	// SaveIntermediaryResults also writes every processing stage to
	// OutputDir/intermediary.
	SaveIntermediaryResults bool

	// Logger receives progress messages. Nil discards them.
	Logger *slog.Logger
}

// Summary reports the outcome of a calibration run.
type Summary struct {
	// Threshold is the grey level used for threshold detection.
	Threshold float64

	// AreaBand is the area filter used on the black-body image.
	AreaBand models.AreaBand

	// Dots and OpenBeamDots are the detected dot counts.
	Dots         int
	OpenBeamDots int

	// Model holds the polynomial coefficients when the polynomial surface
	// was used.
	Model *scatter.Model

	// Kriging holds the variogram when the kriging surface was used.
	Kriging *interpolation.KrigingParams

	// Verification pools the residual table.
	Verification scatter.Summary

	// Normalized is set when a sample was normalized, ScatterCorrected
	// when that used the black-body correction.
	Normalized       bool
	ScatterCorrected bool

	// Outputs lists the written files.
	Outputs []string

	Duration time.Duration
}

// Calibrator runs the calibration pipeline.
type Calibrator struct {
	params *Params
	cfg    *config.Config
	log    *slog.Logger

	// Loaded inputs. Optional ones stay nil.
	bb, bbOB, sample, ob, dc *models.Image

	template  *models.Image
	detection *dots.Result
	obDetect  *dots.Result
	surface   *models.Image
	obSurface *models.Image
	residuals []models.Residual
	result    *models.Image

	summary Summary
}

// NewCalibrator creates a calibrator for the given parameters.
func NewCalibrator(params *Params) *Calibrator {
	cfg := params.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Calibrator{
		params: params,
		cfg:    cfg,
		log:    logger,
	}
}

// Process runs the complete calibration pipeline.
func (c *Calibrator) Process() error {
	start := time.Now()
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := os.MkdirAll(c.params.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Step 1: Load input images
	c.log.Info("loading inputs", "blackbody", c.params.Inputs.BlackBody)
	if err := c.loadInputs(); err != nil {
		return fmt.Errorf("failed to load inputs: %w", err)
	}
	c.saveIntermediary("01_inputs", "blackbody", c.bb)
	c.saveIntermediary("01_inputs", "blackbody_openbeam", c.bbOB)

	// Step 2: Build the dot template
	if c.cfg.Detection.Method == config.MethodTemplate {
		c.log.Info("extracting template", "roi", *c.cfg.Detection.TemplateROI)
		fp := imgproc.DiskFootprint(c.cfg.Detection.TemplateFilterRadius)
		tmpl, err := dots.ExtractTemplate(c.bb, *c.cfg.Detection.TemplateROI, fp)
		if err != nil {
			return fmt.Errorf("failed to extract template: %w", err)
		}
		c.template = tmpl
		c.saveIntermediary("02_template", "template", tmpl)
	}

	// Step 3: Detect dots
	res, err := c.detect(c.bb, "blackbody")
	if err != nil {
		return err
	}
	c.detection = res
	c.summary.Dots = len(res.Dots)
	c.log.Info("dots detected", "image", "blackbody", "count", len(res.Dots))
	if c.bbOB != nil {
		res, err := c.detect(c.bbOB, "blackbody_openbeam")
		if err != nil {
			return err
		}
		c.obDetect = res
		c.summary.OpenBeamDots = len(res.Dots)
		c.log.Info("dots detected", "image", "blackbody_openbeam", "count", len(res.Dots))
	}

	// Step 4: Estimate the scatter surface
	c.log.Info("estimating scatter", "method", c.cfg.Scatter.Method)
	if c.surface, err = c.scatterSurface(c.detection, c.bb, true); err != nil {
		return fmt.Errorf("failed to estimate scatter: %w", err)
	}
	c.saveIntermediary("04_scatter", "blackbody", c.surface)
	if c.obDetect != nil {
		if c.obSurface, err = c.scatterSurface(c.obDetect, c.bbOB, false); err != nil {
			return fmt.Errorf("failed to estimate open beam scatter: %w", err)
		}
		c.saveIntermediary("04_scatter", "blackbody_openbeam", c.obSurface)
	}

	// Step 5: Verify the surface under the detected dots
	c.residuals, err = scatter.Check(c.bb, c.surface, c.detection.Mask, c.cfg.Verification.AreaBand)
	if err != nil {
		return fmt.Errorf("failed to verify scatter: %w", err)
	}
	c.summary.Verification = scatter.Summarize(c.residuals)
	c.log.Info("scatter verified",
		"regions", c.summary.Verification.Regions,
		"meanMedian", c.summary.Verification.MeanMedian,
		"pooledRMSE", c.summary.Verification.PooledRMSE)

	// Step 6: Normalize the sample
	if err := c.normalize(); err != nil {
		return fmt.Errorf("failed to normalize: %w", err)
	}

	// Step 7: Write outputs
	if err := c.writeOutputs(); err != nil {
		return fmt.Errorf("failed to write outputs: %w", err)
	}

	c.summary.Duration = time.Since(start)
	c.log.Info("calibration finished", "duration", c.summary.Duration, "outputs", len(c.summary.Outputs))
	return nil
}

// Summary returns the results of the last Process call.
func (c *Calibrator) Summary() Summary {
	return c.summary
}

// Residuals returns the verification table of the last Process call.
func (c *Calibrator) Residuals() []models.Residual {
	return c.residuals
}

// Normalized returns the normalized sample, or nil when no sample was given.
func (c *Calibrator) Normalized() *models.Image {
	return c.result
}

func (c *Calibrator) loadInputs() error {
	in := c.params.Inputs
	if in.BlackBody == "" {
		return fmt.Errorf("black-body image is required")
	}
	if (in.Sample == "") != (in.OpenBeam == "") {
		return fmt.Errorf("sample and open beam must be given together")
	}

	var err error
	if c.bb, err = imageio.Load(in.BlackBody); err != nil {
		return err
	}
	optional := []struct {
		path string
		dst  **models.Image
	}{
		{in.BlackBodyOpenBeam, &c.bbOB},
		{in.Sample, &c.sample},
		{in.OpenBeam, &c.ob},
		{in.DarkCurrent, &c.dc},
	}
	for _, o := range optional {
		if o.path == "" {
			continue
		}
		img, err := imageio.Load(o.path)
		if err != nil {
			return err
		}
		if !img.SameShape(c.bb) {
			return fmt.Errorf("%s is %dx%d, black-body image is %dx%d: %w",
				filepath.Base(o.path), img.Rows, img.Cols, c.bb.Rows, c.bb.Cols, models.ErrShapeMismatch)
		}
		*o.dst = img
	}
	c.log.Debug("inputs loaded", "rows", c.bb.Rows, "cols", c.bb.Cols,
		"openbeam", c.bbOB != nil, "sample", c.sample != nil, "darkcurrent", c.dc != nil)
	return nil
}

// detect runs the configured detector on img.
func (c *Calibrator) detect(img *models.Image, name string) (*dots.Result, error) {
	det := c.cfg.Detection

	var (
		res *dots.Result
		err error
	)
	switch det.Method {
	case config.MethodTemplate:
		band := det.AreaBand
		if band == nil {
			b, err := dots.TemplateAreaBand(c.template)
			if err != nil {
				return nil, fmt.Errorf("failed to derive area band: %w", err)
			}
			band = &b
		}
		if name == "blackbody" {
			c.summary.AreaBand = *band
		}
		res, err = dots.DetectByTemplate(img, c.template, det.ScoreThreshold, band, det.DiskRadius)
		if err == nil {
			c.saveIntermediary("03_detection", name+"_score", res.Score)
		}
	default:
		threshold := det.Threshold
		if det.AutoThreshold {
			threshold, err = imgproc.OtsuThreshold(img.Data, imgproc.DefaultOtsuBins)
			if err != nil {
				return nil, fmt.Errorf("failed to compute threshold: %w", err)
			}
		}
		c.log.Debug("threshold", "image", name, "value", threshold, "auto", det.AutoThreshold)
		band := c.cfg.ThresholdAreaBand()
		if name == "blackbody" {
			c.summary.Threshold = threshold
			c.summary.AreaBand = band
		}
		res, err = dots.DetectByThreshold(img, threshold, band, det.DiskRadius)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to detect dots in %s: %w", name, err)
	}
	if res.Empty() {
		return nil, fmt.Errorf("%s: %w", name, models.ErrEmptyDetection)
	}
	c.saveIntermediaryMask("03_detection", name+"_mask", res.Mask)
	return res, nil
}

// scatterSurface estimates the scatter over the whole frame of img from the
// dots in res. primary marks the black-body sample, whose model goes into
// the summary.
func (c *Calibrator) scatterSurface(res *dots.Result, img *models.Image, primary bool) (*models.Image, error) {
	column, err := scatter.ParseColumn(c.cfg.Scatter.ValueColumn)
	if err != nil {
		return nil, err
	}

	if c.cfg.Scatter.Method != config.SurfaceKriging {
		q, err := scatter.FitTable(res.Dots, column)
		if err != nil {
			return nil, err
		}
		if primary {
			c.summary.Model = &q
		}
		c.log.Debug("polynomial scatter", "coefficients", q[:])
		return scatter.EvaluatePolynomial(img.Rows, img.Cols, q), nil
	}

	kc := c.cfg.Scatter.Kriging
	k, err := interpolation.NewKriging(res.Samples(column == scatter.ColumnMean))
	if err != nil {
		return nil, err
	}
	k.SetNeighbors(kc.Neighbors)

	p := k.Params()
	if p.Model, err = interpolation.ParseVariogramModel(kc.Variogram); err != nil {
		return nil, err
	}
	if err := k.SetParams(p); err != nil {
		return nil, err
	}
	if kc.Optimize {
		k.SetProgressCallback(func(completed, total int, message string) {
			c.log.Debug("variogram search", "completed", completed, "total", total, "candidate", message)
		})
		var rmse float64
		p, rmse = k.Optimize()
		c.log.Info("variogram selected", "model", p.Model.String(), "range", p.Range, "sill", p.Sill, "rmse", rmse)
	}
	if primary {
		c.summary.Kriging = &p
	}
	return k.Surface(img.Rows, img.Cols, kc.Step)
}

// normalize computes the normalized sample when one was given.
func (c *Calibrator) normalize() error {
	if c.sample == nil {
		c.log.Info("no sample given, skipping normalization")
		return nil
	}
	nc := c.cfg.Normalization

	if c.obSurface == nil {
		c.log.Info("normalizing", "scatterCorrection", false)
		out, err := normalization.Normalize(c.sample, c.ob, c.dc, nc.DoseROI, nc.ApplyLog)
		if err != nil {
			return err
		}
		c.result = out
		c.summary.Normalized = true
		return nil
	}

	roi := models.NewROI(0, 0, c.sample.Rows, c.sample.Cols)
	if nc.DoseROI != nil {
		roi = *nc.DoseROI
	}
	c.log.Info("normalizing", "scatterCorrection", true, "tau", nc.Tau)
	out, err := normalization.NormalizeWithScatterCorrection(normalization.ScatterCorrectionInput{
		Sample:          c.sample,
		OpenBeam:        c.ob,
		DarkCurrent:     c.dc,
		BBSample:        c.bb,
		BBOpenBeam:      c.bbOB,
		ScatterSample:   c.surface,
		ScatterOpenBeam: c.obSurface,
		ROI:             roi,
		Tau:             nc.Tau,
	})
	if err != nil {
		return err
	}
	c.result = out
	c.summary.Normalized = true
	c.summary.ScatterCorrected = true
	return nil
}
