package calibration

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"bbscatter/internal/models"
	"bbscatter/pkg/imageio"
	"bbscatter/pkg/visualization"
)

// IntermediaryDir is the subdirectory of the output directory that receives
// intermediary stages.
const IntermediaryDir = "intermediary"

var (
	dotHeader      = []string{"label", "mean", "median", "r", "c", "area"}
	residualHeader = []string{"label", "median", "mean", "mse", "rmse", "area", "r", "c", "x", "y"}
)

// writeOutputs writes tables and renderings to the output directory.
func (c *Calibrator) writeOutputs() error {
	if err := c.writeTable("dots.csv", dotHeader, dotRows(c.detection.Dots)); err != nil {
		return err
	}
	if c.obDetect != nil {
		if err := c.writeTable("dots_openbeam.csv", dotHeader, dotRows(c.obDetect.Dots)); err != nil {
			return err
		}
	}
	if err := c.writeTable("residuals.csv", residualHeader, residualRows(c.residuals)); err != nil {
		return err
	}

	if err := c.write("mask.png", func(p string) error { return visualization.SaveMask(c.detection.Mask, p) }); err != nil {
		return err
	}
	if err := c.writeFloat("scatter", c.surface); err != nil {
		return err
	}
	if c.obSurface != nil {
		if err := c.writeFloat("scatter_openbeam", c.obSurface); err != nil {
			return err
		}
	}

	vc := c.cfg.Verification
	overlay, err := visualization.ResidualOverlay(c.bb, c.residuals, visualization.OverlayOptions{
		Clim:      [2]float64{vc.ClimMin, vc.ClimMax},
		Symmetric: vc.SymmetricColors,
		Scale:     vc.OverlayScale,
		Colorbar:  true,
	})
	if err != nil {
		return err
	}
	if err := c.write("overlay.png", func(p string) error { return visualization.SaveImage(overlay, p) }); err != nil {
		return err
	}

	if c.result != nil {
		if err := c.writeFloat("normalized", c.result); err != nil {
			return err
		}
	}
	return nil
}

// write runs save on a path inside the output directory and records it.
func (c *Calibrator) write(name string, save func(path string) error) error {
	path := filepath.Join(c.params.OutputDir, name)
	if err := save(path); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	c.summary.Outputs = append(c.summary.Outputs, path)
	c.log.Debug("wrote output", "path", path)
	return nil
}

// writeFloat renders img as PNG and, when configured, stores the values as
// FITS.
func (c *Calibrator) writeFloat(base string, img *models.Image) error {
	if err := c.write(base+".png", func(p string) error { return visualization.SaveFloat(img, p) }); err != nil {
		return err
	}
	if !c.cfg.Output.WriteFITS {
		return nil
	}
	return c.write(base+".fits", func(p string) error { return imageio.SaveFITS(p, img) })
}

func (c *Calibrator) writeTable(name string, header []string, rows [][]string) error {
	return c.write(name, func(path string) error {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()

		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return err
		}
		if err := w.WriteAll(rows); err != nil {
			return err
		}
		return f.Close()
	})
}

func dotRows(dots []models.Dot) [][]string {
	rows := make([][]string, len(dots))
	for i, d := range dots {
		rows[i] = []string{
			strconv.Itoa(d.Label),
			formatFloat(d.Mean),
			formatFloat(d.Median),
			formatFloat(d.R),
			formatFloat(d.C),
			strconv.Itoa(d.Area),
		}
	}
	return rows
}

func residualRows(residuals []models.Residual) [][]string {
	rows := make([][]string, len(residuals))
	for i, r := range residuals {
		rows[i] = []string{
			strconv.Itoa(r.Label),
			formatFloat(r.Median),
			formatFloat(r.Mean),
			formatFloat(r.MSE),
			formatFloat(r.RMSE),
			strconv.Itoa(r.Area),
			formatFloat(r.R),
			formatFloat(r.C),
			formatFloat(r.X),
			formatFloat(r.Y),
		}
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// saveIntermediary saves a processing stage when intermediary results are
// enabled. Failures are logged and do not stop the run.
func (c *Calibrator) saveIntermediary(stage, name string, img *models.Image) {
	if !c.params.SaveIntermediaryResults || img == nil {
		return
	}
	path := filepath.Join(c.params.OutputDir, IntermediaryDir, stage, name+".png")
	if err := visualization.SaveFloat(img, path); err != nil {
		c.log.Warn("failed to save intermediary result", "stage", stage, "name", name, "error", err)
	}
}

func (c *Calibrator) saveIntermediaryMask(stage, name string, mask *models.Mask) {
	if !c.params.SaveIntermediaryResults || mask == nil {
		return
	}
	path := filepath.Join(c.params.OutputDir, IntermediaryDir, stage, name+".png")
	if err := visualization.SaveMask(mask, path); err != nil {
		c.log.Warn("failed to save intermediary result", "stage", stage, "name", name, "error", err)
	}
}
