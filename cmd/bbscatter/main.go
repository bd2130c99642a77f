package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"bbscatter/pkg/calibration"
	"bbscatter/pkg/config"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "bbscatter.yaml", "YAML configuration file (defaults are used when it does not exist)")
	bbPath := flag.String("bb", "", "Sample exposure with the black-body grid in the beam")
	bbOBPath := flag.String("bb-ob", "", "Open beam exposure with the black-body grid in the beam")
	samplePath := flag.String("sample", "", "Sample projection to normalize")
	obPath := flag.String("ob", "", "Open beam projection")
	dcPath := flag.String("dc", "", "Dark current image")
	outputDir := flag.String("out", "bbscatter_results", "Directory for tables and images")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save intermediary results during processing")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn or error (overrides the configuration)")
	writeConfig := flag.String("write-config", "", "Write the default configuration to this path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *bbPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Output.LogLevel = *logLevel
	}
	if *saveIntermediary {
		cfg.Output.SaveIntermediaryResults = true
	}
	level, err := cfg.LogLevel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	params := &calibration.Params{
		Inputs: calibration.Inputs{
			BlackBody:         *bbPath,
			BlackBodyOpenBeam: *bbOBPath,
			Sample:            *samplePath,
			OpenBeam:          *obPath,
			DarkCurrent:       *dcPath,
		},
		Config:                  cfg,
		OutputDir:               *outputDir,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		Logger:                  logger,
	}

	// Run the calibration pipeline
	calibrator := calibration.NewCalibrator(params)
	if err := calibrator.Process(); err != nil {
		logger.Error("calibration failed", "error", err)
		os.Exit(1)
	}

	s := calibrator.Summary()
	fmt.Printf("\nCalibration completed in %.2f seconds\n", s.Duration.Seconds())
	fmt.Println("=======================================")
	fmt.Printf("Detected dots: %d", s.Dots)
	if *bbOBPath != "" {
		fmt.Printf(" (open beam: %d)", s.OpenBeamDots)
	}
	fmt.Println()
	if cfg.Detection.Method == config.MethodThreshold {
		fmt.Printf("Threshold: %.3f\n", s.Threshold)
	}
	fmt.Printf("Area band: [%g, %g]\n", s.AreaBand.Min, s.AreaBand.Max)

	switch {
	case s.Model != nil:
		fmt.Println("Scatter surface: 1, r, c, r², c², r·c")
		for i, v := range s.Model {
			fmt.Printf("  q%d = %.6g\n", i, v)
		}
	case s.Kriging != nil:
		fmt.Printf("Scatter surface: kriging, %s variogram, range %.2f, sill %.4g, nugget %.4g\n",
			s.Kriging.Model, s.Kriging.Range, s.Kriging.Sill, s.Kriging.Nugget)
	}

	fmt.Println("\nVerification:")
	fmt.Printf("- Regions: %d\n", s.Verification.Regions)
	fmt.Printf("- Mean of median residuals: %.4g\n", s.Verification.MeanMedian)
	fmt.Printf("- Largest absolute median residual: %.4g\n", s.Verification.MaxAbsMedian)
	fmt.Printf("- Pooled RMSE: %.4g\n", s.Verification.PooledRMSE)

	if s.Normalized {
		if s.ScatterCorrected {
			fmt.Println("\nSample normalized with black-body scatter correction")
		} else {
			fmt.Println("\nSample normalized without scatter correction")
		}
	}

	fmt.Printf("\nOutputs written to %s:\n", *outputDir)
	for _, path := range s.Outputs {
		fmt.Printf("- %s\n", path)
	}
}
