package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"corscan/pkg/center"
	"corscan/pkg/config"
	"corscan/pkg/paths"
	"corscan/pkg/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Correct the data and scan the configured center range",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		c := cfg.Center
		return execute(cfg, center.Range{Start: c.Start, Stop: c.Stop, Step: c.Step})
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a refined center range",
	Long: `scan reconstructs the candidates in [--start, --stop) by --step. With
checkpoints enabled the outlier stage is restored from the previous run, so
narrowing the range after inspecting the images is quick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if summary := previousScan(cfg); summary != "" {
			fmt.Println(summary)
		}
		c := cfg.Center
		return execute(cfg, center.Range{Start: c.Start, Stop: c.Stop, Step: c.Step})
	},
}

// previousScan summarizes the manifest the last scan left in the output
// layout, or returns "" when there is none to read
func previousScan(cfg *config.Config) string {
	layout, err := paths.Resolve(cfg.Input.Dir, cfg.Input.Radiograph, cfg.Input.Flat, cfg.Input.Dark, cfg.Output.Dir)
	if err != nil {
		return ""
	}
	file := center.ManifestFile(layout)
	if _, err := os.Stat(file); err != nil {
		return ""
	}
	prev, err := center.LoadManifest(file)
	if err != nil {
		return fmt.Sprintf("Previous scan: unreadable manifest %s: %v", file, err)
	}
	return fmt.Sprintf("Previous scan (run %s): row %d, candidates %v, %d written, %d failed",
		prev.Run, prev.Row, prev.Range, len(prev.Written), len(prev.Failed))
}

func init() {
	addFlags(runCmd.Flags(), inputSettings)
	addFlags(runCmd.Flags(), centerSettings)
	addFlags(scanCmd.Flags(), inputSettings)
	addFlags(scanCmd.Flags(), centerSettings)
	for _, name := range []string{"start", "stop", "step"} {
		_ = scanCmd.MarkFlagRequired(name)
	}
}

// execute runs the pipeline for rng and prints the summary
func execute(cfg *config.Config, rng center.Range) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("================================")
	fmt.Println("CENTER OF ROTATION SCAN")
	fmt.Printf("Radiograph: %s\n", cfg.Input.Radiograph)
	fmt.Printf("Candidates: %v\n", rng)
	fmt.Println("================================")

	p := pipeline.New(cfg)
	startTime := time.Now()
	report, err := p.Scan(ctx, rng)
	if err != nil {
		return err
	}
	elapsed := time.Since(startTime)

	fmt.Printf("\nScan completed in %.2f seconds (run %s)\n", elapsed.Seconds(), report.Run)
	fmt.Printf("Images written to: %s\n", p.Layout().CenterDir)
	fmt.Printf("- %d candidates written\n", len(report.Written))
	if len(report.Failed) > 0 {
		fmt.Printf("- %d candidates failed:\n", len(report.Failed))
		for _, f := range report.Failed {
			fmt.Printf("    %v\n", f)
		}
	}
	fmt.Printf("Inspect the images and the entropy plot, then narrow the range with:\n")
	fmt.Printf("  corscan scan --config %s --start <c> --stop <c> --step <s>\n", configFile)
	return nil
}
