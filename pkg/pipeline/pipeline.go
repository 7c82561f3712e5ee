// Package pipeline runs the correction stages in order and hands the
// corrected thin volume to the center-of-rotation scanner.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"corscan/internal/models"
	"corscan/pkg/angles"
	"corscan/pkg/center"
	"corscan/pkg/config"
	"corscan/pkg/loader"
	"corscan/pkg/normalize"
	"corscan/pkg/outlier"
	"corscan/pkg/paths"
	"corscan/pkg/phase"
	"corscan/pkg/reconstruction"
	"corscan/pkg/stripe"
	"corscan/pkg/visualization"
)

// Pipeline holds one session's configuration and collaborators. Stages run
// strictly in sequence; each takes ownership of the volume and returns it.
type Pipeline struct {
	Config *config.Config

	// Source reads the radiograph, flat and dark datasets
	Source loader.Source

	// Device runs the outlier filter
	Device outlier.Device

	// Algorithm reconstructs the candidate slices
	Algorithm center.Algorithm

	Logger *log.Logger

	layout     *paths.Layout
	checkpoint string
	volume     *models.Volume
	theta      []float64
}

// New creates a pipeline with the HDF5 source, a CPU outlier device and
// filtered back-projection, all configured from cfg
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{
		Config:    cfg,
		Source:    loader.HDF5Source{},
		Device:    outlier.NewCPUDevice(cfg.Processing.NumCores, cfg.Outlier.DeviceMemoryMB),
		Algorithm: reconstruction.NewFBP(cfg.Reconstruction.Filter, cfg.Reconstruction.MinusLog, cfg.Reconstruction.MaskRatio),
		Logger:    log.Default(),
	}
}

// Layout returns the resolved paths once Correct has run
func (p *Pipeline) Layout() *paths.Layout {
	return p.layout
}

// CheckpointFile returns the checkpoint path chosen by the last Correct
func (p *Pipeline) CheckpointFile() string {
	return p.checkpoint
}

// Run corrects the data and scans the configured center range
func (p *Pipeline) Run(ctx context.Context) (*center.Report, error) {
	c := p.Config.Center
	return p.Scan(ctx, center.Range{Start: c.Start, Stop: c.Stop, Step: c.Step})
}

// Scan reconstructs the candidates in rng. The corrected volume is computed
// on first use and reused by later scans, so an operator can narrow the
// range without repeating the correction stages.
func (p *Pipeline) Scan(ctx context.Context, rng center.Range) (*center.Report, error) {
	if p.volume == nil {
		if _, _, err := p.Correct(ctx); err != nil {
			return nil, err
		}
	}

	p.Logger.Printf("Step 8: Scanning rotation centers %v", rng)
	scanner := center.NewScanner(p.Algorithm, p.layout, p.Config.Output.Format,
		p.Config.Center.Row, p.Config.Processing.NumCores)
	scanner.Logger = p.Logger

	report, err := scanner.Scan(ctx, p.volume, p.theta, rng)
	if err != nil {
		return report, fmt.Errorf("center scan: %w", err)
	}
	return report, nil
}

// Correct runs every stage before the scan and returns the corrected volume
// with its angle sequence. The first failing stage aborts the run.
func (p *Pipeline) Correct(ctx context.Context) (*models.Volume, []float64, error) {
	cfg := p.Config
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	p.Logger.Println("Step 1: Resolving paths")
	layout, err := paths.Resolve(cfg.Input.Dir, cfg.Input.Radiograph, cfg.Input.Flat, cfg.Input.Dark, cfg.Output.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve paths: %w", err)
	}
	p.layout = layout

	vol, flat, dark, err := p.filteredInputs(ctx)
	if err != nil {
		return nil, nil, err
	}

	p.Logger.Println("Step 4: Generating angles")
	theta := angles.Linspace(vol.Angles)
	if err := angles.Check(theta, vol); err != nil {
		return nil, nil, fmt.Errorf("angles: %w", err)
	}

	p.Logger.Println("Step 5: Normalizing against flat and dark fields")
	vol, err = normalize.NewNormalizer(cfg.Normalize.AirWidth, cfg.Normalize.AirLevel).Apply(vol, flat, dark)
	if err != nil {
		return nil, nil, fmt.Errorf("normalize: %w", err)
	}
	p.preview(vol, "02_normalized")

	p.Logger.Println("Step 6: Removing stripes")
	remover := &stripe.Remover{
		Level:   cfg.Stripe.Level,
		Wavelet: cfg.Stripe.Wavelet,
		Sigma:   cfg.Stripe.Sigma,
		Pad:     cfg.Stripe.Pad,
		Cores:   cfg.Processing.NumCores,
	}
	if vol, err = remover.Apply(ctx, vol); err != nil {
		return nil, nil, fmt.Errorf("stripe removal: %w", err)
	}
	p.preview(vol, "03_destriped")

	p.Logger.Println("Step 7: Retrieving phase")
	params := phase.Params{
		PixelSize: cfg.Phase.PixelSize,
		Distance:  cfg.Phase.Distance,
		Energy:    cfg.Phase.Energy,
		Alpha:     cfg.Phase.Alpha,
	}
	if vol, err = phase.NewRetriever(params, cfg.Phase.Pad, cfg.Processing.NumCores).Apply(ctx, vol); err != nil {
		return nil, nil, fmt.Errorf("phase retrieval: %w", err)
	}
	p.preview(vol, "04_phase")

	p.volume, p.theta = vol, theta
	return vol, theta, nil
}

// filteredInputs loads the three volumes and removes outliers from the
// radiograph and flat, or restores them from a checkpoint. The dark frame is
// never filtered.
func (p *Pipeline) filteredInputs(ctx context.Context) (vol, flat, dark *models.Volume, err error) {
	cfg := p.Config
	rows := loader.Span{Start: cfg.Input.Rows[0], Stop: cfg.Input.Rows[1]}
	segment := loader.Segment(cfg.Input.Segment, cfg.Input.SegmentLength)

	p.checkpoint = p.layout.CheckpointFile(p.checkpointKey(segment, rows))
	if cfg.Checkpoint.Enabled && cfg.Checkpoint.Reuse && loader.CheckpointExists(p.checkpoint) {
		p.Logger.Printf("Step 2: Restoring checkpoint %s", p.checkpoint)
		cp, err := loader.LoadCheckpoint(p.checkpoint)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("restore checkpoint: %w", err)
		}
		p.Logger.Println("Step 3: Skipping outlier removal, restored from checkpoint")
		return cp.Data, cp.Flat, cp.Dark, nil
	}

	p.Logger.Println("Step 2: Loading radiograph, flat and dark data")
	if vol, err = p.Source.Load(p.layout.Radiograph, cfg.Input.Dataset, segment, rows); err != nil {
		return nil, nil, nil, fmt.Errorf("load radiograph: %w", err)
	}
	if flat, err = p.Source.Load(p.layout.Flat, cfg.Input.Dataset, loader.Span{}, rows); err != nil {
		return nil, nil, nil, fmt.Errorf("load flat: %w", err)
	}
	if dark, err = p.Source.Load(p.layout.Dark, cfg.Input.Dataset, loader.Span{}, rows); err != nil {
		return nil, nil, nil, fmt.Errorf("load dark: %w", err)
	}
	p.Logger.Printf("Loaded radiograph %s, flat %s, dark %s", vol, flat, dark)

	p.Logger.Printf("Step 3: Removing outliers on %s", p.Device.Name())
	filter := outlier.NewFilter(cfg.Outlier.Threshold, cfg.Outlier.Size, p.Device)
	if vol, err = filter.Apply(ctx, vol); err != nil {
		return nil, nil, nil, fmt.Errorf("outlier removal: %w", err)
	}
	if flat, err = filter.Apply(ctx, flat); err != nil {
		return nil, nil, nil, fmt.Errorf("outlier removal: %w", err)
	}
	p.preview(vol, "01_outliers_removed")

	if cfg.Checkpoint.Enabled {
		cp := &loader.Checkpoint{Data: vol, Flat: flat, Dark: dark}
		if err := loader.SaveCheckpoint(p.checkpoint, cp); err != nil {
			return nil, nil, nil, fmt.Errorf("save checkpoint: %w", err)
		}
		p.Logger.Printf("Checkpoint saved to %s", p.checkpoint)
	}
	return vol, flat, dark, nil
}

// checkpointKey names the checkpoint after everything the outlier stage
// output depends on: the input files, the dataset, the loaded window and the
// filter parameters
func (p *Pipeline) checkpointKey(segment, rows loader.Span) string {
	cfg := p.Config
	id := fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%v\x00%v\x00%g\x00%d",
		p.layout.Radiograph, p.layout.Flat, p.layout.Dark, cfg.Input.Dataset,
		segment, rows, cfg.Outlier.Threshold, cfg.Outlier.Size)
	key := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	return strings.ReplaceAll(key.String(), "-", "")[:12]
}

// preview saves stage images when intermediary results are enabled.
// A failed preview is logged and does not stop the run.
func (p *Pipeline) preview(vol *models.Volume, stage string) {
	if !p.Config.Output.SaveIntermediaryResults {
		return
	}
	if err := visualization.NewViewer(vol).SaveStage(p.layout.PreviewDir, stage); err != nil {
		p.Logger.Printf("Warning: %v", err)
	}
}
