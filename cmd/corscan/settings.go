package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"corscan/internal/models"
	"corscan/pkg/config"
)

const envPrefix = "CORSCAN"

// setting binds one configuration key to its field, and optionally to a flag
type setting struct {
	key   string
	flag  string
	usage string
	bind  func(*config.Config) any
}

var inputSettings = []setting{
	{"input.dir", "input-dir", "directory holding the input files", func(c *config.Config) any { return &c.Input.Dir }},
	{"input.radiograph", "radiograph", "radiograph file name", func(c *config.Config) any { return &c.Input.Radiograph }},
	{"input.flat", "flat", "flat-field file name", func(c *config.Config) any { return &c.Input.Flat }},
	{"input.dark", "dark", "dark-field file name", func(c *config.Config) any { return &c.Input.Dark }},
	{"input.dataset", "dataset", "dataset path shared by the input files", func(c *config.Config) any { return &c.Input.Dataset }},
	{"input.rows", "rows", "detector row window start:stop", func(c *config.Config) any { return &c.Input.Rows }},
	{"input.segment", "segment", "angle segment to load", func(c *config.Config) any { return &c.Input.Segment }},
	{"input.segmentLength", "segment-length", "frames per angle segment (0 loads all)", func(c *config.Config) any { return &c.Input.SegmentLength }},
	{"output.dir", "output-dir", "root directory for written files", func(c *config.Config) any { return &c.Output.Dir }},
	{"output.format", "format", "candidate image format (tiff or png)", func(c *config.Config) any { return &c.Output.Format }},
	{"output.saveIntermediaryResults", "save-intermediary", "save a preview after every stage", func(c *config.Config) any { return &c.Output.SaveIntermediaryResults }},
	{"processing.numCores", "cores", "CPU cores for the parallel stages", func(c *config.Config) any { return &c.Processing.NumCores }},
	{"outlier.threshold", "", "", func(c *config.Config) any { return &c.Outlier.Threshold }},
	{"outlier.size", "", "", func(c *config.Config) any { return &c.Outlier.Size }},
	{"outlier.deviceMemoryMB", "", "", func(c *config.Config) any { return &c.Outlier.DeviceMemoryMB }},
	{"normalize.airWidth", "", "", func(c *config.Config) any { return &c.Normalize.AirWidth }},
	{"normalize.airLevel", "", "", func(c *config.Config) any { return &c.Normalize.AirLevel }},
	{"stripe.level", "", "", func(c *config.Config) any { return &c.Stripe.Level }},
	{"stripe.wavelet", "", "", func(c *config.Config) any { return &c.Stripe.Wavelet }},
	{"stripe.sigma", "", "", func(c *config.Config) any { return &c.Stripe.Sigma }},
	{"stripe.pad", "", "", func(c *config.Config) any { return &c.Stripe.Pad }},
	{"phase.pixelSize", "", "", func(c *config.Config) any { return &c.Phase.PixelSize }},
	{"phase.energy", "", "", func(c *config.Config) any { return &c.Phase.Energy }},
	{"phase.distance", "", "", func(c *config.Config) any { return &c.Phase.Distance }},
	{"phase.alpha", "", "", func(c *config.Config) any { return &c.Phase.Alpha }},
	{"phase.pad", "", "", func(c *config.Config) any { return &c.Phase.Pad }},
	{"reconstruction.filter", "filter", "ramp filter window (ramp, shepp, hann, parzen)", func(c *config.Config) any { return &c.Reconstruction.Filter }},
	{"reconstruction.minusLog", "", "", func(c *config.Config) any { return &c.Reconstruction.MinusLog }},
	{"reconstruction.maskRatio", "", "", func(c *config.Config) any { return &c.Reconstruction.MaskRatio }},
	{"checkpoint.enabled", "checkpoint", "save the outlier-filtered volumes", func(c *config.Config) any { return &c.Checkpoint.Enabled }},
	{"checkpoint.reuse", "", "", func(c *config.Config) any { return &c.Checkpoint.Reuse }},
}

var centerSettings = []setting{
	{"center.start", "start", "first candidate center", func(c *config.Config) any { return &c.Center.Start }},
	{"center.stop", "stop", "end of the candidate range (exclusive)", func(c *config.Config) any { return &c.Center.Stop }},
	{"center.step", "step", "spacing between candidates", func(c *config.Config) any { return &c.Center.Step }},
	{"center.row", "row", "detector row to reconstruct", func(c *config.Config) any { return &c.Center.Row }},
}

// formatWindow renders a row window the way parseWindow reads it
func formatWindow(w [2]int) string {
	return fmt.Sprintf("%d:%d", w[0], w[1])
}

// parseWindow reads "start:stop" (a comma also separates)
func parseWindow(s string) ([2]int, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == ',' || r == ' ' })
	if len(parts) != 2 {
		return [2]int{}, fmt.Errorf("%w: row window %q must be start:stop", models.ErrConfiguration, s)
	}
	var w [2]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return [2]int{}, fmt.Errorf("%w: row window %q: %v", models.ErrConfiguration, s, err)
		}
		w[i] = n
	}
	return w, nil
}

// addFlags registers a flag for every setting that has one. Defaults come
// from DefaultConfig so help output shows the effective values.
func addFlags(flags *pflag.FlagSet, settings []setting) {
	defaults := config.DefaultConfig()
	for _, s := range settings {
		if s.flag == "" {
			continue
		}
		switch p := s.bind(defaults).(type) {
		case *string:
			flags.String(s.flag, *p, s.usage)
		case *int:
			flags.Int(s.flag, *p, s.usage)
		case *float64:
			flags.Float64(s.flag, *p, s.usage)
		case *bool:
			flags.Bool(s.flag, *p, s.usage)
		case *[2]int:
			flags.String(s.flag, formatWindow(*p), s.usage)
		}
	}
}

// loadSettings reads the config file and layers environment variables and
// changed flags over it
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	all := append(append([]setting{}, inputSettings...), centerSettings...)
	for _, s := range all {
		if s.flag == "" {
			continue
		}
		if f := cmd.Flags().Lookup(s.flag); f != nil {
			if err := v.BindPFlag(s.key, f); err != nil {
				return nil, fmt.Errorf("bind --%s: %w", s.flag, err)
			}
		}
	}

	for _, s := range all {
		if !v.IsSet(s.key) {
			continue
		}
		switch p := s.bind(cfg).(type) {
		case *string:
			*p = v.GetString(s.key)
		case *int:
			*p = v.GetInt(s.key)
		case *float64:
			*p = v.GetFloat64(s.key)
		case *bool:
			*p = v.GetBool(s.key)
		case *[2]int:
			w, err := parseWindow(v.GetString(s.key))
			if err != nil {
				return nil, err
			}
			*p = w
		}
	}
	return cfg, nil
}
