package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corscan/internal/models"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Input.Dir = "/data"
	cfg.Input.Radiograph = "scan.001.h5"
	cfg.Input.Flat = "flat.h5"
	cfg.Input.Dark = "dark.h5"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 200.0, cfg.Outlier.Threshold)
	assert.Equal(t, 15, cfg.Outlier.Size)
	assert.Equal(t, 10.0, cfg.Normalize.AirLevel)
	assert.Equal(t, "/exchange/data", cfg.Input.Dataset)
	assert.Greater(t, cfg.Processing.NumCores, 0)
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "corscan.yaml")

	want := validConfig()
	want.Center.Start = 1020.5
	want.Stripe.Wavelet = "db2"
	require.NoError(t, SaveConfig(want, path))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("center:\n  start: 1000\n  stop: 1100\n  step: 5\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, cfg.Center.Start)
	assert.Equal(t, 5.0, cfg.Center.Step)
	assert.Equal(t, 15, cfg.Outlier.Size)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("center: [unclosed"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := map[string]func(*Config){
		"no dir":        func(c *Config) { c.Input.Dir = "" },
		"no dark":       func(c *Config) { c.Input.Dark = "" },
		"no flat":       func(c *Config) { c.Input.Flat = "" },
		"no radiograph": func(c *Config) { c.Input.Radiograph = "" },
		"empty rows":    func(c *Config) { c.Input.Rows = [2]int{4, 4} },
		"no cores":      func(c *Config) { c.Processing.NumCores = 0 },
		"bad format":    func(c *Config) { c.Output.Format = "jpeg" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrConfiguration))
		})
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corscan.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Stripe, cfg.Stripe)
}

func TestWrite(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, Write(&buf, validConfig()))
	assert.Contains(t, buf.String(), "radiograph: scan.001.h5")
	assert.Contains(t, buf.String(), "wavelet: db4")
}
