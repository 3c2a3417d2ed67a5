package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FillsDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.yaml")
	require.NoError(t, os.WriteFile(path, []byte("autoscaling: false\n"), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.False(t, cfg.Autoscaling)
	assert.Equal(t, Default().PackingInterval, cfg.PackingInterval)
	assert.Equal(t, Default().SizeDescriptors, cfg.SizeDescriptors)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.yaml")
	content := `
packingInterval: 5s
sizeDescriptors: [avg_cpu]
largeIncrement: 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"avg_cpu"}, cfg.SizeDescriptors)
	assert.Equal(t, 7, cfg.LargeIncrement)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero packing interval", func(c *Config) { c.PackingInterval = 0 }, true},
		{"empty descriptors", func(c *Config) { c.SizeDescriptors = nil }, true},
		{"zero dispatcher count", func(c *Config) { c.DispatcherCount = 0 }, true},
		{"roc upper not above lower", func(c *Config) { c.RocUpper = c.RocLower }, true},
		{"autoscaling disabled skips roc checks", func(c *Config) {
			c.Autoscaling = false
			c.RocUpper = 0
			c.RocLower = 0
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
