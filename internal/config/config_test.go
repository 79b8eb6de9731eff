package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1020, cfg.Capacity.BaseDayMinutes)
	assert.Len(t, cfg.Rules, 8)
	assert.Len(t, cfg.Stages, 4)
}

func TestDefaultRuleWeightsSumTo100(t *testing.T) {
	total := 0
	var weights []int
	for _, r := range Default().Rules {
		total += r.Weight
		weights = append(weights, r.Weight)
	}
	assert.Equal(t, 100, total)
	assert.Equal(t, []int{22, 16, 14, 14, 12, 8, 8, 6}, weights)
}

func TestValidateRejectsWeightDrift(t *testing.T) {
	cfg := Default()
	cfg.Rules[0].Weight = 23
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 100")
}

func TestValidateRejectsUnknownMetric(t *testing.T) {
	cfg := Default()
	cfg.Rules[1].Metric = "velocity"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnorderedStages(t *testing.T) {
	cfg := Default()
	cfg.Stages[2].MinIndex = 50
	require.Error(t, cfg.Validate())
}

func TestFromYAMLOverridesKeepDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("capacity:\n  base_day_minutes: 900\ntimezone: America/Sao_Paulo\n"))
	require.NoError(t, err)
	assert.Equal(t, 900, cfg.Capacity.BaseDayMinutes)
	assert.Equal(t, "America/Sao_Paulo", cfg.Location().String())
	assert.Len(t, cfg.Rules, 8)
}

func TestLoadOptionalWithoutFile(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 28, cfg.Windows.EvolutionDays)
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "execline.yml"), []byte("focus:\n  max_size: 2\n"), 0o644))
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Focus.MaxSize)

	_, err = Load(t.TempDir())
	require.Error(t, err)
}
