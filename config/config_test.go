package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableConfigValidates(t *testing.T) {
	cfg := DefaultTableConfig()
	require.NoError(t, cfg.validate())

	assert.Equal(t, []string{
		"back.x", "head.x", "leg_left.x", "leg_right.x",
		"base.x", "base.y", "base.z", "slide.z", "height",
	}, cfg.ChannelNames())
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	assert.Equal(t, 30*time.Second, cfg.Restore.GetTimeout())
	assert.Equal(t, time.Second, cfg.Restore.GetSettleDelay())
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{
		"joints": [
			{"name": "back", "axes": [{"label": "X", "min": -40, "max": 80}]}
		],
		"log_level": "debug",
		"restore": {"timeout": "45s"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "optable", cfg.Name)
	assert.Equal(t, 10, cfg.MaxPositions)
	assert.Equal(t, "x", cfg.Joints[0].Axes[0].Label)
	assert.Equal(t, "angular", cfg.Joints[0].Axes[0].Kind)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, 45*time.Second, cfg.Restore.GetTimeout())
	assert.Equal(t, 20*time.Millisecond, cfg.Restore.GetTickInterval())
	assert.Equal(t, 0.01, cfg.Restore.AngleTolerance)
	assert.Equal(t, 0.001, cfg.Restore.LinearTolerance)
	assert.Equal(t, 115200, cfg.Handset.Baud)
	assert.Equal(t, uint16(AccelerometerAddress), cfg.Sensor.Address)
}

func TestLoadYAML(t *testing.T) {
	cfg, err := LoadYAML([]byte(`
name: ward-3
max_positions: 4
joints:
  - name: base
    axes:
      - {label: x, kind: angular, min: -30, max: 30}
      - {label: z, kind: angular, min: -20, max: 20}
telescopes:
  - name: height
    direction: [0, 1, 0]
    segments:
      - {min: 0, max: 0.15}
presets:
  - name: Tilted
    slot: 3
    locked: true
    values: {base.x: 10}
motion:
  tick_interval: 50ms
`))
	require.NoError(t, err)

	assert.Equal(t, "ward-3", cfg.Name)
	assert.Equal(t, 4, cfg.MaxPositions)
	require.Len(t, cfg.Presets, 1)
	require.NotNil(t, cfg.Presets[0].Slot)
	assert.Equal(t, 3, *cfg.Presets[0].Slot)
	assert.True(t, cfg.Presets[0].Locked)
	assert.Equal(t, 50*time.Millisecond, cfg.Motion.GetTickInterval())
	assert.Equal(t, [3]float64{0, 1, 0}, cfg.Telescopes[0].Direction)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "table.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"max_positions": 3}`), 0o644))
	cfg, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxPositions)

	yamlPath := filepath.Join(dir, "table.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("max_positions: 6\n"), 0o644))
	cfg, err = LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.MaxPositions)

	_, err = LoadFile(filepath.Join(dir, "table.toml"))
	require.Error(t, err)

	tomlPath := filepath.Join(dir, "table.toml")
	require.NoError(t, os.WriteFile(tomlPath, nil, 0o644))
	_, err = LoadFile(tomlPath)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TableConfig)
		want   string
	}{
		{
			name:   "inverted limits",
			mutate: func(c *TableConfig) { c.Joints[0].Axes[0].Min = 100 },
			want:   "exceeds max",
		},
		{
			name:   "bad label",
			mutate: func(c *TableConfig) { c.Joints[0].Axes[0].Label = "w" },
			want:   "axis label",
		},
		{
			name:   "bad kind",
			mutate: func(c *TableConfig) { c.Joints[0].Axes[0].Kind = "spherical" },
			want:   "angular or linear",
		},
		{
			name: "duplicate channel",
			mutate: func(c *TableConfig) {
				c.Joints = append(c.Joints, JointConfig{Name: "back", Axes: []AxisConfig{{Label: "x", Kind: "angular"}}})
			},
			want: "defined by both",
		},
		{
			name:   "empty telescope",
			mutate: func(c *TableConfig) { c.Telescopes[0].Segments = nil },
			want:   "at least one segment",
		},
		{
			name:   "unknown mount",
			mutate: func(c *TableConfig) { c.Accessories[0].Mount = "rail_top" },
			want:   "unknown mount",
		},
		{
			name: "two accessories on one mount",
			mutate: func(c *TableConfig) {
				c.Accessories[1].Mount = c.Accessories[0].Mount
			},
			want: "holds both",
		},
		{
			name:   "preset unknown channel",
			mutate: func(c *TableConfig) { c.Presets[2].Values["tail.x"] = 1 },
			want:   "unknown channel",
		},
		{
			name:   "preset slot out of range",
			mutate: func(c *TableConfig) { c.Presets[0].Slot = intPtr(10) },
			want:   "out of range",
		},
		{
			name:   "locked preset without slot",
			mutate: func(c *TableConfig) { c.Presets[0].Slot = nil },
			want:   "has no slot",
		},
		{
			name:   "bad duration",
			mutate: func(c *TableConfig) { c.Restore.Timeout = "soon" },
			want:   "invalid restore.timeout",
		},
		{
			name:   "axis epsilon at angle tolerance",
			mutate: func(c *TableConfig) { c.Joints[0].Axes[0].Epsilon = c.Restore.AngleTolerance },
			want:   "below restore.angle_tolerance",
		},
		{
			name:   "segment epsilon above linear tolerance",
			mutate: func(c *TableConfig) { c.Telescopes[0].Segments[0].Epsilon = 0.05 },
			want:   "below restore.linear_tolerance",
		},
		{
			name:   "zero positions",
			mutate: func(c *TableConfig) { c.MaxPositions = 0 },
			want:   "max_positions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTableConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLevelFallsBackToInfo(t *testing.T) {
	cfg := &TableConfig{LogLevel: "chatty"}
	assert.Equal(t, slog.LevelInfo, cfg.Level())

	cfg.LogLevel = "WARN"
	assert.Equal(t, slog.LevelWarn, cfg.Level())
}
