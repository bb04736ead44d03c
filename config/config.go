// Package config describes an operating table: its joints, telescopic
// columns, accessory rails, preset poses and the timing of its motion.
package config

import (
	"fmt"
	"log/slog"
	"time"
)

// AxisConfig is one labelled axis of a joint
type AxisConfig struct {
	Label    string  `json:"label" yaml:"label"` // x, y or z
	Kind     string  `json:"kind" yaml:"kind"`   // angular or linear
	Min      float64 `json:"min" yaml:"min"`
	Max      float64 `json:"max" yaml:"max"`
	Initial  float64 `json:"initial,omitempty" yaml:"initial,omitempty"`
	Epsilon  float64 `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
	Disabled bool    `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// JointConfig is a named joint with up to three axes
type JointConfig struct {
	Name string       `json:"name" yaml:"name"`
	Axes []AxisConfig `json:"axes" yaml:"axes"`
}

// SegmentConfig is one stage of a telescopic column
type SegmentConfig struct {
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Initial float64 `json:"initial,omitempty" yaml:"initial,omitempty"`
	Epsilon float64 `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
}

// TelescopeConfig is a column of segments extending along Direction
type TelescopeConfig struct {
	Name      string          `json:"name" yaml:"name"`
	Direction [3]float64      `json:"direction" yaml:"direction"`
	Segments  []SegmentConfig `json:"segments" yaml:"segments"`
}

// MountConfig is an accessory rail on one side of the table
type MountConfig struct {
	Name    string  `json:"name" yaml:"name"`
	Side    string  `json:"side" yaml:"side"` // left or right
	RailMin float64 `json:"rail_min" yaml:"rail_min"`
	RailMax float64 `json:"rail_max" yaml:"rail_max"`
}

// AccessoryConfig is a detachable accessory sliding on a rail
type AccessoryConfig struct {
	Name     string  `json:"name" yaml:"name"`
	Mount    string  `json:"mount,omitempty" yaml:"mount,omitempty"`
	Position float64 `json:"position,omitempty" yaml:"position,omitempty"`
}

// PresetConfig is a predefined pose. LevelZero builds the values from the
// table's angular channels instead of Values. Slot, when set, preloads the
// preset into that position slot.
type PresetConfig struct {
	Name      string             `json:"name" yaml:"name"`
	Values    map[string]float64 `json:"values,omitempty" yaml:"values,omitempty"`
	Reversed  bool               `json:"reversed,omitempty" yaml:"reversed,omitempty"`
	LevelZero bool               `json:"level_zero,omitempty" yaml:"level_zero,omitempty"`
	Slot      *int               `json:"slot,omitempty" yaml:"slot,omitempty"`
	Locked    bool               `json:"locked,omitempty" yaml:"locked,omitempty"`
}

// MotionConfig tunes continuous motion from held controls
type MotionConfig struct {
	TickInterval string  `json:"tick_interval" yaml:"tick_interval"`
	AngleStep    float64 `json:"angle_step" yaml:"angle_step"`   // degrees per tick
	LinearStep   float64 `json:"linear_step" yaml:"linear_step"` // units per tick
}

// RestoreConfig tunes pose restores
type RestoreConfig struct {
	TickInterval    string             `json:"tick_interval" yaml:"tick_interval"`
	Timeout         string             `json:"timeout" yaml:"timeout"`
	SettleDelay     string             `json:"settle_delay" yaml:"settle_delay"`
	AngleTolerance  float64            `json:"angle_tolerance" yaml:"angle_tolerance"`
	LinearTolerance float64            `json:"linear_tolerance" yaml:"linear_tolerance"`
	AngleRate       float64            `json:"angle_rate" yaml:"angle_rate"`
	LinearRate      float64            `json:"linear_rate" yaml:"linear_rate"`
	Rates           map[string]float64 `json:"rates,omitempty" yaml:"rates,omitempty"`
}

// DeformationConfig names the base channels the deformation signal is
// derived from
type DeformationConfig struct {
	Trend string `json:"trend" yaml:"trend"`
	Tilt  string `json:"tilt" yaml:"tilt"`
}

// HandsetConfig is the serial hand control pendant
type HandsetConfig struct {
	Device      string `json:"device,omitempty" yaml:"device,omitempty"`
	Baud        int    `json:"baud,omitempty" yaml:"baud,omitempty"`
	ReadTimeout string `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty"`
}

// SensorConfig is the optional accelerometer used to seed base angles
type SensorConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Device  string `json:"device,omitempty" yaml:"device,omitempty"` // i2c character device
	Address uint16 `json:"address,omitempty" yaml:"address,omitempty"`
	Pitch   string `json:"pitch,omitempty" yaml:"pitch,omitempty"` // channel seeded from pitch
	Roll    string `json:"roll,omitempty" yaml:"roll,omitempty"`   // channel seeded from roll
}

// TableConfig is the complete description of a table
type TableConfig struct {
	Name         string            `json:"name" yaml:"name"`
	LogLevel     string            `json:"log_level" yaml:"log_level"`
	MaxPositions int               `json:"max_positions" yaml:"max_positions"`
	Joints       []JointConfig     `json:"joints" yaml:"joints"`
	Telescopes   []TelescopeConfig `json:"telescopes" yaml:"telescopes"`
	Mounts       []MountConfig     `json:"mounts" yaml:"mounts"`
	Accessories  []AccessoryConfig `json:"accessories" yaml:"accessories"`
	Presets      []PresetConfig    `json:"presets" yaml:"presets"`
	Motion       MotionConfig      `json:"motion" yaml:"motion"`
	Restore      RestoreConfig     `json:"restore" yaml:"restore"`
	Deformation  DeformationConfig `json:"deformation" yaml:"deformation"`
	Handset      HandsetConfig     `json:"handset" yaml:"handset"`
	Sensor       SensorConfig      `json:"sensor" yaml:"sensor"`
}

// AccelerometerAddress is the default ADXL345 address with SDO low
const AccelerometerAddress = 0x53

// ChannelNames returns every channel the table will track: "<joint>.<label>"
// for each joint axis and the name of each telescope.
func (c *TableConfig) ChannelNames() []string {
	var names []string
	for _, j := range c.Joints {
		for _, a := range j.Axes {
			names = append(names, ChannelName(j.Name, a.Label))
		}
	}
	for _, t := range c.Telescopes {
		names = append(names, t.Name)
	}
	return names
}

// ChannelName joins a joint name and axis label
func ChannelName(joint, label string) string {
	return joint + "." + label
}

// Level returns the configured log level, defaulting to info
func (c *TableConfig) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// GetTickInterval returns the continuous motion tick
func (m *MotionConfig) GetTickInterval() time.Duration {
	return parseDuration(m.TickInterval, 20*time.Millisecond)
}

// GetTickInterval returns the restore tick
func (r *RestoreConfig) GetTickInterval() time.Duration {
	return parseDuration(r.TickInterval, 20*time.Millisecond)
}

// GetTimeout returns the global restore timeout
func (r *RestoreConfig) GetTimeout() time.Duration {
	return parseDuration(r.Timeout, 30*time.Second)
}

// GetSettleDelay returns the wait after an orientation change
func (r *RestoreConfig) GetSettleDelay() time.Duration {
	return parseDuration(r.SettleDelay, time.Second)
}

// GetReadTimeout returns the serial read timeout
func (h *HandsetConfig) GetReadTimeout() time.Duration {
	return parseDuration(h.ReadTimeout, 100*time.Millisecond)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func intPtr(v int) *int {
	return &v
}

// DefaultTableConfig returns the stock table: back, head and split leg
// sections, a tilting base, a longitudinal slide, a two stage height column
// and a rail on each side.
func DefaultTableConfig() *TableConfig {
	return &TableConfig{
		Name:         "optable",
		LogLevel:     "info",
		MaxPositions: 10,
		Joints: []JointConfig{
			{Name: "back", Axes: []AxisConfig{
				{Label: "x", Kind: "angular", Min: -40, Max: 80},
			}},
			{Name: "head", Axes: []AxisConfig{
				{Label: "x", Kind: "angular", Min: -45, Max: 45},
			}},
			{Name: "leg_left", Axes: []AxisConfig{
				{Label: "x", Kind: "angular", Min: -90, Max: 80},
			}},
			{Name: "leg_right", Axes: []AxisConfig{
				{Label: "x", Kind: "angular", Min: -90, Max: 80},
			}},
			{Name: "base", Axes: []AxisConfig{
				{Label: "x", Kind: "angular", Min: -30, Max: 30}, // trendelenburg
				{Label: "y", Kind: "angular", Min: -180, Max: 180, Disabled: true},
				{Label: "z", Kind: "angular", Min: -20, Max: 20}, // lateral tilt
			}},
			{Name: "slide", Axes: []AxisConfig{
				{Label: "z", Kind: "linear", Min: -0.3, Max: 0.3},
			}},
		},
		Telescopes: []TelescopeConfig{
			{
				Name:      "height",
				Direction: [3]float64{0, 1, 0},
				Segments: []SegmentConfig{
					{Min: 0, Max: 0.15},
					{Min: 0, Max: 0.15},
				},
			},
		},
		Mounts: []MountConfig{
			{Name: "rail_left", Side: "left", RailMin: -0.4, RailMax: 0.4},
			{Name: "rail_right", Side: "right", RailMin: -0.4, RailMax: 0.4},
		},
		Accessories: []AccessoryConfig{
			{Name: "arm_board", Mount: "rail_left"},
			{Name: "leg_holder"},
		},
		Presets: []PresetConfig{
			{
				Name:   "Beach Chair",
				Slot:   intPtr(0),
				Locked: true,
				Values: map[string]float64{
					"back.x": 60, "leg_left.x": -30, "leg_right.x": -30, "base.x": -10,
				},
			},
			{Name: "Level Zero", LevelZero: true},
			{
				Name: "Flex",
				Values: map[string]float64{
					"back.x": -20, "leg_left.x": -20, "leg_right.x": -20, "base.x": 15,
				},
			},
			{
				Name:     "Reflex",
				Reversed: true,
				Values: map[string]float64{
					"back.x": 20, "leg_left.x": 20, "leg_right.x": 20, "base.x": -15,
				},
			},
		},
		Motion: MotionConfig{
			TickInterval: "20ms",
			AngleStep:    0.5,
			LinearStep:   0.002,
		},
		Restore: RestoreConfig{
			TickInterval:    "20ms",
			Timeout:         "30s",
			SettleDelay:     "1s",
			AngleTolerance:  0.01,
			LinearTolerance: 0.001,
			AngleRate:       0.5,
			LinearRate:      0.002,
		},
		Deformation: DeformationConfig{Trend: "base.x", Tilt: "base.z"},
		Handset: HandsetConfig{
			Baud:        115200,
			ReadTimeout: "100ms",
		},
		Sensor: SensorConfig{
			Device:  "/dev/i2c-1",
			Address: AccelerometerAddress,
			Pitch:   "base.x",
			Roll:    "base.z",
		},
	}
}

// String summarizes the table layout
func (c *TableConfig) String() string {
	return fmt.Sprintf("%s: %d joints, %d telescopes, %d mounts, %d accessories, %d presets",
		c.Name, len(c.Joints), len(c.Telescopes), len(c.Mounts), len(c.Accessories), len(c.Presets))
}
