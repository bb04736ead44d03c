package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

// LoadConfig parses a JSON configuration and returns a TableConfig
func LoadConfig(jsonData []byte) (*TableConfig, error) {
	var config TableConfig

	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	return finish(&config)
}

// LoadYAML parses a YAML configuration and returns a TableConfig
func LoadYAML(yamlData []byte) (*TableConfig, error) {
	var config TableConfig

	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	return finish(&config)
}

// LoadFile reads a .json, .yaml or .yml configuration file
func LoadFile(path string) (*TableConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadConfig(data)
	case ".yaml", ".yml":
		return LoadYAML(data)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

func finish(config *TableConfig) (*TableConfig, error) {
	applyDefaults(config)
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return config, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *TableConfig) {
	def := DefaultTableConfig()

	if config.Name == "" {
		config.Name = def.Name
	}
	if config.LogLevel == "" {
		config.LogLevel = def.LogLevel
	}
	if config.MaxPositions == 0 {
		config.MaxPositions = def.MaxPositions
	}

	for i := range config.Joints {
		for k := range config.Joints[i].Axes {
			axis := &config.Joints[i].Axes[k]
			axis.Label = strings.ToLower(axis.Label)
			if axis.Kind == "" {
				axis.Kind = "angular"
			}
		}
	}

	// Motion
	if config.Motion.TickInterval == "" {
		config.Motion.TickInterval = def.Motion.TickInterval
	}
	if config.Motion.AngleStep == 0 {
		config.Motion.AngleStep = def.Motion.AngleStep
	}
	if config.Motion.LinearStep == 0 {
		config.Motion.LinearStep = def.Motion.LinearStep
	}

	// Restore
	r := &config.Restore
	if r.TickInterval == "" {
		r.TickInterval = def.Restore.TickInterval
	}
	if r.Timeout == "" {
		r.Timeout = def.Restore.Timeout
	}
	if r.SettleDelay == "" {
		r.SettleDelay = def.Restore.SettleDelay
	}
	if r.AngleTolerance == 0 {
		r.AngleTolerance = def.Restore.AngleTolerance
	}
	if r.LinearTolerance == 0 {
		r.LinearTolerance = def.Restore.LinearTolerance
	}
	if r.AngleRate == 0 {
		r.AngleRate = def.Restore.AngleRate
	}
	if r.LinearRate == 0 {
		r.LinearRate = def.Restore.LinearRate
	}

	if config.Handset.Baud == 0 {
		config.Handset.Baud = def.Handset.Baud
	}
	if config.Handset.ReadTimeout == "" {
		config.Handset.ReadTimeout = def.Handset.ReadTimeout
	}

	if config.Sensor.Address == 0 {
		config.Sensor.Address = def.Sensor.Address
	}
	if config.Sensor.Device == "" {
		config.Sensor.Device = def.Sensor.Device
	}
}

func (c *TableConfig) validate() error {
	if c.MaxPositions < 1 {
		return fmt.Errorf("max_positions must be positive, got %d", c.MaxPositions)
	}

	channels := make(map[string]string)
	addChannel := func(name, owner string) error {
		if prev, ok := channels[name]; ok {
			return fmt.Errorf("channel %q defined by both %s and %s", name, prev, owner)
		}
		channels[name] = owner
		return nil
	}

	for _, j := range c.Joints {
		if j.Name == "" {
			return fmt.Errorf("joint name must not be empty")
		}
		if len(j.Axes) == 0 || len(j.Axes) > 3 {
			return fmt.Errorf("joint %s must have 1 to 3 axes, got %d", j.Name, len(j.Axes))
		}
		for _, a := range j.Axes {
			switch a.Label {
			case "x", "y", "z":
			default:
				return fmt.Errorf("joint %s: axis label must be x, y or z, got %q", j.Name, a.Label)
			}
			if err := validKind(a.Kind); err != nil {
				return fmt.Errorf("joint %s axis %s: %w", j.Name, a.Label, err)
			}
			if err := validRange(a.Min, a.Max, a.Epsilon); err != nil {
				return fmt.Errorf("joint %s axis %s: %w", j.Name, a.Label, err)
			}
			if err := c.Restore.belowTolerance(a.Kind, a.Epsilon); err != nil {
				return fmt.Errorf("joint %s axis %s: %w", j.Name, a.Label, err)
			}
			if err := addChannel(ChannelName(j.Name, a.Label), "joint "+j.Name); err != nil {
				return err
			}
		}
	}

	for _, t := range c.Telescopes {
		if t.Name == "" {
			return fmt.Errorf("telescope name must not be empty")
		}
		if len(t.Segments) == 0 {
			return fmt.Errorf("telescope %s must have at least one segment", t.Name)
		}
		if t.Direction == [3]float64{} {
			return fmt.Errorf("telescope %s direction must not be zero", t.Name)
		}
		for i, s := range t.Segments {
			if err := validRange(s.Min, s.Max, s.Epsilon); err != nil {
				return fmt.Errorf("telescope %s segment %d: %w", t.Name, i, err)
			}
			if err := c.Restore.belowTolerance("linear", s.Epsilon); err != nil {
				return fmt.Errorf("telescope %s segment %d: %w", t.Name, i, err)
			}
		}
		if err := addChannel(t.Name, "telescope "+t.Name); err != nil {
			return err
		}
	}

	mounts := make(map[string]bool)
	for _, m := range c.Mounts {
		if m.Name == "" {
			return fmt.Errorf("mount name must not be empty")
		}
		if mounts[m.Name] {
			return fmt.Errorf("duplicate mount %s", m.Name)
		}
		if m.Side != "left" && m.Side != "right" {
			return fmt.Errorf("mount %s side must be left or right, got %q", m.Name, m.Side)
		}
		if m.RailMin > m.RailMax {
			return fmt.Errorf("mount %s rail_min %g exceeds rail_max %g", m.Name, m.RailMin, m.RailMax)
		}
		mounts[m.Name] = true
	}

	accessories := make(map[string]bool)
	taken := make(map[string]string)
	for _, a := range c.Accessories {
		if a.Name == "" {
			return fmt.Errorf("accessory name must not be empty")
		}
		if accessories[a.Name] {
			return fmt.Errorf("duplicate accessory %s", a.Name)
		}
		accessories[a.Name] = true
		if a.Mount == "" {
			continue
		}
		if !mounts[a.Mount] {
			return fmt.Errorf("accessory %s references unknown mount %s", a.Name, a.Mount)
		}
		if other, ok := taken[a.Mount]; ok {
			return fmt.Errorf("mount %s holds both %s and %s", a.Mount, other, a.Name)
		}
		taken[a.Mount] = a.Name
	}

	slots := make(map[int]string)
	for _, p := range c.Presets {
		if p.Name == "" {
			return fmt.Errorf("preset name must not be empty")
		}
		for ch := range p.Values {
			if _, ok := channels[ch]; !ok {
				return fmt.Errorf("preset %s references unknown channel %s", p.Name, ch)
			}
		}
		if p.Slot == nil {
			if p.Locked {
				return fmt.Errorf("preset %s is locked but has no slot", p.Name)
			}
			continue
		}
		if *p.Slot < 0 || *p.Slot >= c.MaxPositions {
			return fmt.Errorf("preset %s slot %d out of range [0, %d)", p.Name, *p.Slot, c.MaxPositions)
		}
		if other, ok := slots[*p.Slot]; ok {
			return fmt.Errorf("presets %s and %s share slot %d", other, p.Name, *p.Slot)
		}
		slots[*p.Slot] = p.Name
	}

	for _, name := range []string{c.Deformation.Trend, c.Deformation.Tilt} {
		if name == "" {
			continue
		}
		if _, ok := channels[name]; !ok {
			return fmt.Errorf("deformation references unknown channel %s", name)
		}
	}

	if c.Sensor.Enabled {
		for _, name := range []string{c.Sensor.Pitch, c.Sensor.Roll} {
			if name == "" {
				continue
			}
			if _, ok := channels[name]; !ok {
				return fmt.Errorf("sensor references unknown channel %s", name)
			}
		}
	}

	for field, value := range map[string]string{
		"motion.tick_interval":  c.Motion.TickInterval,
		"restore.tick_interval": c.Restore.TickInterval,
		"restore.timeout":       c.Restore.Timeout,
		"restore.settle_delay":  c.Restore.SettleDelay,
		"handset.read_timeout":  c.Handset.ReadTimeout,
	} {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", field, value, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", field, value)
		}
	}
	if c.Motion.GetTickInterval() == 0 || c.Restore.GetTickInterval() == 0 {
		return fmt.Errorf("tick intervals must be positive")
	}

	if c.Restore.AngleRate < 0 || c.Restore.LinearRate < 0 {
		return fmt.Errorf("restore rates must not be negative")
	}
	return nil
}

func validKind(kind string) error {
	switch kind {
	case "angular", "linear":
		return nil
	}
	return fmt.Errorf("kind must be angular or linear, got %q", kind)
}

// belowTolerance checks that a step epsilon leaves room for restore to close
// the last gap. A channel within epsilon of its target but outside tolerance
// could never settle.
func (r RestoreConfig) belowTolerance(kind string, epsilon float64) error {
	tol, name := r.AngleTolerance, "angle_tolerance"
	if kind == "linear" {
		tol, name = r.LinearTolerance, "linear_tolerance"
	}
	if epsilon >= tol {
		return fmt.Errorf("epsilon %g must be below restore.%s %g", epsilon, name, tol)
	}
	return nil
}

func validRange(min, max, epsilon float64) error {
	if min > max {
		return fmt.Errorf("min %g exceeds max %g", min, max)
	}
	if epsilon < 0 {
		return fmt.Errorf("epsilon must not be negative, got %g", epsilon)
	}
	return nil
}
