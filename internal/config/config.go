// Package config loads and saves the on-disk layout config that backs a
// visualization session. The file's absolute path doubles as the session's
// configuration key.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/simbridge-dev/simbridge/pkg/vocab"
)

const (
	// ConfigFileName is the default layout file name.
	ConfigFileName = "simbridge.yaml"

	// DefaultAddress binds loopback on an ephemeral port.
	DefaultAddress = "127.0.0.1:0"

	// DefaultSynapse is the input filter applied to pointer elements.
	DefaultSynapse = 0.01
)

// Duration wraps time.Duration so YAML configs can say "10ms" or "5s".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid duration %q", node.Value)
	}
	*d = Duration(n)
	return nil
}

// Config is the root layout configuration.
type Config struct {
	// Title names the session on the index page.
	Title string `yaml:"title,omitempty"`

	Server     ServerConfig     `yaml:"server,omitempty"`
	Simulation SimulationConfig `yaml:"simulation,omitempty"`
	Vocab      VocabConfig      `yaml:"vocab,omitempty"`

	// Pointers are the semantic-pointer elements attached to the model.
	Pointers []PointerConfig `yaml:"pointers,omitempty"`

	Embed EmbedConfig `yaml:"embed,omitempty"`

	// path remembers where the config was loaded from.
	path string
}

// ServerConfig holds the visualization server settings.
type ServerConfig struct {
	// Address to bind, host:port. Port 0 picks an ephemeral port.
	Address string `yaml:"address,omitempty"`

	// PollInterval is the per-connection drain interval.
	PollInterval Duration `yaml:"poll_interval,omitempty"`

	// ReadyTimeout bounds the wait for a freshly started server to accept
	// connections.
	ReadyTimeout Duration `yaml:"ready_timeout,omitempty"`

	// ShutdownDeadline bounds the exit sweep across all sessions.
	ShutdownDeadline Duration `yaml:"shutdown_deadline,omitempty"`
}

// SimulationConfig holds the stepper settings.
type SimulationConfig struct {
	// Dt is the simulated time advanced per step.
	Dt float64 `yaml:"dt,omitempty"`

	// StepInterval is the wall-clock pacing between steps. Zero free-runs.
	StepInterval Duration `yaml:"step_interval,omitempty"`
}

// VocabConfig defines the semantic vocabulary.
type VocabConfig struct {
	Dimensions int          `yaml:"dimensions,omitempty"`
	Entries    []VocabEntry `yaml:"entries,omitempty"`
}

// VocabEntry is one named basis vector. When Vector is omitted the entry
// gets the axis-aligned unit vector at its position in the entry list.
type VocabEntry struct {
	Key    string    `yaml:"key"`
	Vector []float64 `yaml:"vector,omitempty"`
}

// PointerConfig is one pointer element wired into the model.
type PointerConfig struct {
	Label string `yaml:"label"`

	// Synapse is the input filter time constant. Defaults to 0.01.
	Synapse float64 `yaml:"synapse,omitempty"`
}

// EmbedConfig holds notebook embed settings.
type EmbedConfig struct {
	// Height of the embed iframe in pixels.
	Height int `yaml:"height,omitempty"`
}

// Default returns a config with all defaults filled in.
func Default() *Config {
	return &Config{
		Title: "simbridge",
		Server: ServerConfig{
			Address:          DefaultAddress,
			PollInterval:     Duration(10 * time.Millisecond),
			ReadyTimeout:     Duration(5 * time.Second),
			ShutdownDeadline: Duration(5 * time.Second),
		},
		Simulation: SimulationConfig{
			Dt:           0.001,
			StepInterval: Duration(time.Millisecond),
		},
		Embed: EmbedConfig{Height: 600},
	}
}

// Load reads a layout config from path, filling defaults for omitted
// fields. A missing file yields the defaults with the path recorded, so a
// fresh key file is a valid empty layout.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolving %s: %w", path, err)
	}

	cfg := Default()
	cfg.path = abs

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", abs, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", abs, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config back to the path it was loaded from.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config: no path set")
	}
	return c.SaveTo(c.path)
}

// SaveTo writes the config to path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	c.path = path
	return nil
}

// Path returns where the config was loaded from. This is the session's
// configuration key.
func (c *Config) Path() string { return c.path }

// applyDefaults fills in zero values after parsing.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Title == "" {
		c.Title = d.Title
	}
	if c.Server.Address == "" {
		c.Server.Address = d.Server.Address
	}
	if c.Server.PollInterval == 0 {
		c.Server.PollInterval = d.Server.PollInterval
	}
	if c.Server.ReadyTimeout == 0 {
		c.Server.ReadyTimeout = d.Server.ReadyTimeout
	}
	if c.Server.ShutdownDeadline == 0 {
		c.Server.ShutdownDeadline = d.Server.ShutdownDeadline
	}
	if c.Simulation.Dt == 0 {
		c.Simulation.Dt = d.Simulation.Dt
	}
	if c.Embed.Height == 0 {
		c.Embed.Height = d.Embed.Height
	}
	for i := range c.Pointers {
		if c.Pointers[i].Synapse == 0 {
			c.Pointers[i].Synapse = DefaultSynapse
		}
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if len(c.Vocab.Entries) > 0 && c.Vocab.Dimensions <= 0 {
		return fmt.Errorf("config: vocab entries given without dimensions")
	}
	seen := make(map[string]bool, len(c.Vocab.Entries))
	for i, e := range c.Vocab.Entries {
		if e.Key == "" {
			return fmt.Errorf("config: vocab entry %d has no key", i)
		}
		if seen[e.Key] {
			return fmt.Errorf("config: duplicate vocab key %q", e.Key)
		}
		seen[e.Key] = true
		if len(e.Vector) > 0 && len(e.Vector) != c.Vocab.Dimensions {
			return fmt.Errorf("config: vocab key %q has %d components, want %d",
				e.Key, len(e.Vector), c.Vocab.Dimensions)
		}
	}
	if len(c.Vocab.Entries) > c.Vocab.Dimensions && c.Vocab.Dimensions > 0 {
		hasImplicit := false
		for _, e := range c.Vocab.Entries {
			if len(e.Vector) == 0 {
				hasImplicit = true
				break
			}
		}
		if hasImplicit {
			return fmt.Errorf("config: %d vocab entries exceed %d dimensions for axis vectors",
				len(c.Vocab.Entries), c.Vocab.Dimensions)
		}
	}
	for i, p := range c.Pointers {
		if p.Label == "" {
			return fmt.Errorf("config: pointer %d has no label", i)
		}
	}
	if c.Simulation.Dt < 0 {
		return fmt.Errorf("config: negative dt")
	}
	return nil
}

// BuildVocabulary constructs the vocabulary the config describes. Entries
// without an explicit vector get the axis-aligned unit vector at their
// position.
func (c *Config) BuildVocabulary() (*vocab.Vocabulary, error) {
	v := vocab.New(c.Vocab.Dimensions)
	for i, e := range c.Vocab.Entries {
		vec := e.Vector
		if len(vec) == 0 {
			vec = make([]float64, c.Vocab.Dimensions)
			vec[i] = 1
		}
		if err := v.Add(e.Key, vec); err != nil {
			return nil, fmt.Errorf("config: vocab key %q: %w", e.Key, err)
		}
	}
	return v, nil
}
