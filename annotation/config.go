package annotation

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lewtec/anotador/internal/domain"
)

type Config struct {
	Meta struct {
		Description string `yaml:"description"`
	} `yaml:"meta"`
	Viewport ConfigViewport `yaml:"viewport"`
	Storage  ConfigStorage  `yaml:"storage"`
	Server   ConfigServer   `yaml:"server"`
	Capture  ConfigCapture  `yaml:"capture"`
	Palette  []string       `yaml:"palette"`
}

// ConfigViewport is the box screenshots are downscaled to fit at load time
type ConfigViewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type ConfigStorage struct {
	Database string `yaml:"database"`
	Images   string `yaml:"images"`
	Exports  string `yaml:"exports"`
}

type ConfigServer struct {
	Addr string `yaml:"addr"`
	// LiveSessions caps how many engines stay in memory
	LiveSessions int `yaml:"live_sessions"`
}

type ConfigCapture struct {
	Console int      `yaml:"console"`
	Network int      `yaml:"network"`
	Ignore  []string `yaml:"ignore"`
}

const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
	DefaultAddr           = ":8080"
	DefaultLiveSessions   = 32
	DefaultConsoleEntries = 200
	DefaultNetworkEntries = 100
)

// DefaultConfig returns a configuration with every default applied and
// storage paths relative to the working directory
func DefaultConfig() *Config {
	var ret Config
	ret.applyDefaults()
	return &ret
}

func (c *Config) applyDefaults() {
	if c.Viewport.Width == 0 {
		c.Viewport.Width = DefaultViewportWidth
	}
	if c.Viewport.Height == 0 {
		c.Viewport.Height = DefaultViewportHeight
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "annotations.db"
	}
	if c.Storage.Images == "" {
		c.Storage.Images = "images"
	}
	if c.Storage.Exports == "" {
		c.Storage.Exports = "exports"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.LiveSessions == 0 {
		c.Server.LiveSessions = DefaultLiveSessions
	}
	if c.Capture.Console == 0 {
		c.Capture.Console = DefaultConsoleEntries
	}
	if c.Capture.Network == 0 {
		c.Capture.Network = DefaultNetworkEntries
	}
	if len(c.Palette) == 0 {
		c.Palette = append([]string(nil), domain.DefaultPalette...)
	}
}

// Validate checks the values a config file can get wrong
func (c *Config) Validate() error {
	if c.Viewport.Width < 0 || c.Viewport.Height < 0 {
		return fmt.Errorf("viewport must have positive dimensions, got %dx%d", c.Viewport.Width, c.Viewport.Height)
	}
	if c.Server.LiveSessions < 0 {
		return fmt.Errorf("server.live_sessions must be positive, got %d", c.Server.LiveSessions)
	}
	if c.Capture.Console < 0 || c.Capture.Network < 0 {
		return fmt.Errorf("capture capacities must be positive, got console=%d network=%d", c.Capture.Console, c.Capture.Network)
	}
	for i, color := range c.Palette {
		if _, err := domain.ParseHexColor(color); err != nil {
			return fmt.Errorf("palette entry %d: %w", i, err)
		}
		c.Palette[i] = domain.NormalizeColor(color)
	}
	return nil
}

// resolve makes relative storage paths relative to dir
func (c *Config) resolve(dir string) {
	for _, p := range []*string{&c.Storage.Database, &c.Storage.Images, &c.Storage.Exports} {
		if *p == ":memory:" || filepath.IsAbs(*p) {
			continue
		}
		*p = filepath.Join(dir, *p)
	}
}

// LoadConfig reads a YAML config file. Storage paths are resolved relative
// to the directory holding the file.
func LoadConfig(filename string) (*Config, error) {
	var ret Config
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(data, &ret)
	if err != nil {
		return nil, fmt.Errorf("while parsing config '%s': %w", filename, err)
	}
	ret.applyDefaults()
	if err := ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config '%s': %w", filename, err)
	}
	ret.resolve(filepath.Dir(filename))
	return &ret, nil
}

// SampleConfig is the commented config written by the init command
const SampleConfig = `# anotador configuration file

meta:
  description: |
    Screenshot annotation server.
    Edit this description to explain what the reports are about.

# Screenshots larger than this box are downscaled once when a session starts.
# Every shape coordinate refers to the downscaled size.
viewport:
  width: 1280
  height: 800

# Relative paths are resolved from the folder holding this file
storage:
  database: annotations.db
  images: images
  exports: exports

server:
  addr: ":8080"
  live_sessions: 32

# Page context kept next to each session. The oldest entries are dropped
# when a buffer is full.
capture:
  console: 200
  network: 100
  ignore:
    - "*://*.google-analytics.com/*"

# Optional palette override, as #rrggbb
# palette: ["#ef4444", "#f97316", "#eab308", "#22c55e", "#3b82f6", "#a855f7", "#000000", "#ffffff"]
`

// WriteSampleConfig writes SampleConfig to filename
func WriteSampleConfig(filename string) error {
	return os.WriteFile(filename, []byte(SampleConfig), 0644)
}
