// Package beets writes the beets library configuration and runs imports.
package beets

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultBitrate is the AAC bitrate files are transcoded to
	DefaultBitrate = "96k"
	// DefaultMaxBitrate is the bitrate (kbps) above which files are transcoded
	DefaultMaxBitrate = 320
)

// Config is the subset of the beets configuration this tool manages
type Config struct {
	Directory string            `yaml:"directory"`
	Library   string            `yaml:"library"`
	Import    ImportConfig      `yaml:"import"`
	Paths     map[string]string `yaml:"paths"`
	Plugins   []string          `yaml:"plugins"`
	Convert   ConvertConfig     `yaml:"convert"`
	Scrub     ScrubConfig       `yaml:"scrub"`
	Replace   map[string]string `yaml:"replace,omitempty"`
}

// ImportConfig controls how beets imports files found on the device
type ImportConfig struct {
	Write         bool   `yaml:"write"`
	Copy          bool   `yaml:"copy"`
	Move          bool   `yaml:"move"`
	Resume        bool   `yaml:"resume"`
	Incremental   bool   `yaml:"incremental"`
	QuietFallback string `yaml:"quiet_fallback"`
	Timid         bool   `yaml:"timid"`
	Log           string `yaml:"log,omitempty"`
}

// ConvertConfig configures the convert plugin
type ConvertConfig struct {
	Auto                   bool                    `yaml:"auto"`
	CopyAlbumArt           bool                    `yaml:"copy_album_art"`
	Format                 string                  `yaml:"format"`
	MaxBitrate             int                     `yaml:"max_bitrate"`
	NeverConvertLossyFiles bool                    `yaml:"never_convert_lossy_files"`
	Opts                   string                  `yaml:"opts"`
	Formats                map[string]FormatConfig `yaml:"formats"`
}

// FormatConfig is a convert plugin output format
type FormatConfig struct {
	Command   string `yaml:"command"`
	Extension string `yaml:"extension"`
}

// ScrubConfig configures the scrub plugin
type ScrubConfig struct {
	Auto bool `yaml:"auto"`
}

// Params are the user supplied values substituted into the template
type Params struct {
	Mountpoint string
	Bitrate    string
	MaxBitrate int
	// LibraryPath is the beets database; defaults next to the config file
	LibraryPath string
}

func (p Params) withDefaults(configPath string) Params {
	if p.Bitrate == "" {
		p.Bitrate = DefaultBitrate
	}
	if p.MaxBitrate <= 0 {
		p.MaxBitrate = DefaultMaxBitrate
	}
	if p.LibraryPath == "" {
		p.LibraryPath = filepath.Join(filepath.Dir(configPath), "shokz-library.db")
	}
	return p
}

// NewConfig builds the configuration used for the device
func NewConfig(p Params) *Config {
	opts := fmt.Sprintf("-vn -c:a aac -b:a %s", p.Bitrate)
	return &Config{
		Directory: p.Mountpoint,
		Library:   p.LibraryPath,
		Import: ImportConfig{
			Write:         true,
			Move:          true,
			QuietFallback: "asis",
		},
		Paths: map[string]string{
			"default":   "$albumartist/$album%aunique{}/$track $title",
			"singleton": "Non-Album/$artist/$title",
			"comp":      "Compilations/$album%aunique{}/$track $title",
		},
		Plugins: []string{"convert", "scrub", "fromfilename"},
		Convert: ConvertConfig{
			Auto:       true,
			Format:     "aac",
			MaxBitrate: p.MaxBitrate,
			Opts:       opts,
			Formats: map[string]FormatConfig{
				"aac": {
					Command:   "ffmpeg -i $source -y " + opts + " $dest",
					Extension: "m4a",
				},
			},
		},
		Scrub: ScrubConfig{Auto: true},
		Replace: map[string]string{
			`[\\/]`:        "_",
			`^\.`:          "_",
			`[\x00-\x1f]`:  "",
			`[<>:"\?\*\|]`: "_",
			`\.$`:          "_",
			`\s+$`:         "",
			`^\s+`:         "",
		},
	}
}

// Template renders the configuration with default values
func Template(configPath, mountpoint string) (string, error) {
	p := Params{Mountpoint: mountpoint}.withDefaults(configPath)
	data, err := marshal(NewConfig(p))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# beets configuration for a Shokz XTRAINERZ device\n")
	buf.WriteString("# generated by shokz-sync\n\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode beets config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode beets config: %w", err)
	}
	return buf.Bytes(), nil
}

// Create writes a new configuration to path, creating parent directories.
// An existing file is overwritten.
func Create(path string, p Params) (*Config, error) {
	p = p.withDefaults(path)
	cfg := NewConfig(p)

	data, err := marshal(cfg)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("write beets config: %w", err)
	}

	return cfg, nil
}

// Load reads and parses a beets configuration
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read beets config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse beets config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration has what an import needs
func (c *Config) Validate() error {
	if c.Directory == "" {
		return fmt.Errorf("directory is required")
	}
	if c.Library == "" {
		return fmt.Errorf("library is required")
	}
	for _, key := range []string{"default", "comp"} {
		if c.Paths[key] == "" {
			return fmt.Errorf("paths.%s is required", key)
		}
	}
	if !slices.Contains(c.Plugins, "convert") {
		return fmt.Errorf("convert plugin must be enabled")
	}
	return nil
}

// Verify reports whether path holds a usable configuration
func Verify(path string) bool {
	cfg, err := Load(path)
	if err != nil {
		return false
	}
	return cfg.Validate() == nil
}

// FileStore reads and writes configurations on disk
type FileStore struct{}

// Verify reports whether path holds a usable configuration
func (FileStore) Verify(path string) bool {
	return Verify(path)
}

// Create writes a new configuration to path
func (FileStore) Create(path string, p Params) error {
	_, err := Create(path, p)
	return err
}
