package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/kriansa/shokz-sync/internal/validation"
)

const (
	// DefaultMountpoint is where macOS mounts the Shokz XTRAINERZ volume
	DefaultMountpoint = "/Volumes/XTRAINERZ"
	// DefaultBitrate is the AAC bitrate used for transcoding
	DefaultBitrate = "96k"
	// DefaultMaxBitrate is the bitrate (kbps) above which files are transcoded
	DefaultMaxBitrate = 320
)

// DefaultConfigPath returns the default application config file location
func DefaultConfigPath() string {
	return filepath.Join(configHome(), "shokz-sync", "config.toml")
}

// DefaultBeetsConfigPath returns the default beets config file location
func DefaultBeetsConfigPath() string {
	return filepath.Join(configHome(), "beets", "config.yaml")
}

// configHome returns $XDG_CONFIG_HOME or ~/.config
func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config"
	}
	return filepath.Join(home, ".config")
}

// Config holds the application configuration
type Config struct {
	// Mountpoint is where the device volume is mounted
	Mountpoint string `toml:"mountpoint"`
	// Bitrate is the AAC target bitrate, e.g. "96k"
	Bitrate string `toml:"bitrate"`
	// MaxBitrate is the bitrate in kbps above which files are transcoded
	MaxBitrate int `toml:"max_bitrate"`
	// BeetsConfig is the beets configuration file path
	BeetsConfig string `toml:"beets_config"`
	// LibraryDB is the beets library database path
	LibraryDB string `toml:"library_db"`
	// NoSudo runs fatsort without sudo
	NoSudo bool `toml:"no_sudo"`
}

// Load loads configuration from a TOML file
// Returns an empty config if the file doesn't exist
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Merge merges CLI flags into the config, with CLI flags taking precedence
// over config file values. Empty CLI values are ignored; noSudo can only
// turn sudo off.
func (c *Config) Merge(mountpoint, bitrate, beetsConfig string, noSudo bool) {
	if mountpoint != "" {
		c.Mountpoint = mountpoint
	}
	if bitrate != "" {
		c.Bitrate = bitrate
	}
	if beetsConfig != "" {
		c.BeetsConfig = beetsConfig
	}
	if noSudo {
		c.NoSudo = true
	}
}

// ApplyDefaults applies default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.Mountpoint == "" {
		c.Mountpoint = DefaultMountpoint
	}
	if c.Bitrate == "" {
		c.Bitrate = DefaultBitrate
	}
	if c.MaxBitrate == 0 {
		c.MaxBitrate = DefaultMaxBitrate
	}
	if c.BeetsConfig == "" {
		c.BeetsConfig = DefaultBeetsConfigPath()
	}
}

// Validate validates the configuration
// Note: whether the mountpoint is actually mounted is checked at sync time
func (c *Config) Validate() error {
	if err := validation.ValidateMountpoint(c.Mountpoint); err != nil {
		return err
	}

	if err := validation.ValidateBitrate(c.Bitrate); err != nil {
		return err
	}

	if c.MaxBitrate <= 0 {
		return fmt.Errorf("max_bitrate must be positive, got %d", c.MaxBitrate)
	}

	if c.BeetsConfig == "" {
		return fmt.Errorf("beets config path is required")
	}

	return nil
}
