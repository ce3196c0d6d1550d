// Package config handles pmxutil configuration loading.
package config

import (
	"fmt"
	"strings"

	"github.com/binzume/pmxutil/mmd"
)

// Config holds all tool settings.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	GLTF    GLTFConfig    `yaml:"gltf"`
	Logging LoggingConfig `yaml:"logging"`
}

// OutputConfig holds settings for re-encoded .pmx files.
type OutputConfig struct {
	Encoding string `yaml:"encoding"` // utf16le or utf8
}

// GLTFConfig holds settings for glTF export.
type GLTFConfig struct {
	Scale                  float32 `yaml:"scale"`
	DoubleSidedAll         bool    `yaml:"double_sided_all"`
	ForceUnlit             bool    `yaml:"force_unlit"`
	EmbedTextures          bool    `yaml:"embed_textures"`
	TextureResolutionLimit int     `yaml:"texture_resolution_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Encoding: "utf16le",
		},
		GLTF: GLTFConfig{
			Scale:         0.08,
			EmbedTextures: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// TextEncoding returns the configured output encoding.
func (c *OutputConfig) TextEncoding() (mmd.TextEncoding, error) {
	return ParseEncoding(c.Encoding)
}

// ParseEncoding parses an encoding name.
func ParseEncoding(name string) (mmd.TextEncoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "")) {
	case "utf16le", "utf16":
		return mmd.UTF16LE, nil
	case "utf8":
		return mmd.UTF8, nil
	}
	return 0, fmt.Errorf("unknown text encoding %q", name)
}

// Validate checks values that would only fail late.
func (c *Config) Validate() error {
	if _, err := c.Output.TextEncoding(); err != nil {
		return fmt.Errorf("output.encoding: %w", err)
	}
	if c.GLTF.Scale <= 0 {
		return fmt.Errorf("gltf.scale must be positive, got %v", c.GLTF.Scale)
	}
	if c.GLTF.TextureResolutionLimit < 0 {
		return fmt.Errorf("gltf.texture_resolution_limit must not be negative, got %d", c.GLTF.TextureResolutionLimit)
	}
	return nil
}
