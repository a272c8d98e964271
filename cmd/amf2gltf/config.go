package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator"
	"github.com/pelletier/go-toml/v2"

	amf "github.com/flywave/go-amf"
)

// Config holds the conversion settings read from an optional TOML file.
type Config struct {
	Strings    string  `toml:"strings" validate:"oneof=null length"`
	Select     string  `toml:"select"`
	Merge      *bool   `toml:"merge"`
	Normals    *bool   `toml:"normals"`
	Weights    *bool   `toml:"weights"`
	UV         *bool   `toml:"uv"`
	Unwrap     bool    `toml:"unwrap"`
	UnitScale  float64 `toml:"unit_scale" validate:"gt=0"`
	NodeRadius float64 `toml:"node_radius" validate:"gt=0"`
	Binary     *bool   `toml:"binary"`
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Strings    string
	Select     string
	Split      bool
	NoNormals  bool
	NoWeights  bool
	NoUV       bool
	Unwrap     bool
	UnitScale  float64
	NodeRadius float64
	Output     string
}

// Load reads a TOML config file. Fields not set in the file keep their zero
// values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func boolPtr(v bool) *bool {
	return &v
}

// Resolve applies flags over the file values, then fills defaults.
func (c *Config) Resolve(flags Flags) {
	if flags.Strings != "" {
		c.Strings = flags.Strings
	}
	if flags.Select != "" {
		c.Select = flags.Select
	}
	if flags.Split {
		c.Merge = boolPtr(false)
	}
	if flags.NoNormals {
		c.Normals = boolPtr(false)
	}
	if flags.NoWeights {
		c.Weights = boolPtr(false)
	}
	if flags.NoUV {
		c.UV = boolPtr(false)
	}
	if flags.Unwrap {
		c.Unwrap = true
	}
	if flags.UnitScale > 0 {
		c.UnitScale = flags.UnitScale
	}
	if flags.NodeRadius > 0 {
		c.NodeRadius = flags.NodeRadius
	}
	if flags.Output != "" {
		c.Binary = boolPtr(!strings.EqualFold(filepath.Ext(flags.Output), ".gltf"))
	}

	if c.Strings == "" {
		c.Strings = "null"
	}
	if c.Merge == nil {
		c.Merge = boolPtr(true)
	}
	if c.Normals == nil {
		c.Normals = boolPtr(true)
	}
	if c.Weights == nil {
		c.Weights = boolPtr(true)
	}
	if c.UV == nil {
		c.UV = boolPtr(true)
	}
	if c.UnitScale <= 0 {
		c.UnitScale = amf.DEFAULT_UNIT_SCALE
	}
	if c.NodeRadius <= 0 {
		c.NodeRadius = amf.DEFAULT_NODE_RADIUS
	}
	if c.Binary == nil {
		c.Binary = boolPtr(true)
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) Encoding() amf.StringEncoding {
	if c.Strings == "length" {
		return amf.LengthPrefixed
	}
	return amf.NullTerminated
}

func (c *Config) DecodeOptions() amf.DecodeOptions {
	return amf.DecodeOptions{Strings: c.Encoding()}
}

func (c *Config) AssembleOptions() amf.AssembleOptions {
	return amf.AssembleOptions{
		Merge:             *c.Merge,
		Normals:           *c.Normals,
		Weights:           *c.Weights,
		UV:                *c.UV,
		UnwrapPlaceholder: c.Unwrap,
		Units:             amf.UnitScale(c.UnitScale),
	}
}

func (c *Config) SkeletonOptions() amf.SkeletonOptions {
	return amf.SkeletonOptions{
		NodeRadius: c.NodeRadius,
		Units:      amf.UnitScale(c.UnitScale),
	}
}
