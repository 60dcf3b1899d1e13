// Package manifest loads and saves capture manifests: the sources to tail and
// the report settings, stored as YAML or TOML.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Manifest represents a tailsync.yaml (or .toml) configuration file.
type Manifest struct {
	Version     int      `yaml:"version"                toml:"version"                json:"version"`
	Root        string   `yaml:"root,omitempty"         toml:"root,omitempty"         json:"root,omitempty"`
	Sources     []string `yaml:"sources"                toml:"sources"                json:"sources"`
	Output      string   `yaml:"output,omitempty"       toml:"output,omitempty"       json:"output,omitempty"`
	Format      string   `yaml:"format,omitempty"       toml:"format,omitempty"       json:"format,omitempty"`
	PrecisionMS int      `yaml:"precision_ms,omitempty" toml:"precision_ms,omitempty" json:"precision_ms,omitempty"`
	IncludeTime bool     `yaml:"include_time,omitempty" toml:"include_time,omitempty" json:"include_time,omitempty"`
	Verbose     bool     `yaml:"verbose,omitempty"      toml:"verbose,omitempty"      json:"verbose,omitempty"`
	Socket      string   `yaml:"socket,omitempty"       toml:"socket,omitempty"       json:"socket,omitempty"`
	MetricsAddr string   `yaml:"metrics_addr,omitempty" toml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`

	// FilePath is where the manifest was loaded from.
	FilePath string `yaml:"-" toml:"-" json:"-"`
}

// Parse decodes a YAML manifest and expands ${root} in sources and output.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.interpolate()
	return &m, nil
}

// ParseTOML is Parse for TOML documents.
func ParseTOML(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.interpolate()
	return &m, nil
}

// Load reads the manifest at path. Files ending in .toml are decoded as TOML,
// everything else as YAML.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	parse := Parse
	if isTOML(path) {
		parse = ParseTOML
	}
	m, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.FilePath = path
	return m, nil
}

// Save writes m to path, picking the encoding from the extension like Load.
func Save(m *Manifest, path string) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(m)
	} else {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		err = enc.Encode(m)
		if err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	}
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (m *Manifest) interpolate() {
	if m.Root == "" {
		return
	}
	r := strings.NewReplacer("${root}", m.Root)
	for i, s := range m.Sources {
		m.Sources[i] = r.Replace(s)
	}
	m.Output = r.Replace(m.Output)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
