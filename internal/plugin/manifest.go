// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Manifest is the optional <name>.yaml file next to a plugin module.
type Manifest struct {
	Name         string   `yaml:"name" json:"name" jsonschema:"required,pattern=^[a-z][a-z0-9_]*$,maxLength=64"`
	Version      string   `yaml:"version" json:"version" jsonschema:"required,minLength=1"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Requires     string   `yaml:"requires,omitempty" json:"requires,omitempty" jsonschema:"description=semver constraint on the host plugin API version"`
	Capabilities []string `yaml:"capabilities,omitempty" json:"capabilities,omitempty" jsonschema:"description=capability patterns; omit to grant everything"`
}

const maxNameLength = 64

// namePattern matches plugin names: a lowercase letter followed by
// lowercase letters, digits or underscores. The name doubles as the module
// file name.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidName reports whether name is an acceptable plugin name.
func ValidName(name string) bool {
	return len(name) <= maxNameLength && namePattern.MatchString(name)
}

// ParseManifest parses and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, oops.Code(CodeLoad).In("manifest").Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code(CodeLoad).In("manifest").Wrapf(err, "invalid YAML")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	errb := oops.Code(CodeLoad).In("manifest").With("name", m.Name)

	if !ValidName(m.Name) {
		return errb.Errorf("name %q must start with a-z, contain only a-z, 0-9 and underscores, and be at most %d characters",
			m.Name, maxNameLength)
	}
	if m.Version == "" {
		return errb.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return errb.With("version", m.Version).Wrapf(err, "version is not semver")
	}
	if m.Requires != "" {
		if _, err := semver.NewConstraint(m.Requires); err != nil {
			return errb.With("requires", m.Requires).Wrapf(err, "requires is not a semver constraint")
		}
	}
	for i, c := range m.Capabilities {
		if strings.TrimSpace(c) == "" {
			return errb.With("index", i).Errorf("capability %d is empty", i)
		}
	}
	return nil
}

// LoadManifest reads <dir>/<name>.yaml. A missing file yields a nil
// manifest and no error. The manifest must name the plugin it sits next to.
func LoadManifest(dir, name string) (*Manifest, error) {
	path := filepath.Join(dir, name+".yaml")
	data, err := os.ReadFile(path) //nolint:gosec // path is built from the plugins dir and a validated name
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code(CodeLoad).In("manifest").With("path", path).Wrap(err)
	}

	if err := ValidateSchema(data); err != nil {
		return nil, oops.Code(CodeLoad).In("manifest").With("path", path).Wrap(err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	if m.Name != name {
		return nil, oops.Code(CodeLoad).
			In("manifest").
			With("path", path).
			Errorf("manifest names %q but sits next to plugin %q", m.Name, name)
	}
	return m, nil
}
