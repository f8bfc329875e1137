package feature

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk YAML representation of a feature set.
type Manifest struct {
	Features []*Feature `yaml:"features"`
}

// LoadManifest reads a feature manifest from a YAML file and validates
// that IDs are unique and dependencies reference known features.
func LoadManifest(path string) ([]*Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest bytes. The feature set is final after
// parsing; nothing downstream may add or remove features.
func ParseManifest(data []byte) ([]*Feature, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(m.Features) == 0 {
		return nil, fmt.Errorf("manifest contains no features")
	}

	seen := make(map[string]bool, len(m.Features))
	for _, f := range m.Features {
		if f.ID == "" {
			return nil, fmt.Errorf("feature with empty id in manifest")
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("duplicate feature id %q", f.ID)
		}
		seen[f.ID] = true
		f.Normalize()
	}

	for _, f := range m.Features {
		for _, dep := range f.Dependencies {
			if !seen[dep] {
				return nil, fmt.Errorf("feature %s depends on unknown feature %q", f.ID, dep)
			}
			if dep == f.ID {
				return nil, fmt.Errorf("feature %s depends on itself", f.ID)
			}
		}
	}

	return m.Features, nil
}
