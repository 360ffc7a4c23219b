package matcher

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the on-disk mapping from input stems to frame keys.
//
//	frames:
//	  portrait_001: gacha
//	  Summer-Hero: c
type ManifestFile struct {
	Frames map[string]string `yaml:"frames"`
}

// Manifest matches through an explicit mapping. Stems missing from the
// mapping are handed to Fallback when it is set.
type Manifest struct {
	entries  map[string]string
	Fallback Matcher
}

// NewManifest builds a matcher from a stem -> key mapping. Both sides are
// lowercased.
func NewManifest(frames map[string]string, fallback Matcher) *Manifest {
	entries := make(map[string]string, len(frames))
	for stem, key := range frames {
		entries[strings.ToLower(stem)] = strings.ToLower(key)
	}
	return &Manifest{entries: entries, Fallback: fallback}
}

// LoadManifest reads a YAML manifest. Unmapped stems fall back to the
// filename convention.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest %q: %w", path, err)
	}

	var mf ManifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	return NewManifest(mf.Frames, Prefix{}), nil
}

func (m *Manifest) Match(stem string, keys []string) (string, error) {
	key, ok := m.entries[strings.ToLower(stem)]
	if !ok {
		if m.Fallback == nil {
			return "", ErrNoMatch
		}
		return m.Fallback.Match(stem, keys)
	}

	for _, k := range keys {
		if k == key {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: manifest maps %q to unknown frame %q", ErrNoMatch, stem, key)
}
