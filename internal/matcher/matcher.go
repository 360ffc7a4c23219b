// Package matcher resolves which frame an input image belongs to.
package matcher

import (
	"errors"
	"strings"
)

// ErrNoMatch means no frame could be chosen for an input; the file is skipped.
var ErrNoMatch = errors.New("no matching frame")

// Matcher picks a catalog key for an input file stem. keys come in catalog
// order and implementations must be deterministic for a given order.
type Matcher interface {
	Match(stem string, keys []string) (string, error)
}

// Separators allowed between the frame key and the rest of an input stem.
var Separators = []string{"_", "-"}

// Prefix implements the filename convention: "<key>", "<key>_<any>" or
// "<key>-<any>", compared case-insensitively.
type Prefix struct{}

func (Prefix) Match(stem string, keys []string) (string, error) {
	lowered := strings.ToLower(stem)

	for _, key := range keys {
		if lowered == key {
			return key, nil
		}
	}

	for _, key := range keys {
		for _, sep := range Separators {
			if strings.HasPrefix(lowered, key+sep) {
				return key, nil
			}
		}
	}

	return "", ErrNoMatch
}
