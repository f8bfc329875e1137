package cache

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// Fingerprint computes a deterministic content hash over a feature's
// description, the phase name, and the upstream artifacts the phase
// depends on. Upstream content is hashed in, so changing any upstream
// artifact invalidates every downstream entry structurally — no
// explicit invalidation signaling is needed.
func Fingerprint(description, phase string, upstream map[string]string) string {
	canonical := canonicalize(description, phase, upstream)
	sum := blake3.Sum256(canonical)
	return fmt.Sprintf("%x", sum[:])
}

// canonicalize renders the fingerprint inputs as JSON with stable key
// ordering so identical inputs always hash identically.
func canonicalize(description, phase string, upstream map[string]string) []byte {
	keys := make([]string, 0, len(upstream))
	for k := range upstream {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([][2]string, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, [2]string{k, upstream[k]})
	}

	payload := struct {
		Description string      `json:"description"`
		Phase       string      `json:"phase"`
		Upstream    [][2]string `json:"upstream"`
	}{description, phase, ordered}

	// Marshal of a fixed struct with string fields cannot fail.
	data, _ := json.Marshal(payload)
	return data
}
