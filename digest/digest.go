// Package digest produces stable fingerprints over JSON-serializable values.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Of marshals v, canonicalizes it per RFC 8785 and returns its sha256 hex digest.
// Field order and whitespace never change the result.
func Of(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}
	return OfJSON(raw)
}

// OfJSON digests already-encoded JSON
func OfJSON(raw []byte) (string, error) {
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize json: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
