package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash32 is a fixed 32-byte digest. It carries both work digests (SHA-256 of
// the delivered artifact) and external payment transaction references; the two
// never mix because field names distinguish them on every record.
type Hash32 [32]byte

// ParseHash32 decodes a 64-character hex string into a Hash32.
func ParseHash32(s string) (Hash32, error) {
	var h Hash32
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash32{}, fmt.Errorf("invalid hex digest: %w", err)
	}
	if len(b) != len(h) {
		return Hash32{}, fmt.Errorf("digest must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// String returns the lowercase hex encoding.
func (h Hash32) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the digest is all zero bytes.
func (h Hash32) IsZero() bool {
	return h == Hash32{}
}

// MarshalJSON encodes the digest as a hex string.
func (h Hash32) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string digest.
func (h *Hash32) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHash32(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
