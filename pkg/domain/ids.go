// Package domain holds shared domain primitives. Types here enforce validity
// at parse time so services never handle raw, unchecked identifiers.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// RegistryID identifies one attestation registry instance.
type RegistryID uuid.UUID

// NewRegistryID generates a fresh registry identifier.
func NewRegistryID() RegistryID {
	return RegistryID(uuid.New())
}

// ParseRegistryID validates and returns a RegistryID.
func ParseRegistryID(s string) (RegistryID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RegistryID{}, fmt.Errorf("invalid registry id: %w", err)
	}
	return RegistryID(u), nil
}

// String returns the canonical UUID form.
func (id RegistryID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the identifier is unset.
func (id RegistryID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}
