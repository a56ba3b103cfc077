package domain

import (
	"fmt"
	"strings"
)

// Address is the opaque account identity of a participant as authenticated by
// the execution environment. The ledger compares addresses for equality only
// and never interprets their contents.
type Address string

const maxAddressLen = 128

// ParseAddress validates and returns an Address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("address must not be empty")
	}
	if len(s) > maxAddressLen {
		return "", fmt.Errorf("address exceeds %d characters", maxAddressLen)
	}
	return Address(s), nil
}

// String returns the raw address string.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ""
}
