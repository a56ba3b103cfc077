//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseRegistryID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
//
// Justification: Trust boundary functions must handle arbitrary input safely.
// Fuzz tests verify no panics and consistent invariants.
func FuzzParseRegistryID(f *testing.F) {
	// Seed corpus with interesting inputs
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE registries;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseRegistryID(input)

		// Invariant 1: No panics (implicit - test would fail)

		// Invariant 2: Either valid ID or error, never both
		if err == nil {
			// Valid ID must round-trip (including nil UUIDs)
			roundTrip, err2 := ParseRegistryID(id.String())
			if err2 != nil {
				t.Errorf("Valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("Round-trip changed ID value")
			}
		}
	})
}

// FuzzParseHash32 verifies digest parsing rejects everything except exact
// 32-byte hex and round-trips what it accepts.
func FuzzParseHash32(f *testing.F) {
	f.Add("")
	f.Add("deadbeef")
	f.Add("1111111111111111111111111111111111111111111111111111111111111111")
	f.Add("GGGG111111111111111111111111111111111111111111111111111111111111")
	f.Add(string([]byte{0x00, 0x01}))

	f.Fuzz(func(t *testing.T, input string) {
		h, err := ParseHash32(input)
		if err != nil {
			return
		}
		if len(input) != 64 {
			t.Errorf("Accepted %d-character input", len(input))
		}
		roundTrip, err2 := ParseHash32(h.String())
		if err2 != nil {
			t.Errorf("Valid digest failed round-trip: %v", err2)
		}
		if roundTrip != h {
			t.Error("Round-trip changed digest value")
		}
	})
}

// FuzzParseAddress verifies address parsing never panics and that accepted
// addresses are non-empty, bounded and valid UTF-8 after trimming.
func FuzzParseAddress(f *testing.F) {
	f.Add("acct-1")
	f.Add("")
	f.Add("   ")
	f.Add(string([]byte{0xFF, 0xFE}))

	f.Fuzz(func(t *testing.T, input string) {
		a, err := ParseAddress(input)
		if err != nil {
			return
		}
		if a.IsZero() {
			t.Error("Accepted address is zero")
		}
		if len(a.String()) > 128 {
			t.Error("Accepted address exceeds the length bound")
		}
		if utf8.ValidString(input) && !utf8.ValidString(a.String()) {
			t.Error("Parsing corrupted a valid UTF-8 address")
		}
	})
}
