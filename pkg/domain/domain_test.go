package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHash32(t *testing.T) {
	t.Run("round-trips a valid digest", func(t *testing.T) {
		raw := strings.Repeat("ab", 32)
		h, err := ParseHash32(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, h.String())
		assert.False(t, h.IsZero())
	})

	t.Run("rejects wrong lengths", func(t *testing.T) {
		for _, raw := range []string{"", "abcd", strings.Repeat("ab", 31), strings.Repeat("ab", 33)} {
			_, err := ParseHash32(raw)
			assert.Error(t, err, raw)
		}
	})

	t.Run("rejects non-hex input", func(t *testing.T) {
		_, err := ParseHash32(strings.Repeat("zz", 32))
		assert.Error(t, err)
	})

	t.Run("survives JSON", func(t *testing.T) {
		h, err := ParseHash32(strings.Repeat("0f", 32))
		require.NoError(t, err)

		raw, err := json.Marshal(h)
		require.NoError(t, err)
		assert.Equal(t, `"`+h.String()+`"`, string(raw))

		var back Hash32
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, h, back)
	})
}

func TestParseAddress(t *testing.T) {
	t.Run("trims and accepts", func(t *testing.T) {
		a, err := ParseAddress("  acct-1  ")
		require.NoError(t, err)
		assert.Equal(t, "acct-1", a.String())
	})

	t.Run("rejects empty and oversized", func(t *testing.T) {
		_, err := ParseAddress("   ")
		assert.Error(t, err)

		_, err = ParseAddress(strings.Repeat("a", 129))
		assert.Error(t, err)
	})
}

func TestRegistryID(t *testing.T) {
	id := NewRegistryID()
	assert.False(t, id.IsNil())

	parsed, err := ParseRegistryID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseRegistryID("nope")
	assert.Error(t, err)

	assert.True(t, RegistryID{}.IsNil())
}
