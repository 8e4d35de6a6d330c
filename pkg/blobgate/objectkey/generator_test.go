package objectkey

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	t.Run("default prefix is the utc date", func(t *testing.T) {
		key := Generate("", "pdf", now)
		assert.True(t, strings.HasPrefix(key, "2025-03-14-"), "key %q", key)
		assert.True(t, strings.HasSuffix(key, ".pdf"), "key %q", key)
	})

	t.Run("custom prefix trimmed of slashes", func(t *testing.T) {
		key := Generate("/statements/", "csv", now)
		assert.True(t, strings.HasPrefix(key, "statements-"), "key %q", key)
	})

	t.Run("no extension leaves no suffix", func(t *testing.T) {
		key := Generate("", "", now)
		assert.False(t, strings.Contains(key, "."), "key %q", key)
	})

	t.Run("keys are unique", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			key := Generate("", "bin", now)
			assert.False(t, seen[key])
			seen[key] = true
		}
	})
}

func TestForLegacy(t *testing.T) {
	assert.Equal(t, "docs/42.pdf", ForLegacy(42, "pdf"))
	assert.Equal(t, "docs/42", ForLegacy(42, ""))
}
