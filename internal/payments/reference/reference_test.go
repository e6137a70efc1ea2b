package reference

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var referencePattern = regexp.MustCompile(`^[A-Z]+_[0-9A-Z]+_[0-9A-Z]{5}$`)

func TestGenerate(t *testing.T) {
	t.Run("formats prefix, timestamp and suffix", func(t *testing.T) {
		now := time.UnixMilli(1_700_000_000_000)
		ref := generateAt(now, PrefixOrder)

		require.Regexp(t, referencePattern, ref)

		parts := strings.Split(ref, "_")
		require.Len(t, parts, 3)
		assert.Equal(t, "ORDER", parts[0])

		millis, err := strconv.ParseInt(strings.ToLower(parts[1]), 36, 64)
		require.NoError(t, err)
		assert.Equal(t, now.UnixMilli(), millis)
	})

	t.Run("upper-cases lowercase prefixes", func(t *testing.T) {
		ref := Generate("capture")
		assert.True(t, strings.HasPrefix(ref, "CAPTURE_"))
	})

	t.Run("falls back to a default prefix", func(t *testing.T) {
		ref := Generate("  ")
		assert.True(t, strings.HasPrefix(ref, "REF_"))
	})

	t.Run("references generated in the same millisecond differ", func(t *testing.T) {
		now := time.Now()
		seen := make(map[string]struct{}, 1000)
		for i := 0; i < 1000; i++ {
			seen[generateAt(now, PrefixAuthorization)] = struct{}{}
		}
		// 36^5 suffixes; a handful of collisions in 1000 draws would indicate a broken source.
		assert.GreaterOrEqual(t, len(seen), 995)
	})
}

func TestHasPrefix(t *testing.T) {
	ref := Generate(PrefixCapture)

	assert.True(t, HasPrefix(ref, PrefixCapture))
	assert.True(t, HasPrefix(strings.ToLower(ref), PrefixCapture))
	assert.False(t, HasPrefix(ref, PrefixOrder))
	assert.False(t, HasPrefix("CAPTUREX_1_ABCDE", PrefixCapture))
}
