package code

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("has prefix and four random characters", func(t *testing.T) {
		c, err := New()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(c, Prefix))
		assert.Len(t, c, len(Prefix)+4)
	})

	t.Run("uses only unambiguous characters", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			c, err := New()
			require.NoError(t, err)
			for _, r := range c[len(Prefix):] {
				assert.Contains(t, alphabet, string(r))
			}
		}
	})

	t.Run("codes vary", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			c, err := New()
			require.NoError(t, err)
			seen[c] = true
		}
		// 100 draws from a ~531k space colliding down to a handful would
		// mean the generator is broken.
		assert.Greater(t, len(seen), 90)
	})
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "MEA-7XK2", Normalize("mea-7xk2"))
	assert.Equal(t, "MEA-7XK2", Normalize("  MEA-7xk2\n"))
	assert.Equal(t, "", Normalize("   "))
}
