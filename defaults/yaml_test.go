package defaults

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFromYAML(t *testing.T) {
	t.Run("changed values", func(t *testing.T) {
		var cfg testCFG
		f, cleanup := getTestCFG(t, "setting: hello\nnested:\n  setting: nested_custom\n", "yaml")
		defer cleanup()

		require.NoError(t, ReadFrom(f.Name(), "", &cfg))
		assert.Equal(t, "hello", cfg.Setting)
		assert.Equal(t, 1, cfg.Another)
		assert.Equal(t, "nested_custom", cfg.Nested.Setting)
	})

	t.Run("unknown field", func(t *testing.T) {
		var cfg testCFG
		f, cleanup := getTestCFG(t, "unknown: hello\n", "yaml")
		defer cleanup()

		require.Error(t, ReadFrom(f.Name(), "", &cfg))
	})

	t.Run("ensure default values", func(t *testing.T) {
		var cfg testCFG
		f, cleanup := getTestCFG(t, "", "yaml")
		defer cleanup()

		require.NoError(t, ReadFrom(f.Name(), "", &cfg))
		assert.Equal(t, "hi", cfg.Setting)
		assert.Equal(t, "nested", cfg.Nested.Setting)
	})
}
