package defaults

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFromJSON(t *testing.T) {
	t.Run("bad config", func(t *testing.T) {
		var cfg testCFG
		f, cleanup := getTestCFG(t, `{"Setting": "hello" "Another": 1}`, "json")
		defer cleanup()

		require.Error(t, ReadFrom(f.Name(), "", &cfg))
	})

	t.Run("changed values", func(t *testing.T) {
		var cfg testCFG
		f, cleanup := getTestCFG(t, `{"Setting": "hello"}`, "json")
		defer cleanup()

		require.NoError(t, ReadFrom(f.Name(), "", &cfg))
		assert.Equal(t, 1, cfg.Another)
		assert.Equal(t, "hello", cfg.Setting)
	})

	t.Run("unknown field", func(t *testing.T) {
		var cfg testCFG
		f, cleanup := getTestCFG(t, `{"Unknown": "hello"}`, "json")
		defer cleanup()

		require.Error(t, ReadFrom(f.Name(), "", &cfg))
	})
}
