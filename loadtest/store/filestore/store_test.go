// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mattermost/ltengine/loadtest/store"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New("")
	require.Error(t, err)

	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s, err := New(dir)
	require.NoError(t, err)
	require.NotNil(t, s)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	_, err = s.Get("loadtest_configs")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set("loadtest_configs", []byte(`[]`)))
	data, err := s.Get("loadtest_configs")
	require.NoError(t, err)
	require.Equal(t, []byte(`[]`), data)

	require.NoError(t, s.Set("loadtest_configs", []byte(`[{"id":"a"}]`)))
	data, err = s.Get("loadtest_configs")
	require.NoError(t, err)
	require.Equal(t, []byte(`[{"id":"a"}]`), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files should not be left behind")

	require.NoError(t, s.Delete("loadtest_configs"))
	require.NoError(t, s.Delete("loadtest_configs"))
	_, err = s.Get("loadtest_configs")
	require.ErrorIs(t, err, store.ErrNotFound)

	t.Run("invalid key", func(t *testing.T) {
		require.Error(t, s.Set("../escape", []byte("x")))
		_, err := s.Get("a/b")
		require.Error(t, err)
	})

	t.Run("survives reopen", func(t *testing.T) {
		require.NoError(t, s.Set("loadtest_result_1", []byte("one")))
		s2, err := New(dir)
		require.NoError(t, err)
		data, err := s2.Get("loadtest_result_1")
		require.NoError(t, err)
		require.Equal(t, []byte("one"), data)
	})
}
