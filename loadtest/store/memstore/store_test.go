// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package memstore

import (
	"testing"

	"github.com/mattermost/ltengine/loadtest/store"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s := New()
	require.NotNil(t, s)
	require.Empty(t, s.Keys())
}

func TestGetSet(t *testing.T) {
	s := New()

	t.Run("missing key", func(t *testing.T) {
		val, err := s.Get("missing")
		require.ErrorIs(t, err, store.ErrNotFound)
		require.Nil(t, val)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, s.Set("key", []byte("value")))
		val, err := s.Get("key")
		require.NoError(t, err)
		require.Equal(t, []byte("value"), val)
	})

	t.Run("values are copied", func(t *testing.T) {
		in := []byte("abc")
		require.NoError(t, s.Set("copy", in))
		in[0] = 'z'
		out, err := s.Get("copy")
		require.NoError(t, err)
		require.Equal(t, []byte("abc"), out)
		out[0] = 'y'
		again, err := s.Get("copy")
		require.NoError(t, err)
		require.Equal(t, []byte("abc"), again)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete("key"))
		require.NoError(t, s.Delete("key"))
		_, err := s.Get("key")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	require.Equal(t, []string{"copy"}, s.Keys())
}
