// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package logger

import (
	"path/filepath"
	"testing"

	"github.com/mattermost/mattermost/server/public/shared/mlog"

	"github.com/stretchr/testify/require"
)

func TestLevelsFrom(t *testing.T) {
	require.Len(t, levelsFrom("ERROR"), 3)
	require.Contains(t, levelsFrom("warn"), mlog.LvlWarn)
	require.NotContains(t, levelsFrom("WARN"), mlog.LvlInfo)
	require.Contains(t, levelsFrom("INFO"), mlog.LvlInfo)
	require.NotContains(t, levelsFrom("INFO"), mlog.LvlDebug)
	require.Contains(t, levelsFrom("TRACE"), mlog.LvlTrace)
}

func TestNew(t *testing.T) {
	t.Run("no targets", func(t *testing.T) {
		log, err := New(&Settings{})
		require.NoError(t, err)
		require.NotNil(t, log)
		log.Info("discarded")
		require.NoError(t, log.Shutdown())
	})

	t.Run("file target", func(t *testing.T) {
		settings := &Settings{
			EnableFile:   true,
			FileJson:     true,
			FileLevel:    "INFO",
			FileLocation: filepath.Join(t.TempDir(), "ltengine.log"),
		}
		cfg, err := targets(settings)
		require.NoError(t, err)
		require.Contains(t, cfg, "file")
		require.NotContains(t, cfg, "console")
		require.Equal(t, "json", cfg["file"].Format)

		log, err := New(settings)
		require.NoError(t, err)
		log.Info("hello", mlog.String("key", "value"))
		require.NoError(t, log.Shutdown())
		require.FileExists(t, settings.FileLocation)
	})
}
