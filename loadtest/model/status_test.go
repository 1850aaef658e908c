// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusJSON(t *testing.T) {
	for _, s := range []Status{StatusIdle, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled} {
		data, err := json.Marshal(s)
		require.NoError(t, err)
		require.Equal(t, `"`+s.String()+`"`, string(data))

		var decoded Status
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Equal(t, s, decoded)
	}

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"Completed"`), &s))
	require.Equal(t, StatusCompleted, s)

	require.ErrorIs(t, json.Unmarshal([]byte(`"paused"`), &s), ErrUnknownStatus)
	require.Error(t, json.Unmarshal([]byte(`2`), &s))

	_, err := json.Marshal(Status(42))
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestStatusText(t *testing.T) {
	data, err := StatusFailed.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "failed", string(data))

	var s Status
	require.NoError(t, s.UnmarshalText([]byte("cancelled")))
	require.Equal(t, StatusCancelled, s)

	_, err = Status(-1).MarshalText()
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestStatusIsTerminal(t *testing.T) {
	require.False(t, StatusIdle.IsTerminal())
	require.False(t, StatusRunning.IsTerminal())
	require.True(t, StatusCompleted.IsTerminal())
	require.True(t, StatusFailed.IsTerminal())
	require.True(t, StatusCancelled.IsTerminal())
}
