// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAskForConfirmation(t *testing.T) {
	testCases := []struct {
		name           string
		input          string
		expectedResult bool
	}{
		{
			name:           "User enters 'y'",
			input:          "y\n",
			expectedResult: true,
		},
		{
			name:           "User enters 'yes'",
			input:          "yes\n",
			expectedResult: true,
		},
		{
			name:           "User enters 'YES' (uppercase)",
			input:          "YES\n",
			expectedResult: true,
		},
		{
			name:           "User enters 'n'",
			input:          "n\n",
			expectedResult: false,
		},
		{
			name:           "User enters empty string",
			input:          "\n",
			expectedResult: false,
		},
		{
			name:           "User enters other text",
			input:          "maybe\n",
			expectedResult: false,
		},
		{
			name:           "No input",
			input:          "",
			expectedResult: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			result, err := askForConfirmation(strings.NewReader(tc.input), &out, "Continue?")
			require.NoError(t, err)
			require.Equal(t, tc.expectedResult, result)
			require.Equal(t, "Continue? [y/N] ", out.String())
		})
	}
}

func TestPrintJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printJSON(&out, map[string]int{"a": 1}))
	require.Equal(t, "{\n  \"a\": 1\n}\n", out.String())

	require.Error(t, printJSON(&out, func() {}))
}
