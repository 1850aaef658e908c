// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// askForConfirmation prints the prompt to out, followed by the string
// " [y/N] ". Then it reads a line from in and returns true if and only if
// the answer is either "y" or "yes". It is case-insensitive.
func askForConfirmation(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt+" [y/N] ")

	scanner := bufio.NewScanner(in)
	scanner.Scan()
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("unable to read answer from user: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))

	return answer == "y" || answer == "yes", nil
}

func printJSON(target io.Writer, v any) error {
	enc := json.NewEncoder(target)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error while encoding to JSON: %w", err)
	}
	return nil
}
