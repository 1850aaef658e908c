// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package model

import (
	"encoding/json"
	"errors"
	"strings"
)

// Status determines which lifecycle state a load-test run is in.
type Status int

// Different possible states of a run. A run is created running and ends in
// exactly one of the terminal states.
const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

// ErrUnknownStatus is returned when an unknown status is encoded/decoded.
var ErrUnknownStatus = errors.New("unknown status")

// IsTerminal reports whether no further transition can happen from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// UnmarshalJSON constructs the status from a JSON string.
func (s *Status) UnmarshalJSON(b []byte) error {
	var res string
	if err := json.Unmarshal(b, &res); err != nil {
		return err
	}

	switch strings.ToLower(res) {
	default:
		return ErrUnknownStatus
	case "idle":
		*s = StatusIdle
	case "running":
		*s = StatusRunning
	case "completed":
		*s = StatusCompleted
	case "failed":
		*s = StatusFailed
	case "cancelled":
		*s = StatusCancelled
	}

	return nil
}

// MarshalJSON returns a JSON representation from a Status variable.
func (s Status) MarshalJSON() ([]byte, error) {
	res := s.String()
	if res == "unknown" {
		return nil, ErrUnknownStatus
	}
	return json.Marshal(res)
}

// MarshalText is needed by the msgpack and TOML encoders, which honour
// encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	res := s.String()
	if res == "unknown" {
		return nil, ErrUnknownStatus
	}
	return []byte(res), nil
}

// UnmarshalText is the counterpart of MarshalText.
func (s *Status) UnmarshalText(b []byte) error {
	return s.UnmarshalJSON([]byte(`"` + string(b) + `"`))
}
