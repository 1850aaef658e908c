// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package performance

import (
	"errors"
	"net/url"
)

// MonitorConfig holds the necessary information to create a Monitor.
type MonitorConfig struct {
	// The time interval in milliseconds between two samples.
	UpdateIntervalMs int `default:"5000" validate:"range:[100,]"`
	// An optional URL probed on each sample to measure network latency.
	ProbeURL string `default:""`
	// The time in milliseconds after which a probe is considered failed.
	ProbeTimeoutMs int `default:"2000" validate:"range:[1,]"`
}

// IsValid checks whether a MonitorConfig is valid or not.
// Returns an error if the validation fails.
func (c MonitorConfig) IsValid() error {
	if c.UpdateIntervalMs < 100 {
		return errors.New("UpdateIntervalMs cannot be less than 100")
	}
	if c.ProbeURL != "" {
		if _, err := url.ParseRequestURI(c.ProbeURL); err != nil {
			return errors.New("ProbeURL is not a valid URL")
		}
	}
	return nil
}
