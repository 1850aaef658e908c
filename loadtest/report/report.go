// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mattermost/ltengine/loadtest/model"
)

// Report is the graded outcome of a load test run.
type Report struct {
	Result          *model.LoadTestResult `json:"result"`
	Config          *model.LoadTestConfig `json:"config"`
	Analysis        Analysis              `json:"analysis"`
	Recommendations []string              `json:"recommendations"`
}

// New grades res against cfg and returns the resulting report. The inputs
// are copied so the report doesn't alias the caller's data.
func New(res *model.LoadTestResult, cfg *model.LoadTestConfig) *Report {
	var c *model.LoadTestConfig
	if cfg != nil {
		cp := *cfg
		c = &cp
	}
	a := Analyze(res, c)
	return &Report{
		Result:          res.Clone(),
		Config:          c,
		Analysis:        a,
		Recommendations: recommend(res, c, a),
	}
}

// Label returns a short name identifying the report.
func (r *Report) Label() string {
	if r.Result == nil {
		return ""
	}
	if r.Result.ConfigName != "" {
		return fmt.Sprintf("%s (%s)", r.Result.ConfigName, shortID(r.Result.ID))
	}
	return r.Result.ID
}

// Load loads a report from a given file path.
func Load(path string) (*Report, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(buf, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %q: %w", path, err)
	}
	if r.Result == nil {
		return nil, errors.New("report has no result")
	}
	return &r, nil
}

// Save writes the report as JSON to the given file path.
func (r *Report) Save(path string) error {
	buf, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
