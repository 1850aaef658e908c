// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// StepAction is the kind of work a LoadTestStep performs.
type StepAction string

// Available step actions.
const (
	ActionAPICall       StepAction = "api_call"
	ActionUIInteraction StepAction = "ui_interaction"
	ActionWait          StepAction = "wait"
	ActionAssertion     StepAction = "assertion"
)

// Operator is the comparison applied by an Assertion.
type Operator string

// Available assertion operators.
const (
	OperatorLT  Operator = "lt"
	OperatorLTE Operator = "lte"
	OperatorGT  Operator = "gt"
	OperatorGTE Operator = "gte"
	OperatorEQ  Operator = "eq"
	OperatorNE  Operator = "ne"
)

// AssertionTarget selects which observation of the preceding step an
// assertion is evaluated against.
type AssertionTarget string

// Available assertion targets.
const (
	TargetResponseTime AssertionTarget = "response_time"
	TargetStatusCode   AssertionTarget = "status_code"
)

// SelectionMode controls how the scheduler picks scenarios on each tick.
type SelectionMode string

const (
	// SelectionIndependent runs one Bernoulli trial per scenario per tick,
	// so several scenarios, or none, may fire on the same tick.
	SelectionIndependent SelectionMode = "independent"
	// SelectionWeighted draws a single scenario per tick with probability
	// proportional to its weight.
	SelectionWeighted SelectionMode = "weighted"
)

const (
	DefaultWaitTimeoutMs    = 1000
	DefaultRequestTimeoutMs = 10000
)

// Assertion is a comparison evaluated by an assertion step.
type Assertion struct {
	Target   AssertionTarget `json:"target,omitempty" yaml:"target,omitempty"`
	Operator Operator        `json:"operator" yaml:"operator"`
	Value    float64         `json:"value" yaml:"value"`
}

// LoadTestStep is one unit of work inside a scenario.
type LoadTestStep struct {
	ID     string     `json:"id" yaml:"id"`
	Name   string     `json:"name,omitempty" yaml:"name,omitempty"`
	Action StepAction `json:"action" yaml:"action"`
	// api_call only.
	Endpoint       string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Method         string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Payload        string            `json:"payload,omitempty" yaml:"payload,omitempty"`
	ExpectedStatus int               `json:"expectedStatus,omitempty" yaml:"expectedStatus,omitempty"`
	// Applies to wait (sleep duration) and api_call (request timeout).
	TimeoutMs int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// ui_interaction only. Percentage of simulated gestures that fail.
	FailureRatePercent float64    `json:"failureRatePercent,omitempty" yaml:"failureRatePercent,omitempty"`
	Assertion          *Assertion `json:"assertion,omitempty" yaml:"assertion,omitempty"`
}

// Timeout returns the step-local timeout, falling back to the default for
// the step's action.
func (s LoadTestStep) Timeout() time.Duration {
	if s.TimeoutMs > 0 {
		return time.Duration(s.TimeoutMs) * time.Millisecond
	}
	if s.Action == ActionAPICall {
		return DefaultRequestTimeoutMs * time.Millisecond
	}
	return DefaultWaitTimeoutMs * time.Millisecond
}

// LoadTestScenario is a weighted, ordered sequence of steps representing one
// user journey.
type LoadTestScenario struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Weight      float64        `json:"weight" yaml:"weight"`
	Steps       []LoadTestStep `json:"steps" yaml:"steps"`
	ThinkTimeMs int            `json:"thinkTimeMs" yaml:"thinkTimeMs"`
}

// LoadTestConfig is an immutable test definition.
type LoadTestConfig struct {
	ID                     string             `json:"id" yaml:"id"`
	Name                   string             `json:"name" yaml:"name"`
	Description            string             `json:"description,omitempty" yaml:"description,omitempty"`
	DurationSeconds        int                `json:"durationSeconds" yaml:"durationSeconds"`
	ConcurrentUsers        int                `json:"concurrentUsers" yaml:"concurrentUsers"`
	RampUpSeconds          int                `json:"rampUpSeconds" yaml:"rampUpSeconds"`
	Scenarios              []LoadTestScenario `json:"scenarios" yaml:"scenarios"`
	TargetEndpoint         string             `json:"targetEndpoint,omitempty" yaml:"targetEndpoint,omitempty"`
	ExpectedResponseTimeMs float64            `json:"expectedResponseTimeMs" yaml:"expectedResponseTimeMs"`
	MaxErrorRatePercent    float64            `json:"maxErrorRatePercent" yaml:"maxErrorRatePercent"`
	SelectionMode          SelectionMode      `json:"selectionMode,omitempty" yaml:"selectionMode,omitempty"`
	SchemaVersion          string             `json:"schemaVersion,omitempty" yaml:"schemaVersion,omitempty"`
	CreatedAt              time.Time          `json:"createdAt" yaml:"createdAt,omitempty"`
}

// Duration returns the configured run length.
func (c *LoadTestConfig) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// Scenario returns the scenario with the given id, or nil.
func (c *LoadTestConfig) Scenario(id string) *LoadTestScenario {
	for i := range c.Scenarios {
		if c.Scenarios[i].ID == id {
			return &c.Scenarios[i]
		}
	}
	return nil
}

// SetDefaults fills in the optional fields of a freshly created config.
// Scenario and step ids are derived from their position when missing.
func (c *LoadTestConfig) SetDefaults() {
	if c.SelectionMode == "" {
		c.SelectionMode = SelectionIndependent
	}
	if c.SchemaVersion == "" {
		c.SchemaVersion = SchemaVersion.String()
	}
	for i := range c.Scenarios {
		sc := &c.Scenarios[i]
		if sc.ID == "" {
			sc.ID = fmt.Sprintf("scenario-%d", i+1)
		}
		for j := range sc.Steps {
			st := &sc.Steps[j]
			if st.ID == "" {
				st.ID = fmt.Sprintf("%s-step-%d", sc.ID, j+1)
			}
			if st.Action == ActionAPICall && st.Method == "" {
				st.Method = "GET"
			}
			if st.Assertion != nil && st.Assertion.Target == "" {
				st.Assertion.Target = TargetResponseTime
			}
		}
	}
}

// IsValid checks whether a LoadTestConfig is valid or not.
// Returns an error if the validation fails.
func (c *LoadTestConfig) IsValid() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("name cannot be empty")
	}
	if c.DurationSeconds <= 0 {
		return errors.New("durationSeconds should be > 0")
	}
	if c.ConcurrentUsers <= 0 {
		return errors.New("concurrentUsers should be > 0")
	}
	if c.RampUpSeconds < 0 {
		return errors.New("rampUpSeconds should be >= 0")
	}
	if c.ExpectedResponseTimeMs < 0 {
		return errors.New("expectedResponseTimeMs should be >= 0")
	}
	if c.MaxErrorRatePercent < 0 || c.MaxErrorRatePercent > 100 {
		return errors.New("maxErrorRatePercent should be in [0,100]")
	}
	switch c.SelectionMode {
	case "", SelectionIndependent, SelectionWeighted:
	default:
		return fmt.Errorf("unknown selectionMode %q", c.SelectionMode)
	}
	if c.TargetEndpoint != "" {
		if _, err := url.ParseRequestURI(c.TargetEndpoint); err != nil {
			return fmt.Errorf("invalid targetEndpoint: %w", err)
		}
	}
	if len(c.Scenarios) == 0 {
		return errors.New("at least one scenario is required")
	}

	ids := make(map[string]bool, len(c.Scenarios))
	for i := range c.Scenarios {
		sc := &c.Scenarios[i]
		if err := sc.IsValid(); err != nil {
			return fmt.Errorf("scenario %d: %w", i, err)
		}
		if sc.ID != "" {
			if ids[sc.ID] {
				return fmt.Errorf("duplicate scenario id %q", sc.ID)
			}
			ids[sc.ID] = true
		}
		for _, st := range sc.Steps {
			if st.Action == ActionAPICall && c.TargetEndpoint == "" && !isAbsoluteURL(st.Endpoint) {
				return fmt.Errorf("scenario %d: step %q has a relative endpoint but no targetEndpoint is configured", i, st.ID)
			}
		}
	}
	return nil
}

// IsValid checks whether a LoadTestScenario is valid or not.
func (s *LoadTestScenario) IsValid() error {
	if s.Weight < 0 || s.Weight > 100 {
		return fmt.Errorf("weight %v is not in [0,100]", s.Weight)
	}
	if s.ThinkTimeMs < 0 {
		return errors.New("thinkTimeMs should be >= 0")
	}
	if len(s.Steps) == 0 {
		return errors.New("at least one step is required")
	}
	for i := range s.Steps {
		if err := s.Steps[i].IsValid(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// IsValid checks whether a LoadTestStep is valid or not.
func (s *LoadTestStep) IsValid() error {
	if s.TimeoutMs < 0 {
		return errors.New("timeout should be >= 0")
	}
	switch s.Action {
	case ActionAPICall:
		if s.Endpoint == "" {
			return errors.New("api_call requires an endpoint")
		}
		if s.ExpectedStatus != 0 && (s.ExpectedStatus < 100 || s.ExpectedStatus > 599) {
			return fmt.Errorf("invalid expectedStatus %d", s.ExpectedStatus)
		}
	case ActionAssertion:
		if s.Assertion == nil {
			return errors.New("assertion step requires an assertion")
		}
		return s.Assertion.IsValid()
	case ActionWait:
	case ActionUIInteraction:
		if s.FailureRatePercent < 0 || s.FailureRatePercent > 100 {
			return errors.New("failureRatePercent should be in [0,100]")
		}
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	return nil
}

// IsValid checks whether an Assertion is valid or not.
func (a *Assertion) IsValid() error {
	switch a.Operator {
	case OperatorLT, OperatorLTE, OperatorGT, OperatorGTE, OperatorEQ, OperatorNE:
	default:
		return fmt.Errorf("unknown operator %q", a.Operator)
	}
	switch a.Target {
	case "", TargetResponseTime, TargetStatusCode:
	default:
		return fmt.Errorf("unknown assertion target %q", a.Target)
	}
	return nil
}

// Evaluate applies the operator to observed and the configured value.
func (a *Assertion) Evaluate(observed float64) bool {
	switch a.Operator {
	case OperatorLT:
		return observed < a.Value
	case OperatorLTE:
		return observed <= a.Value
	case OperatorGT:
		return observed > a.Value
	case OperatorGTE:
		return observed >= a.Value
	case OperatorEQ:
		return observed == a.Value
	case OperatorNE:
		return observed != a.Value
	}
	return false
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
