// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mattermost/ltengine/loadtest/model"
	"github.com/mattermost/ltengine/loadtest/report"
	"github.com/mattermost/ltengine/version"
)

var (
	ErrNotFound   = errors.New("client: resource not found")
	ErrConflict   = errors.New("client: conflict")
	ErrBadRequest = errors.New("client: bad request")
)

// Response is returned by the API for operations that don't return a
// resource, and on every error.
type Response struct {
	Id      string `json:"id,omitempty"`      // The identifier of the affected resource.
	Message string `json:"message,omitempty"` // Message contains information about the response.
	Error   string `json:"error,omitempty"`   // Error is set if there was an error during the operation.
}

// ActiveTestsResponse lists the runs currently in progress.
type ActiveTestsResponse struct {
	Ids []string `json:"ids"`
}

// Client exposes methods to manage configs and runs of a load-test engine
// through its HTTP API.
type Client struct {
	apiURL string
	client *http.Client
}

// New creates and initializes a new instance of Client.
// Returns an error in case of failure.
func New(serverURL string, client *http.Client) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("client: serverURL should not be empty")
	}
	if _, err := url.ParseRequestURI(serverURL); err != nil {
		return nil, fmt.Errorf("client: invalid serverURL: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		apiURL: strings.TrimSuffix(serverURL, "/"),
		client: client,
	}, nil
}

func (c *Client) apiRequest(method, path string, body io.Reader, out any) error {
	req, err := http.NewRequest(method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("client: failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s request failed: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var res Response
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return fmt.Errorf("client: bad response status code %d", resp.StatusCode)
		}
		return responseError(resp.StatusCode, res.Error)
	}

	if out == nil {
		return nil
	}
	if w, ok := out.(io.Writer); ok {
		_, err = io.Copy(w, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: failed to decode api response: %w", err)
	}
	return nil
}

func responseError(status int, msg string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, msg)
	}
	return fmt.Errorf("client: api request error (%d): %s", status, msg)
}

// CreateConfig stores a new test definition. The returned config carries
// the id assigned by the engine.
func (c *Client) CreateConfig(cfg model.LoadTestConfig) (model.LoadTestConfig, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return model.LoadTestConfig{}, fmt.Errorf("client: failed to marshal config: %w", err)
	}
	var created model.LoadTestConfig
	if err := c.apiRequest(http.MethodPost, "/configs", bytes.NewReader(data), &created); err != nil {
		return model.LoadTestConfig{}, err
	}
	return created, nil
}

// GetConfigs returns all the stored test definitions.
func (c *Client) GetConfigs() ([]model.LoadTestConfig, error) {
	var configs []model.LoadTestConfig
	if err := c.apiRequest(http.MethodGet, "/configs", nil, &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// GetConfig returns the test definition with the given id.
func (c *Client) GetConfig(id string) (*model.LoadTestConfig, error) {
	var cfg model.LoadTestConfig
	if err := c.apiRequest(http.MethodGet, "/configs/"+url.PathEscape(id), nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DeleteConfig removes the test definition with the given id.
func (c *Client) DeleteConfig(id string) error {
	return c.apiRequest(http.MethodDelete, "/configs/"+url.PathEscape(id), nil, nil)
}

// StartTest starts a run of the given config and returns its initial
// result.
func (c *Client) StartTest(configID string) (*model.LoadTestResult, error) {
	var res model.LoadTestResult
	path := "/tests?config_id=" + url.QueryEscape(configID)
	if err := c.apiRequest(http.MethodPost, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// StopTest cancels an active run and returns its final result.
func (c *Client) StopTest(testID string) (*model.LoadTestResult, error) {
	var res model.LoadTestResult
	if err := c.apiRequest(http.MethodPost, "/tests/"+url.PathEscape(testID)+"/stop", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetResult returns the current result of a run.
func (c *Client) GetResult(testID string) (*model.LoadTestResult, error) {
	var res model.LoadTestResult
	if err := c.apiRequest(http.MethodGet, "/tests/"+url.PathEscape(testID), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetHistory returns every stored result.
func (c *Client) GetHistory() ([]model.LoadTestResult, error) {
	var history []model.LoadTestResult
	if err := c.apiRequest(http.MethodGet, "/tests", nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// ActiveTests returns the ids of the runs in progress.
func (c *Client) ActiveTests() ([]string, error) {
	var res ActiveTestsResponse
	if err := c.apiRequest(http.MethodGet, "/tests/active", nil, &res); err != nil {
		return nil, err
	}
	return res.Ids, nil
}

// GetReport returns the report of a run.
func (c *Client) GetReport(testID string) (*report.Report, error) {
	var r report.Report
	if err := c.apiRequest(http.MethodGet, "/tests/"+url.PathEscape(testID)+"/report", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// WriteReport writes the report of a run rendered in the given format
// (text or markdown) to w.
func (c *Client) WriteReport(testID, format string, w io.Writer) error {
	path := "/tests/" + url.PathEscape(testID) + "/report?format=" + url.QueryEscape(format)
	return c.apiRequest(http.MethodGet, path, nil, w)
}

// Version returns the build information of the server.
func (c *Client) Version() (version.VersionInfo, error) {
	var info version.VersionInfo
	err := c.apiRequest(http.MethodGet, "/version", nil, &info)
	return info, err
}
