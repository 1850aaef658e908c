// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mattermost/ltengine/loadtest/model"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMaxConns is the connection pool size used when none is configured.
const DefaultMaxConns = 256

// NewTransport returns an http.Transport meant to be shared amongst all the
// virtual users of an engine.
func NewTransport(maxConns int) *http.Transport {
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:       maxConns,
		MaxIdleConns:          maxConns,
		MaxIdleConnsPerHost:   maxConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func (e *StepExecutor) resolveURL(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return e.baseURL + endpoint
}

func (e *StepExecutor) apiCall(ctx context.Context, step *model.LoadTestStep) Outcome {
	ctx, cancel := context.WithTimeout(ctx, step.Timeout())
	defer cancel()

	method := strings.ToUpper(step.Method)
	if method == "" {
		method = http.MethodGet
	}
	target := e.resolveURL(step.Endpoint)

	var body io.Reader
	if step.Payload != "" {
		body = strings.NewReader(step.Payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Outcome{Error: &model.LoadTestError{
			ErrorType: model.ErrorConnection,
			Message:   fmt.Sprintf("failed to build request: %s", err),
		}}
	}
	for k, v := range step.Headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		out := Outcome{Latency: time.Since(start)}
		if isTimeout(err) {
			e.incHTTPTimeouts(req.URL.Path, method)
			out.Error = &model.LoadTestError{
				ErrorType: model.ErrorTimeout,
				Message:   fmt.Sprintf("request timed out after %s", step.Timeout()),
				Details:   map[string]string{"url": target, "method": method},
			}
			return out
		}
		out.Error = &model.LoadTestError{
			ErrorType: model.ErrorConnection,
			Message:   err.Error(),
			Details:   map[string]string{"url": target, "method": method},
		}
		return out
	}
	_, copyErr := io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	latency := time.Since(start)
	e.observeHTTPRequestTimes(latency.Seconds())

	out := Outcome{Latency: latency, StatusCode: resp.StatusCode, Success: true}
	if copyErr != nil && isTimeout(copyErr) {
		e.incHTTPTimeouts(req.URL.Path, method)
		out.Success = false
		out.Error = &model.LoadTestError{
			ErrorType: model.ErrorTimeout,
			Message:   fmt.Sprintf("response body timed out after %s", step.Timeout()),
			Details:   map[string]string{"url": target, "method": method},
		}
		return out
	}
	if step.ExpectedStatus != 0 && resp.StatusCode != step.ExpectedStatus {
		e.incHTTPErrors(req.URL.Path, method, resp.StatusCode)
		out.Success = false
		out.Error = &model.LoadTestError{
			ErrorType: model.ErrorHTTP,
			Message:   fmt.Sprintf("unexpected status code %d, expected %d", resp.StatusCode, step.ExpectedStatus),
			Details: map[string]string{
				"url":        target,
				"method":     method,
				"statusCode": strconv.Itoa(resp.StatusCode),
			},
		}
	}
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var idSegmentRe = regexp.MustCompile("^(?:[a-zA-Z0-9-]{26,36}|[0-9]+)$")

// simplifyPath keeps label cardinality bounded by collapsing the path
// segments that look like ids.
func simplifyPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if idSegmentRe.MatchString(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func (e *StepExecutor) observeHTTPRequestTimes(elapsed float64) {
	if e.metrics != nil {
		e.metrics.HTTPRequestTimes.Observe(elapsed)
	}
}

func (e *StepExecutor) incHTTPErrors(path, method string, status int) {
	if e.metrics != nil {
		e.metrics.HTTPErrors.With(prometheus.Labels{
			"path":        simplifyPath(path),
			"method":      method,
			"status_code": strconv.Itoa(status),
		}).Inc()
	}
}

func (e *StepExecutor) incHTTPTimeouts(path, method string) {
	if e.metrics != nil {
		e.metrics.HTTPTimeouts.With(prometheus.Labels{
			"path":   simplifyPath(path),
			"method": method,
		}).Inc()
	}
}
