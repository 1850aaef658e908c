// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mattermost/ltengine/loadtest/model"

	"github.com/gorilla/websocket"
)

func (c *Client) streamURL(testID string) string {
	u := c.apiURL + "/tests/" + url.PathEscape(testID) + "/ws"
	if strings.HasPrefix(u, "https://") {
		return "wss://" + strings.TrimPrefix(u, "https://")
	}
	return "ws://" + strings.TrimPrefix(u, "http://")
}

// Stream follows a run over a websocket connection and calls fn with every
// live result received. It returns the last result once the server closes
// the stream, which happens when the run ends.
func (c *Client) Stream(ctx context.Context, testID string, fn func(res *model.LoadTestResult)) (*model.LoadTestResult, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL(testID), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: test %s", ErrNotFound, testID)
		}
		return nil, fmt.Errorf("client: could not connect to stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	var last *model.LoadTestResult
	for {
		var res model.LoadTestResult
		if err := conn.ReadJSON(&res); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return last, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, ctxErr
			}
			return last, fmt.Errorf("client: could not read from stream: %w", err)
		}
		last = &res
		if fn != nil {
			fn(last)
		}
	}
}
