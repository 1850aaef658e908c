// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/mattermost/ltengine/loadtest"
	"github.com/mattermost/ltengine/loadtest/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

const (
	streamWriteWait    = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// subscribe returns the live results of the given run. For a run that is no
// longer active the stream carries the stored result only.
func (a *api) subscribe(id string) (<-chan *model.LoadTestResult, func(), error) {
	ch, unsubscribe, err := a.engine.Subscribe(id)
	if err == nil {
		return ch, unsubscribe, nil
	}
	if !errors.Is(err, loadtest.ErrTestNotRunning) {
		return nil, nil, err
	}

	res, err := a.engine.GetResult(id)
	if err != nil {
		return nil, nil, err
	}
	if res == nil {
		return nil, nil, loadtest.ErrTestNotFound
	}
	final := make(chan *model.LoadTestResult, 1)
	final <- res
	close(final)
	return final, func() {}, nil
}

func (a *api) streamTestHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ch, unsubscribe, err := a.subscribe(id)
	if err != nil {
		writeError(w, id, err)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("api: websocket upgrade failed", mlog.String("test_id", id), mlog.Err(err))
		return
	}
	defer conn.Close()

	// The reader only exists to process control frames and notice when the
	// peer goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case res, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "test ended")
				if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
					a.log.Debug("api: could not close stream", mlog.String("test_id", id), mlog.Err(err))
				}
				return
			}
			if err := conn.WriteJSON(res); err != nil {
				a.log.Debug("api: stream write failed", mlog.String("test_id", id), mlog.Err(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
