// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mattermost/ltengine/api/client"
	"github.com/mattermost/ltengine/loadtest"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeResponse(w http.ResponseWriter, status int, resp *client.Response) {
	writeJSON(w, status, resp)
}

// errorStatus maps an engine error to the HTTP status reported to callers.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, loadtest.ErrConfigNotFound), errors.Is(err, loadtest.ErrTestNotFound):
		return http.StatusNotFound
	case errors.Is(err, loadtest.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, loadtest.ErrTestNotRunning):
		return http.StatusConflict
	case errors.Is(err, loadtest.ErrEngineShutdown):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, id string, err error) {
	writeResponse(w, errorStatus(err), &client.Response{
		Id:    id,
		Error: err.Error(),
	})
}
