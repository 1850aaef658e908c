// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package api

import (
	"fmt"
	"net/http"

	"github.com/mattermost/ltengine/api/client"
	"github.com/mattermost/ltengine/loadtest"

	"github.com/gorilla/mux"
)

func (a *api) startTestHandler(w http.ResponseWriter, r *http.Request) {
	configID := r.FormValue("config_id")
	if configID == "" {
		writeResponse(w, http.StatusBadRequest, &client.Response{
			Error: "missing config_id parameter",
		})
		return
	}

	res, err := a.engine.StartTest(configID)
	if err != nil {
		writeError(w, configID, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *api) stopTestHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := a.engine.StopTest(id)
	if err != nil {
		writeError(w, id, err)
		return
	}
	if res == nil {
		writeResponse(w, http.StatusNotFound, &client.Response{
			Id:    id,
			Error: fmt.Sprintf("no active test with id %s", id),
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) getResultHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := a.engine.GetResult(id)
	if err != nil {
		writeError(w, id, err)
		return
	}
	if res == nil {
		writeError(w, id, loadtest.ErrTestNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) getHistoryHandler(w http.ResponseWriter, r *http.Request) {
	history, err := a.engine.GetHistory()
	if err != nil {
		writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *api) getActiveTestsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, client.ActiveTestsResponse{Ids: a.engine.ActiveTests()})
}

func (a *api) getReportHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rep, err := a.engine.GenerateReport(id)
	if err != nil {
		writeError(w, id, err)
		return
	}
	if rep == nil {
		writeError(w, id, loadtest.ErrTestNotFound)
		return
	}

	switch format := r.FormValue("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		rep.WriteMarkdown(w)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		rep.WriteText(w)
	default:
		writeResponse(w, http.StatusBadRequest, &client.Response{
			Id:    id,
			Error: fmt.Sprintf("unknown report format %q", format),
		})
	}
}
