// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package api

import (
	"net/http"
	"net/http/pprof"

	"github.com/mattermost/ltengine/loadtest"
	"github.com/mattermost/ltengine/version"

	"github.com/gorilla/mux"
	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

// api keeps track of the load-test API server state.
type api struct {
	engine *loadtest.Engine
	log    *mlog.Logger
}

func (a *api) pprofIndexHandler(w http.ResponseWriter, r *http.Request) {
	html := `
		<html>
			<body>
				<div><a href="/debug/pprof/">Profiling Root</a></div>
				<div><a href="/debug/pprof/heap">Heap profile</a></div>
				<div><a href="/debug/pprof/profile">CPU profile</a></div>
				<div><a href="/debug/pprof/trace">Trace profile</a></div>
			</body>
		</html>
	`
	w.Write([]byte(html))
}

func (a *api) versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo())
}

// SetupAPIRouter creates a router to handle load test API requests served
// by the given engine.
func SetupAPIRouter(engine *loadtest.Engine, log *mlog.Logger) *mux.Router {
	a := api{
		engine: engine,
		log:    log,
	}

	router := mux.NewRouter()

	// Test definitions.
	c := router.PathPrefix("/configs").Subrouter()
	c.HandleFunc("", a.createConfigHandler).Methods("POST")
	c.HandleFunc("", a.getConfigsHandler).Methods("GET")
	c.HandleFunc("/{id}", a.getConfigHandler).Methods("GET")
	c.HandleFunc("/{id}", a.deleteConfigHandler).Methods("DELETE")

	// Runs.
	t := router.PathPrefix("/tests").Subrouter()
	t.HandleFunc("", a.startTestHandler).Methods("POST")
	t.HandleFunc("", a.getHistoryHandler).Methods("GET")
	t.HandleFunc("/active", a.getActiveTestsHandler).Methods("GET")
	t.HandleFunc("/{id}", a.getResultHandler).Methods("GET")
	t.HandleFunc("/{id}/stop", a.stopTestHandler).Methods("POST")
	t.HandleFunc("/{id}/report", a.getReportHandler).Methods("GET")
	t.HandleFunc("/{id}/ws", a.streamTestHandler).Methods("GET")

	// Debug endpoint.
	p := router.PathPrefix("/debug/pprof").Subrouter()
	p.HandleFunc("/", a.pprofIndexHandler).Methods("GET")
	p.Handle("/heap", pprof.Handler("heap")).Methods("GET")
	p.HandleFunc("/profile", pprof.Profile).Methods("GET")
	p.HandleFunc("/trace", pprof.Trace).Methods("GET")

	// Metrics endpoint.
	router.Handle("/metrics", engine.Metrics().Handler())

	router.HandleFunc("/version", a.versionHandler).Methods("GET")

	return router
}
