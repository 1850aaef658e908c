// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/mattermost/ltengine/api/client"
	"github.com/mattermost/ltengine/loadtest"
	"github.com/mattermost/ltengine/loadtest/model"

	"github.com/gorilla/mux"
	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"gopkg.in/yaml.v3"
)

const maxConfigSize = 1 << 20

// decodeConfig reads a LoadTestConfig encoded as JSON, or as YAML when the
// request says so.
func decodeConfig(r *http.Request) (model.LoadTestConfig, error) {
	var cfg model.LoadTestConfig
	body := io.LimitReader(r.Body, maxConfigSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		dec := yaml.NewDecoder(body)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func (a *api) createConfigHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := decodeConfig(r)
	if err != nil {
		writeResponse(w, http.StatusBadRequest, &client.Response{
			Error: fmt.Sprintf("could not read request: %s", err),
		})
		return
	}

	created, err := a.engine.CreateConfig(cfg)
	if err != nil {
		writeError(w, "", err)
		return
	}
	a.log.Debug("api: config created", mlog.String("config_id", created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (a *api) getConfigsHandler(w http.ResponseWriter, r *http.Request) {
	configs, err := a.engine.GetConfigs()
	if err != nil {
		writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

func (a *api) getConfigHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cfg, err := a.engine.GetConfig(id)
	if err != nil {
		writeError(w, id, err)
		return
	}
	if cfg == nil {
		writeError(w, id, loadtest.ErrConfigNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *api) deleteConfigHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.engine.DeleteConfig(id); err != nil {
		writeError(w, id, err)
		return
	}
	writeResponse(w, http.StatusOK, &client.Response{
		Id:      id,
		Message: "config deleted",
	})
}
