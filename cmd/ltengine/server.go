// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattermost/ltengine/api"
	"github.com/mattermost/ltengine/loadtest"
	"github.com/mattermost/ltengine/logger"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func RunServerCmdF(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	configFilePath, _ := cmd.Flags().GetString("config")

	cfg, err := loadtest.ReadConfig(configFilePath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	log, err := logger.Init(&cfg.LogSettings)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Shutdown()

	engine, err := loadtest.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           api.SetupAPIRouter(engine, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("API server started, listening on", mlog.Int("port", port))
		errChan <- server.ListenAndServe()
	}()

	select {
	case err = <-errChan:
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if sErr := server.Shutdown(shutdownCtx); sErr != nil {
		log.Warn("could not shut down API server", mlog.Err(sErr))
	}
	if sErr := engine.Shutdown(shutdownCtx); sErr != nil {
		log.Error("could not shut down engine", mlog.Err(sErr))
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
