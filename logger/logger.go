// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package logger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

// Settings holds information used to initialize a new logger.
type Settings struct {
	EnableConsole bool   `default:"true"`
	ConsoleJson   bool   `default:"false"`
	ConsoleLevel  string `default:"INFO" validate:"oneof:{TRACE, DEBUG, INFO, WARN, ERROR}"`
	EnableFile    bool   `default:"false"`
	FileJson      bool   `default:"true"`
	FileLevel     string `default:"INFO" validate:"oneof:{TRACE, DEBUG, INFO, WARN, ERROR}"`
	FileLocation  string `default:"ltengine.log"`
}

func levelsFrom(level string) []mlog.Level {
	levels := []mlog.Level{mlog.LvlPanic, mlog.LvlFatal, mlog.LvlError}
	switch strings.ToUpper(level) {
	case "TRACE":
		levels = append(levels, mlog.LvlWarn, mlog.LvlInfo, mlog.LvlDebug, mlog.LvlTrace)
	case "DEBUG":
		levels = append(levels, mlog.LvlWarn, mlog.LvlInfo, mlog.LvlDebug)
	case "INFO":
		levels = append(levels, mlog.LvlWarn, mlog.LvlInfo)
	case "WARN":
		levels = append(levels, mlog.LvlWarn)
	}
	return levels
}

func format(isJSON bool) string {
	if isJSON {
		return "json"
	}
	return "plain"
}

func targets(logSettings *Settings) (mlog.LoggerConfiguration, error) {
	cfg := mlog.LoggerConfiguration{}
	if logSettings.EnableConsole {
		opts, err := json.Marshal(map[string]string{"out": "stdout"})
		if err != nil {
			return nil, err
		}
		cfg["console"] = mlog.TargetCfg{
			Type:         "console",
			Format:       format(logSettings.ConsoleJson),
			Options:      opts,
			Levels:       levelsFrom(logSettings.ConsoleLevel),
			MaxQueueSize: 1000,
		}
	}
	if logSettings.EnableFile {
		opts, err := json.Marshal(map[string]any{"filename": logSettings.FileLocation, "compress": true})
		if err != nil {
			return nil, err
		}
		cfg["file"] = mlog.TargetCfg{
			Type:         "file",
			Format:       format(logSettings.FileJson),
			Options:      opts,
			Levels:       levelsFrom(logSettings.FileLevel),
			MaxQueueSize: 1000,
		}
	}
	return cfg, nil
}

// New returns a newly created and initialized logger with the given settings.
func New(logSettings *Settings) (*mlog.Logger, error) {
	log, err := mlog.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	cfg, err := targets(logSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger targets: %w", err)
	}
	if err := log.ConfigureTargets(cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	return log, nil
}

// Init initializes the global logger with the given settings.
func Init(logSettings *Settings) (*mlog.Logger, error) {
	log, err := New(logSettings)
	if err != nil {
		return nil, err
	}

	// Redirect default golang logger to this logger
	log.RedirectStdLog(mlog.LvlInfo)

	// Use this app logger as the global logger
	mlog.InitGlobalLogger(log)

	return log, nil
}
