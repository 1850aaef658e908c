// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package loadtest

import (
	"errors"
)

var (
	ErrConfigNotFound = errors.New("config not found")
	ErrTestNotFound   = errors.New("test not found")
	ErrTestNotRunning = errors.New("test is not running")
	ErrEngineShutdown = errors.New("engine is shut down")
	ErrInvalidConfig  = errors.New("invalid config")
)
