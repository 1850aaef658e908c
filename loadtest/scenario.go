// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package loadtest

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/mattermost/ltengine/loadtest/executor"
	"github.com/mattermost/ltengine/loadtest/model"
)

// scenarioRunner drives one execution of a scenario. It holds no mutable
// state of its own: every effect is recorded through the aggregator, so the
// same scenario can be run concurrently any number of times.
type scenarioRunner struct {
	exec executor.Executor
	agg  *aggregator
	// fail is called when the runner itself faults.
	fail func(sysErr *model.LoadTestError)
}

// run executes the steps of sc strictly in order, pausing for the think time
// after each non-final step. A failing step does not prevent the following
// ones from running.
func (sr *scenarioRunner) run(ctx context.Context, sc *model.LoadTestScenario) {
	var stepID string
	defer func() {
		if r := recover(); r != nil {
			sr.fail(systemError(time.Now(), fmt.Sprintf("scenario runner panicked: %v", r), map[string]string{
				"scenarioId": sc.ID,
				"stepId":     stepID,
				"stack":      string(debug.Stack()),
			}))
		}
	}()

	thinkTime := time.Duration(sc.ThinkTimeMs) * time.Millisecond
	var prev executor.Observation
	for i := range sc.Steps {
		step := &sc.Steps[i]
		stepID = step.ID
		out := sr.exec.Execute(ctx, step, prev)
		// The engine cancelled the execution, the outcome says nothing
		// about the target.
		if ctx.Err() != nil {
			return
		}
		sr.agg.recordStep(sc.ID, step.ID, out, time.Now())
		prev = out.Observation()

		if i < len(sc.Steps)-1 && thinkTime > 0 {
			if err := executor.Sleep(ctx, thinkTime); err != nil {
				return
			}
		}
	}
}
