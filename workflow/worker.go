// Copyright 2025 LinqGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"linqgate/gateway/linq"
	"linqgate/gateway/shared/logger"
)

// Worker drains the async step queue. One task is popped per poll tick and
// processed to completion before the next tick is honored.
type Worker struct {
	queue    *Queue
	runner   TargetRunner
	store    ExecutionStore
	interval time.Duration
	logger   *logger.Logger
}

func NewWorker(queue *Queue, runner TargetRunner, store ExecutionStore, interval time.Duration, log *logger.Logger) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{queue: queue, runner: runner, store: store, interval: interval, logger: log}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("", "", fmt.Sprintf("Async step worker started, polling every %v", w.interval), nil)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("", "", "Async step worker stopped", nil)
			return
		case <-ticker.C:
			if err := w.ProcessOne(ctx); err != nil {
				w.logger.Error("", "", fmt.Sprintf("Async step processing failed: %v", err), nil)
			}
		}
	}
}

// ProcessOne pops and processes a single task. Returns nil when the queue
// is empty.
func (w *Worker) ProcessOne(ctx context.Context) error {
	payload, ok, err := w.queue.tasks.Pop(ctx)
	if err != nil {
		return fmt.Errorf("failed to pop async step: %w", err)
	}
	if !ok {
		return nil
	}

	var task AsyncStepTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("failed to decode async step task: %w", err)
	}
	return w.process(ctx, &task)
}

func (w *Worker) process(ctx context.Context, task *AsyncStepTask) error {
	rec, err := w.queue.status.Get(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("failed to load status for task %s: %w", task.ID, err)
	}
	if rec == nil {
		// Status expired while the task sat in the queue.
		w.logger.Warn(task.Team, task.WorkflowID,
			fmt.Sprintf("Dropping task %s: status record missing", task.ID), nil)
		return nil
	}
	// Processing or finished tasks are not run again; a cancelled task is
	// discarded here.
	if rec.Status != StepQueued {
		w.logger.Info(task.Team, task.WorkflowID,
			fmt.Sprintf("Skipping task %s in status %s", task.ID, rec.Status), nil)
		return nil
	}

	now := time.Now().UTC()
	rec.Status = StepProcessing
	rec.StartedAt = &now
	rec.UpdatedAt = now
	if err := w.queue.status.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to mark task %s processing: %w", task.ID, err)
	}

	stepCtx := linq.NewStepContext(task.Params)
	for n, r := range task.StepResults {
		stepCtx.StepResults[n] = r
	}
	step := task.Step
	step.Params = linq.ResolveMap(step.Params, stepCtx)
	step.Payload = linq.Resolve(step.Payload, stepCtx)

	started := time.Now()
	result, err := w.runner.RunStep(ctx, task.Team, step)
	if err != nil {
		result = linq.ErrorValue(err.Error())
	}

	finished := time.Now().UTC()
	rec.FinishedAt = &finished
	rec.UpdatedAt = finished
	if msg, isErr := linq.ErrorResult(result); isErr {
		rec.Status = StepFailed
		rec.Error = msg
		w.logger.Error(task.Team, task.WorkflowID,
			fmt.Sprintf("Async step %d (task %s) failed: %s", step.Step, task.ID, msg), nil)
	} else {
		rec.Status = StepCompleted
		rec.Result = result
		w.logger.InfoWithDuration(task.Team, task.WorkflowID,
			fmt.Sprintf("Async step %d (task %s) completed", step.Step, task.ID),
			float64(time.Since(started).Milliseconds()), nil)
	}
	if err := w.queue.status.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to record result for task %s: %w", task.ID, err)
	}

	w.backPatchExecution(ctx, task, rec, started)
	return nil
}

// backPatchExecution folds the async step's outcome into the workflow's
// most recent execution record: the step's queued placeholder result and
// metadata entry are replaced with the real outcome.
func (w *Worker) backPatchExecution(ctx context.Context, task *AsyncStepTask, rec *StepStatusRecord, started time.Time) {
	exec, err := w.store.Latest(ctx, task.WorkflowID)
	if err != nil || exec == nil {
		if err != nil {
			w.logger.Warn(task.Team, task.WorkflowID,
				fmt.Sprintf("Failed to load execution for back-patch: %v", err), nil)
		}
		return
	}

	status := linq.StatusSuccess
	var stepResult interface{} = rec.Result
	if rec.Status == StepFailed {
		status = linq.StatusError
		stepResult = linq.ErrorValue(rec.Error)
		exec.Status = ExecutionError
	}

	for idx, meta := range exec.Metadata {
		if meta.Step == task.Step.Step && meta.Async {
			exec.Metadata[idx].Status = status
			exec.Metadata[idx].DurationMs = time.Since(started).Milliseconds()
			exec.Metadata[idx].ExecutedAt = started.UTC()
		}
	}
	exec.Result = patchWorkflowResult(exec.Result, task.Step.Step, stepResult)
	exec.UpdatedAt = time.Now().UTC()

	if err := w.store.Save(ctx, exec); err != nil {
		w.logger.Warn(task.Team, task.WorkflowID,
			fmt.Sprintf("Failed to back-patch execution %s: %v", exec.ID, err), nil)
	}
}

// patchWorkflowResult swaps one step's result inside a stored workflow
// result. The in-memory store hands back the typed struct; records loaded
// from a document store come back as generic maps, so both shapes are
// handled.
func patchWorkflowResult(stored interface{}, stepNum int, stepResult interface{}) interface{} {
	switch wr := stored.(type) {
	case *linq.WorkflowResult:
		for idx, sr := range wr.Steps {
			if sr.Step == stepNum {
				wr.Steps[idx].Result = stepResult
			}
		}
		if len(wr.Steps) > 0 {
			wr.FinalResult = linq.FinalResult(wr.Steps[len(wr.Steps)-1].Result)
		}
		return wr
	case map[string]interface{}:
		steps, ok := wr["steps"].([]interface{})
		if !ok || len(steps) == 0 {
			return wr
		}
		for _, raw := range steps {
			step, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if n, ok := numericStep(step["step"]); ok && n == stepNum {
				step["result"] = stepResult
			}
		}
		if last, ok := steps[len(steps)-1].(map[string]interface{}); ok {
			wr["finalResult"] = linq.FinalResult(last["result"])
		}
		return wr
	default:
		return stored
	}
}

// numericStep copes with the number types different decoders produce.
func numericStep(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
