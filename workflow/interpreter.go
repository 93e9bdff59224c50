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
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"linqgate/gateway/linq"
	"linqgate/gateway/shared/logger"
)

// TargetRunner executes one resolved step against its target. The gateway
// dispatcher implements this; the interpreter and the async worker stay
// ignorant of how targets are reached.
type TargetRunner interface {
	RunStep(ctx context.Context, team string, step linq.WorkflowStep) (interface{}, error)
}

// Interpreter runs workflows synchronously, delegating async steps to the
// queue.
type Interpreter struct {
	runner TargetRunner
	queue  *Queue
	store  ExecutionStore
	logger *logger.Logger
}

func NewInterpreter(runner TargetRunner, queue *Queue, store ExecutionStore, log *logger.Logger) *Interpreter {
	return &Interpreter{runner: runner, queue: queue, store: store, logger: log}
}

// Execute runs every step of the request's workflow in ascending step
// order. Each step's params and payload are resolved against earlier step
// results and the request's global params before the step runs. The first
// error-shaped step result aborts the run; metadata for every attempted
// step is kept on the response either way.
func (i *Interpreter) Execute(ctx context.Context, team string, req *linq.Request) (*linq.Response, error) {
	workflowID := req.Query.WorkflowID
	if workflowID == "" {
		workflowID = uuid.New().String()
	}

	exec := i.initializeExecution(ctx, team, workflowID, req.ExecutedBy)

	steps := make([]linq.WorkflowStep, len(req.Query.Workflow))
	copy(steps, req.Query.Workflow)
	sort.Slice(steps, func(a, b int) bool { return steps[a].Step < steps[b].Step })

	stepCtx := linq.NewStepContext(req.Query.Params)
	var metadata []linq.StepMetadata
	var results []linq.StepResult
	var lastResult interface{}

	for _, step := range steps {
		started := time.Now().UTC()

		resolved := step
		resolved.Params = linq.ResolveMap(step.Params, stepCtx)
		resolved.Payload = linq.Resolve(step.Payload, stepCtx)

		// Global params are visible to every step; step params win on
		// collision.
		for k, v := range req.Query.Params {
			if _, ok := resolved.Params[k]; !ok {
				resolved.Params[k] = v
			}
		}

		var result interface{}
		var status string

		if step.Async {
			rec, err := i.enqueue(ctx, team, workflowID, resolved, stepCtx, req.Query.Params)
			if err != nil {
				metadata = append(metadata, stepMeta(step, "error", started))
				msg := fmt.Sprintf("failed to enqueue step %d: %v", step.Step, err)
				results = append(results, linq.StepResult{
					Step: step.Step, Target: step.Target, Result: linq.ErrorValue(msg),
				})
				partial := &linq.WorkflowResult{Steps: results, FinalResult: msg}
				i.finalizeExecution(ctx, exec, ExecutionError, partial, metadata)
				return errorResponse(team, metadata, partial), nil
			}
			result = map[string]interface{}{
				"status":     StepQueued,
				"taskId":     rec.ID,
				"workflowId": workflowID,
			}
			status = StepQueued
		} else {
			var err error
			result, err = i.runner.RunStep(ctx, team, resolved)
			if err != nil {
				result = linq.ErrorValue(err.Error())
			}
			if msg, isErr := linq.ErrorResult(result); isErr {
				metadata = append(metadata, stepMeta(step, linq.StatusError, started))
				i.logger.Error(team, workflowID,
					fmt.Sprintf("Workflow step %d failed: %s", step.Step, msg), nil)
				stepErr := &linq.StepError{Step: step.Step, Message: msg}
				results = append(results, linq.StepResult{
					Step: step.Step, Target: step.Target, Result: result,
				})
				partial := &linq.WorkflowResult{Steps: results, FinalResult: stepErr.Error()}
				i.finalizeExecution(ctx, exec, ExecutionError, partial, metadata)
				return errorResponse(team, metadata, partial), nil
			}
			status = linq.StatusSuccess
		}

		stepCtx.StepResults[step.Step] = result
		lastResult = result
		results = append(results, linq.StepResult{Step: step.Step, Target: step.Target, Result: result})
		metadata = append(metadata, stepMeta(step, status, started))
	}

	workflowResult := &linq.WorkflowResult{
		Steps:       results,
		FinalResult: linq.FinalResult(lastResult),
	}
	i.finalizeExecution(ctx, exec, ExecutionSuccess, workflowResult, metadata)

	return &linq.Response{
		Result: workflowResult,
		Metadata: linq.Metadata{
			Source:           "workflow",
			Status:           linq.StatusSuccess,
			Team:             team,
			WorkflowMetadata: metadata,
		},
	}, nil
}

// enqueue snapshots the prior step results into the task; the worker
// resolves against the snapshot, not live state.
func (i *Interpreter) enqueue(ctx context.Context, team, workflowID string, step linq.WorkflowStep, stepCtx *linq.StepContext, params map[string]interface{}) (*StepStatusRecord, error) {
	snapshot := make(map[int]interface{}, len(stepCtx.StepResults))
	for k, v := range stepCtx.StepResults {
		snapshot[k] = v
	}
	return i.queue.Enqueue(ctx, &AsyncStepTask{
		WorkflowID:  workflowID,
		Team:        team,
		Step:        step,
		StepResults: snapshot,
		Params:      params,
	})
}

// initializeExecution records the run before the first step so a crash
// mid-workflow still leaves a visible running record. Tracking failures
// are logged, never fatal.
func (i *Interpreter) initializeExecution(ctx context.Context, team, workflowID, executedBy string) *ExecutionRecord {
	exec := &ExecutionRecord{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Team:       team,
		ExecutedBy: executedBy,
		Status:     ExecutionRunning,
		StartedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := i.store.Save(ctx, exec); err != nil {
		i.logger.Warn(team, workflowID, fmt.Sprintf("Failed to record execution start: %v", err), nil)
	}
	return exec
}

func (i *Interpreter) finalizeExecution(ctx context.Context, exec *ExecutionRecord, status string, result interface{}, metadata []linq.StepMetadata) {
	now := time.Now().UTC()
	exec.Status = status
	exec.Result = result
	exec.Metadata = metadata
	exec.FinishedAt = &now
	exec.UpdatedAt = now
	i.reconcileAsyncSteps(ctx, exec)
	if err := i.store.Save(ctx, exec); err != nil {
		i.logger.Warn(exec.Team, exec.WorkflowID, fmt.Sprintf("Failed to record execution result: %v", err), nil)
	}
}

// reconcileAsyncSteps folds any async step the worker already finished into
// the record before the terminal save. The worker can complete a task
// between its enqueue and this write; without the fold this save would
// overwrite the worker's back-patch with the queued placeholder.
func (i *Interpreter) reconcileAsyncSteps(ctx context.Context, exec *ExecutionRecord) {
	recs, err := i.queue.ForWorkflow(ctx, exec.WorkflowID)
	if err != nil || len(recs) == 0 {
		return
	}
	byStep := make(map[int]*StepStatusRecord)
	for _, rec := range recs {
		if rec.Status != StepCompleted && rec.Status != StepFailed {
			continue
		}
		if prev, ok := byStep[rec.Step]; !ok || rec.EnqueuedAt.After(prev.EnqueuedAt) {
			byStep[rec.Step] = rec
		}
	}
	for idx := range exec.Metadata {
		meta := &exec.Metadata[idx]
		if !meta.Async {
			continue
		}
		rec, ok := byStep[meta.Step]
		if !ok {
			continue
		}
		if rec.Status == StepFailed {
			meta.Status = linq.StatusError
			exec.Result = patchWorkflowResult(exec.Result, meta.Step, linq.ErrorValue(rec.Error))
			exec.Status = ExecutionError
			continue
		}
		meta.Status = linq.StatusSuccess
		exec.Result = patchWorkflowResult(exec.Result, meta.Step, rec.Result)
	}
}

func stepMeta(step linq.WorkflowStep, status string, started time.Time) linq.StepMetadata {
	return linq.StepMetadata{
		Step:       step.Step,
		Status:     status,
		DurationMs: time.Since(started).Milliseconds(),
		Target:     step.Target,
		ExecutedAt: started,
		Async:      step.Async,
	}
}

// errorResponse carries the partial workflow result. Callers can see which
// steps ran and where the run stopped; FinalResult holds the failure message.
func errorResponse(team string, metadata []linq.StepMetadata, partial *linq.WorkflowResult) *linq.Response {
	return &linq.Response{
		Result: partial,
		Metadata: linq.Metadata{
			Source:           "workflow",
			Status:           linq.StatusError,
			Team:             team,
			WorkflowMetadata: metadata,
		},
	}
}
