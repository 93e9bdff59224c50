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

	"github.com/google/uuid"

	"linqgate/gateway/linq"
	"linqgate/gateway/shared/logger"
)

// Step status states. Transitions are queued -> processing -> completed or
// failed; queued -> cancelled. Completed, failed and cancelled are terminal.
const (
	StepQueued     = "queued"
	StepProcessing = "processing"
	StepCompleted  = "completed"
	StepFailed     = "failed"
	StepCancelled  = "cancelled"
)

// AsyncStepTask is the durable unit of work for one async step. It carries
// a snapshot of every earlier step's result so the worker can resolve the
// step's placeholders without the original request.
type AsyncStepTask struct {
	ID          string                 `json:"id"`
	WorkflowID  string                 `json:"workflowId"`
	Team        string                 `json:"team"`
	Step        linq.WorkflowStep      `json:"step"`
	StepResults map[int]interface{}    `json:"stepResults,omitempty"`
	Params      map[string]interface{} `json:"params,omitempty"`
	EnqueuedAt  time.Time              `json:"enqueuedAt"`
}

// StepStatusRecord is the observable state of one async step.
type StepStatusRecord struct {
	ID         string      `json:"id"`
	WorkflowID string      `json:"workflowId"`
	Step       int         `json:"step"`
	Target     string      `json:"target"`
	Status     string      `json:"status"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	EnqueuedAt time.Time   `json:"enqueuedAt"`
	StartedAt  *time.Time  `json:"startedAt,omitempty"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// TaskQueue is the FIFO transport for async step tasks.
type TaskQueue interface {
	Push(ctx context.Context, payload []byte) error
	// Pop removes and returns the oldest task, or (nil, false, nil) when
	// the queue is empty.
	Pop(ctx context.Context) ([]byte, bool, error)
	Len(ctx context.Context) (int64, error)
}

// StatusStore persists step status records.
type StatusStore interface {
	Save(ctx context.Context, rec *StepStatusRecord) error
	// Get returns (nil, nil) when no record exists.
	Get(ctx context.Context, id string) (*StepStatusRecord, error)
	// ForWorkflow lists the status records belonging to a workflow.
	ForWorkflow(ctx context.Context, workflowID string) ([]*StepStatusRecord, error)
}

// Queue coordinates enqueueing and status management for async steps.
type Queue struct {
	tasks  TaskQueue
	status StatusStore
	logger *logger.Logger
}

func NewQueue(tasks TaskQueue, status StatusStore, log *logger.Logger) *Queue {
	return &Queue{tasks: tasks, status: status, logger: log}
}

// Enqueue records the task as queued, then pushes it onto the queue. The
// status record is written first so a consumer can never pop a task whose
// status does not exist yet.
func (q *Queue) Enqueue(ctx context.Context, task *AsyncStepTask) (*StepStatusRecord, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	rec := &StepStatusRecord{
		ID:         task.ID,
		WorkflowID: task.WorkflowID,
		Step:       task.Step.Step,
		Target:     task.Step.Target,
		Status:     StepQueued,
		EnqueuedAt: task.EnqueuedAt,
		UpdatedAt:  task.EnqueuedAt,
	}
	if err := q.status.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record step status: %w", err)
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to encode async step task: %w", err)
	}
	if err := q.tasks.Push(ctx, payload); err != nil {
		return nil, fmt.Errorf("failed to enqueue step %d of workflow %s: %w",
			task.Step.Step, task.WorkflowID, err)
	}

	q.logger.Info(task.Team, task.WorkflowID,
		fmt.Sprintf("Enqueued async step %d (%s) as task %s", task.Step.Step, task.Step.Target, task.ID), nil)
	return rec, nil
}

// Status returns the record for a task ID, or a NotFoundError.
func (q *Queue) Status(ctx context.Context, id string) (*StepStatusRecord, error) {
	rec, err := q.status.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &linq.NotFoundError{Kind: "async step", ID: id}
	}
	return rec, nil
}

// ForWorkflow lists every tracked step status for a workflow.
func (q *Queue) ForWorkflow(ctx context.Context, workflowID string) ([]*StepStatusRecord, error) {
	return q.status.ForWorkflow(ctx, workflowID)
}

// Cancel marks a task cancelled. A completed task stays completed; the
// cancel is a no-op that returns the record unchanged. Cancelling does not
// abort a call the worker has already dispatched, and the task body stays
// in the queue; the worker observes the cancelled status and discards it.
func (q *Queue) Cancel(ctx context.Context, id string) (*StepStatusRecord, error) {
	rec, err := q.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == StepCompleted {
		return rec, nil
	}
	rec.Status = StepCancelled
	rec.UpdatedAt = time.Now().UTC()
	if err := q.status.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to cancel task %s: %w", id, err)
	}
	return rec, nil
}

// StatusByStep returns the status record for a workflow step addressed by
// (workflowID, step number). A step re-enqueued across executions has
// several records; the most recently enqueued one wins.
func (q *Queue) StatusByStep(ctx context.Context, workflowID string, step int) (*StepStatusRecord, error) {
	recs, err := q.status.ForWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	var latest *StepStatusRecord
	for _, rec := range recs {
		if rec.Step != step {
			continue
		}
		if latest == nil || rec.EnqueuedAt.After(latest.EnqueuedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, &linq.NotFoundError{Kind: "async step", ID: fmt.Sprintf("%s:%d", workflowID, step)}
	}
	return latest, nil
}

// CancelByStep cancels the latest task for (workflowID, step number).
func (q *Queue) CancelByStep(ctx context.Context, workflowID string, step int) (*StepStatusRecord, error) {
	rec, err := q.StatusByStep(ctx, workflowID, step)
	if err != nil {
		return nil, err
	}
	return q.Cancel(ctx, rec.ID)
}

// Depth reports how many tasks are waiting.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.tasks.Len(ctx)
}
