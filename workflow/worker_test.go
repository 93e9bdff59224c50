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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linqgate/gateway/linq"
	"linqgate/gateway/shared/logger"
)

// fakeRunner returns canned results per target and records every step it ran.
type fakeRunner struct {
	results map[string]interface{}
	err     error
	ran     []linq.WorkflowStep
	teams   []string
}

func (f *fakeRunner) RunStep(ctx context.Context, team string, step linq.WorkflowStep) (interface{}, error) {
	f.ran = append(f.ran, step)
	f.teams = append(f.teams, team)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[step.Target]; ok {
		return r, nil
	}
	return map[string]interface{}{"ok": true}, nil
}

func testWorker(t *testing.T, runner *fakeRunner) (*Worker, *Queue, *MemoryExecutionStore) {
	t.Helper()
	q, _ := testQueue(t)
	store := NewMemoryExecutionStore()
	w := NewWorker(q, runner, store, time.Second, logger.New("worker-test"))
	return w, q, store
}

func TestWorkerCompletesQueuedStep(t *testing.T) {
	runner := &fakeRunner{results: map[string]interface{}{
		"inventory-service": map[string]interface{}{"orderId": "o-1"},
	}}
	w, q, _ := testWorker(t, runner)
	ctx := context.Background()

	rec, err := q.Enqueue(ctx, asyncTask("wf-1", 1))
	require.NoError(t, err)

	require.NoError(t, w.ProcessOne(ctx))

	got, err := q.Status(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StepCompleted, got.Status)
	assert.Equal(t, map[string]interface{}{"orderId": "o-1"}, got.Result)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.FinishedAt)
	// Team context is restored from the task, not the worker's context.
	require.Len(t, runner.ran, 1)
	assert.Equal(t, []string{"team-a"}, runner.teams)
}

func TestWorkerEmptyQueueIsNoop(t *testing.T) {
	w, _, _ := testWorker(t, &fakeRunner{})
	assert.NoError(t, w.ProcessOne(context.Background()))
}

func TestWorkerMarksErrorShapedResultFailed(t *testing.T) {
	runner := &fakeRunner{results: map[string]interface{}{
		"inventory-service": linq.ErrorValue("backend is down"),
	}}
	w, q, _ := testWorker(t, runner)
	ctx := context.Background()

	rec, err := q.Enqueue(ctx, asyncTask("wf-1", 1))
	require.NoError(t, err)

	require.NoError(t, w.ProcessOne(ctx))

	got, err := q.Status(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StepFailed, got.Status)
	assert.Equal(t, "backend is down", got.Error)
	assert.Nil(t, got.Result)
}

func TestWorkerSkipsFinishedTask(t *testing.T) {
	runner := &fakeRunner{}
	w, q, _ := testWorker(t, runner)
	ctx := context.Background()

	rec, err := q.Enqueue(ctx, asyncTask("wf-1", 1))
	require.NoError(t, err)

	rec.Status = StepCompleted
	require.NoError(t, q.status.Save(ctx, rec))

	require.NoError(t, w.ProcessOne(ctx))
	assert.Empty(t, runner.ran)

	got, err := q.Status(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StepCompleted, got.Status)
}

func TestWorkerDiscardsCancelledTask(t *testing.T) {
	runner := &fakeRunner{}
	w, q, _ := testWorker(t, runner)
	ctx := context.Background()

	rec, err := q.Enqueue(ctx, asyncTask("wf-1", 1))
	require.NoError(t, err)
	_, err = q.Cancel(ctx, rec.ID)
	require.NoError(t, err)

	require.NoError(t, w.ProcessOne(ctx))
	assert.Empty(t, runner.ran)

	got, err := q.Status(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StepCancelled, got.Status)
}

func TestWorkerResolvesPlaceholdersFromSnapshot(t *testing.T) {
	runner := &fakeRunner{}
	w, q, _ := testWorker(t, runner)
	ctx := context.Background()

	task := asyncTask("wf-1", 2)
	task.Step.Params = map[string]interface{}{"orderId": "{{step1.result.id}}"}
	task.Step.Payload = map[string]interface{}{"note": "for {{params.customer}}"}
	task.StepResults = map[int]interface{}{
		1: map[string]interface{}{"id": "o-42"},
	}
	task.Params = map[string]interface{}{"customer": "acme"}

	_, err := q.Enqueue(ctx, task)
	require.NoError(t, err)
	require.NoError(t, w.ProcessOne(ctx))

	require.Len(t, runner.ran, 1)
	ran := runner.ran[0]
	assert.Equal(t, "o-42", ran.Params["orderId"])
	assert.Equal(t, "for acme", ran.Payload.(map[string]interface{})["note"])
}

func TestWorkerBackPatchesLatestExecution(t *testing.T) {
	runner := &fakeRunner{results: map[string]interface{}{
		"inventory-service": map[string]interface{}{"confirmed": true},
	}}
	w, q, store := testWorker(t, runner)
	ctx := context.Background()

	queuedResult := map[string]interface{}{"status": StepQueued}
	exec := &ExecutionRecord{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Team:       "team-a",
		Status:     ExecutionSuccess,
		Result: &linq.WorkflowResult{
			Steps: []linq.StepResult{
				{Step: 1, Target: "quotes-service", Result: map[string]interface{}{"quote": 10}},
				{Step: 2, Target: "inventory-service", Result: queuedResult},
			},
			FinalResult: "map[status:queued]",
		},
		Metadata: []linq.StepMetadata{
			{Step: 1, Status: linq.StatusSuccess, Target: "quotes-service"},
			{Step: 2, Status: StepQueued, Target: "inventory-service", Async: true},
		},
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Save(ctx, exec))

	_, err := q.Enqueue(ctx, asyncTask("wf-1", 2))
	require.NoError(t, err)
	require.NoError(t, w.ProcessOne(ctx))

	patched, err := store.Get(ctx, "exec-1")
	require.NoError(t, err)
	wr := patched.Result.(*linq.WorkflowResult)
	assert.Equal(t, map[string]interface{}{"confirmed": true}, wr.Steps[1].Result)
	assert.Equal(t, "map[confirmed:true]", wr.FinalResult)
	assert.Equal(t, linq.StatusSuccess, patched.Metadata[1].Status)
	// Non-async metadata untouched.
	assert.Equal(t, linq.StatusSuccess, patched.Metadata[0].Status)
}
