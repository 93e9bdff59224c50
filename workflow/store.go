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
	"sort"
	"sync"
	"time"

	"linqgate/gateway/linq"
)

// Execution statuses.
const (
	ExecutionRunning = "running"
	ExecutionSuccess = "success"
	ExecutionError   = "error"
)

// ExecutionRecord is one tracked workflow run: the request that started
// it, the result it produced, and per-step metadata.
type ExecutionRecord struct {
	ID         string              `bson:"_id" json:"id"`
	WorkflowID string              `bson:"workflow_id" json:"workflowId"`
	Team       string              `bson:"team" json:"team"`
	ExecutedBy string              `bson:"executed_by,omitempty" json:"executedBy,omitempty"`
	Status     string              `bson:"status" json:"status"`
	Result     interface{}         `bson:"result,omitempty" json:"result,omitempty"`
	Metadata   []linq.StepMetadata `bson:"metadata,omitempty" json:"metadata,omitempty"`
	StartedAt  time.Time           `bson:"started_at" json:"startedAt"`
	FinishedAt *time.Time          `bson:"finished_at,omitempty" json:"finishedAt,omitempty"`
	UpdatedAt  time.Time           `bson:"updated_at" json:"updatedAt"`
}

// ExecutionStore persists workflow execution history.
type ExecutionStore interface {
	Save(ctx context.Context, rec *ExecutionRecord) error
	// Get returns (nil, nil) when no record exists.
	Get(ctx context.Context, id string) (*ExecutionRecord, error)
	// Latest returns the most recently started execution of a workflow,
	// or (nil, nil) when the workflow has never run.
	Latest(ctx context.Context, workflowID string) (*ExecutionRecord, error)
	// ForWorkflow lists executions newest first.
	ForWorkflow(ctx context.Context, workflowID string) ([]*ExecutionRecord, error)
}

// MemoryExecutionStore keeps executions in process, for tests and
// single-node runs.
type MemoryExecutionStore struct {
	mu      sync.RWMutex
	records map[string]*ExecutionRecord
}

func NewMemoryExecutionStore() *MemoryExecutionStore {
	return &MemoryExecutionStore{records: make(map[string]*ExecutionRecord)}
}

func (s *MemoryExecutionStore) Save(ctx context.Context, rec *ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	s.records[rec.ID] = &clone
	return nil
}

func (s *MemoryExecutionStore) Get(ctx context.Context, id string) (*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (s *MemoryExecutionStore) Latest(ctx context.Context, workflowID string) (*ExecutionRecord, error) {
	all, err := s.ForWorkflow(ctx, workflowID)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (s *MemoryExecutionStore) ForWorkflow(ctx context.Context, workflowID string) ([]*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ExecutionRecord
	for _, rec := range s.records {
		if rec.WorkflowID == workflowID {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}
