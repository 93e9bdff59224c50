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

	"github.com/go-redis/redis/v8"
)

const (
	queueKey        = "async:step:queue"
	statusKeyPrefix = "async:step:status:"
	workflowSetKey  = "async:step:workflow:"
)

// RedisTaskQueue is the Redis FIFO behind TaskQueue. Producers RPUSH and
// the worker LPOPs, so tasks come out in enqueue order.
type RedisTaskQueue struct {
	client *redis.Client
}

func NewRedisTaskQueue(client *redis.Client) *RedisTaskQueue {
	return &RedisTaskQueue{client: client}
}

func (q *RedisTaskQueue) Push(ctx context.Context, payload []byte) error {
	return q.client.RPush(ctx, queueKey, payload).Err()
}

func (q *RedisTaskQueue) Pop(ctx context.Context) ([]byte, bool, error) {
	val, err := q.client.LPop(ctx, queueKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (q *RedisTaskQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, queueKey).Result()
}

// RedisStatusStore keeps step status records under a per-task key plus a
// per-workflow index set, both expiring after the retention window.
type RedisStatusStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStatusStore(client *redis.Client, retention time.Duration) *RedisStatusStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisStatusStore{client: client, retention: retention}
}

func (s *RedisStatusStore) Save(ctx context.Context, rec *StepStatusRecord) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode status record: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, statusKeyPrefix+rec.ID, encoded, s.retention)
	if rec.WorkflowID != "" {
		pipe.SAdd(ctx, workflowSetKey+rec.WorkflowID, rec.ID)
		pipe.Expire(ctx, workflowSetKey+rec.WorkflowID, s.retention)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStatusStore) Get(ctx context.Context, id string) (*StepStatusRecord, error) {
	val, err := s.client.Get(ctx, statusKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec StepStatusRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode status record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStatusStore) ForWorkflow(ctx context.Context, workflowID string) ([]*StepStatusRecord, error) {
	ids, err := s.client.SMembers(ctx, workflowSetKey+workflowID).Result()
	if err != nil {
		return nil, err
	}
	var out []*StepStatusRecord
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		// Expired records drop out of the index naturally.
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}
