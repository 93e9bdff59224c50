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

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"linqgate/gateway/linq"
	"linqgate/gateway/shared/logger"
)

// ResponseCache is a read-through cache for fetch results, keyed by target
// and resolved request path. Only fetch responses are cached; a delete to
// the same path invalidates the entry before the delete executes, so a
// subsequent fetch cannot observe the removed resource.
type ResponseCache struct {
	cache  KeyValueCache
	ttl    time.Duration
	logger *logger.Logger
}

func NewResponseCache(cache KeyValueCache, ttl time.Duration, log *logger.Logger) *ResponseCache {
	return &ResponseCache{cache: cache, ttl: ttl, logger: log}
}

func responseKey(target, path string) string {
	return fmt.Sprintf("linq:%s:%s", target, path)
}

// Get returns the cached result for (target, path). Cache failures are
// logged and reported as misses; the caller falls through to the backend.
func (c *ResponseCache) Get(ctx context.Context, team, target, path string) (interface{}, bool) {
	raw, ok, err := c.cache.Get(ctx, responseKey(target, path))
	if err != nil {
		c.logger.Warn(team, "", fmt.Sprintf("Response cache read failed: %v", err), nil)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var result interface{}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.Warn(team, "", fmt.Sprintf("Dropping undecodable cache entry for %s: %v", target, err), nil)
		_ = c.cache.Delete(ctx, responseKey(target, path))
		return nil, false
	}
	return result, true
}

// Put stores a fetch result. Error-shaped results are never cached.
func (c *ResponseCache) Put(ctx context.Context, team, target, path string, result interface{}) {
	if _, isErr := linq.ErrorResult(result); isErr {
		return
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn(team, "", fmt.Sprintf("Failed to encode cache entry for %s: %v", target, err), nil)
		return
	}
	if err := c.cache.Set(ctx, responseKey(target, path), string(encoded), c.ttl); err != nil {
		c.logger.Warn(team, "", fmt.Sprintf("Response cache write failed: %v", err), nil)
	}
}

// Invalidate drops the cached entry for (target, path).
func (c *ResponseCache) Invalidate(ctx context.Context, team, target, path string) {
	if err := c.cache.Delete(ctx, responseKey(target, path)); err != nil {
		c.logger.Warn(team, "", fmt.Sprintf("Response cache invalidation failed: %v", err), nil)
	}
}
