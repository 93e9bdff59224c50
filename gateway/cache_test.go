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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linqgate/gateway/linq"
	"linqgate/gateway/shared/logger"
)

func testResponseCache(t *testing.T) (*ResponseCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewResponseCache(NewRedisCache(client), 5*time.Minute, logger.New("cache-test")), mr
}

func TestResponseCacheRoundTrip(t *testing.T) {
	cache, _ := testResponseCache(t)
	ctx := context.Background()

	result := map[string]interface{}{"items": []interface{}{"a", "b"}}
	cache.Put(ctx, "team-a", "inventory-service", "api/items", result)

	got, ok := cache.Get(ctx, "team-a", "inventory-service", "api/items")
	require.True(t, ok)
	assert.Equal(t, result, got)
}

func TestResponseCacheMiss(t *testing.T) {
	cache, _ := testResponseCache(t)

	_, ok := cache.Get(context.Background(), "team-a", "inventory-service", "api/items")
	assert.False(t, ok)
}

func TestResponseCacheKeyedByTargetAndPath(t *testing.T) {
	cache, mr := testResponseCache(t)
	ctx := context.Background()

	cache.Put(ctx, "team-a", "inventory-service", "api/items/1", "one")

	assert.True(t, mr.Exists("linq:inventory-service:api/items/1"))

	_, ok := cache.Get(ctx, "team-a", "inventory-service", "api/items/2")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "team-a", "orders-service", "api/items/1")
	assert.False(t, ok)
}

func TestResponseCacheInvalidate(t *testing.T) {
	cache, _ := testResponseCache(t)
	ctx := context.Background()

	cache.Put(ctx, "team-a", "inventory-service", "api/items/1", "cached")
	cache.Invalidate(ctx, "team-a", "inventory-service", "api/items/1")

	_, ok := cache.Get(ctx, "team-a", "inventory-service", "api/items/1")
	assert.False(t, ok)
}

func TestResponseCacheEntriesExpire(t *testing.T) {
	cache, mr := testResponseCache(t)
	ctx := context.Background()

	cache.Put(ctx, "team-a", "inventory-service", "api/items", "cached")
	mr.FastForward(6 * time.Minute)

	_, ok := cache.Get(ctx, "team-a", "inventory-service", "api/items")
	assert.False(t, ok)
}

func TestResponseCacheSkipsErrorShapedResults(t *testing.T) {
	cache, _ := testResponseCache(t)
	ctx := context.Background()

	cache.Put(ctx, "team-a", "inventory-service", "api/items", linq.ErrorValue("backend down"))

	_, ok := cache.Get(ctx, "team-a", "inventory-service", "api/items")
	assert.False(t, ok)
}
