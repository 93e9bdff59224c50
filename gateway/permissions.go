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
	"fmt"
	"sync"
	"time"

	"linqgate/gateway/linq"
	"linqgate/gateway/shared/logger"
)

// PermissionStore answers the authoritative question of whether a team may
// call a target service.
type PermissionStore interface {
	HasAccess(ctx context.Context, team, target string) (bool, error)
}

// PermissionGate wraps a PermissionStore with a short-TTL cache and a
// bypass list. Bypass targets (AI providers and the workflow pseudo-target)
// are governed by tool registration instead of service permissions, so the
// gate lets them through without consulting the store.
type PermissionGate struct {
	store  PermissionStore
	cache  KeyValueCache
	bypass map[string]bool
	ttl    time.Duration
	logger *logger.Logger
}

func NewPermissionGate(store PermissionStore, cache KeyValueCache, bypassTargets []string, ttl time.Duration, log *logger.Logger) *PermissionGate {
	bypass := make(map[string]bool, len(bypassTargets))
	for _, t := range bypassTargets {
		bypass[t] = true
	}
	return &PermissionGate{store: store, cache: cache, bypass: bypass, ttl: ttl, logger: log}
}

func permissionKey(team, target string) string {
	return fmt.Sprintf("permission:%s:%s", team, target)
}

// Check returns nil when the team may call the target and a ForbiddenError
// when it may not. Verdicts are cached either way; a cache read failure
// falls through to the store rather than failing the request.
func (g *PermissionGate) Check(ctx context.Context, team, target string) error {
	if g.bypass[target] {
		return nil
	}

	key := permissionKey(team, target)
	if cached, ok, err := g.cache.Get(ctx, key); err == nil && ok {
		if cached == "true" {
			return nil
		}
		return &linq.ForbiddenError{Team: team, Target: target}
	} else if err != nil {
		g.logger.Warn(team, "", fmt.Sprintf("Permission cache read failed: %v", err), nil)
	}

	allowed, err := g.store.HasAccess(ctx, team, target)
	if err != nil {
		return fmt.Errorf("failed to check permission for team %s on %s: %w", team, target, err)
	}

	verdict := "false"
	if allowed {
		verdict = "true"
	}
	if err := g.cache.Set(ctx, key, verdict, g.ttl); err != nil {
		g.logger.Warn(team, "", fmt.Sprintf("Permission cache write failed: %v", err), nil)
	}

	if !allowed {
		return &linq.ForbiddenError{Team: team, Target: target}
	}
	return nil
}

// MemoryPermissionStore is an in-process PermissionStore keyed by team.
type MemoryPermissionStore struct {
	mu      sync.RWMutex
	granted map[string]map[string]bool
}

func NewMemoryPermissionStore() *MemoryPermissionStore {
	return &MemoryPermissionStore{granted: make(map[string]map[string]bool)}
}

// Grant allows a team to call a target.
func (s *MemoryPermissionStore) Grant(team, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.granted[team] == nil {
		s.granted[team] = make(map[string]bool)
	}
	s.granted[team][target] = true
}

// Revoke removes a team's access to a target.
func (s *MemoryPermissionStore) Revoke(team, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.granted[team], target)
}

func (s *MemoryPermissionStore) HasAccess(ctx context.Context, team, target string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.granted[team][target], nil
}
