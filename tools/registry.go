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

package tools

import (
	"context"
	"fmt"
	"sync"
)

// Tool is a per-team registered integration. Target is the logical name
// requests address it by; Endpoint/Method/AuthType/APIKey describe how to
// reach the real API.
type Tool struct {
	ID               string            `json:"id"`
	Target           string            `json:"target"`
	Team             string            `json:"team"`
	Endpoint         string            `json:"endpoint"`
	Method           string            `json:"method"`
	AuthType         string            `json:"authType"` // bearer, api_key_query, none
	APIKey           string            `json:"apiKey"`
	Headers          map[string]string `json:"headers,omitempty"`
	SupportedIntents []string          `json:"supportedIntents,omitempty"`
}

// SupportsIntent reports whether the tool accepts the given intent.
func (t *Tool) SupportsIntent(intent string) bool {
	if len(t.SupportedIntents) == 0 {
		return true
	}
	for _, i := range t.SupportedIntents {
		if i == intent {
			return true
		}
	}
	return false
}

// Validate checks the fields required for a registration to be usable.
func (t *Tool) Validate() error {
	if t.Target == "" {
		return fmt.Errorf("tool target is required")
	}
	if t.Team == "" {
		return fmt.Errorf("tool team ID is required")
	}
	if t.Endpoint == "" {
		return fmt.Errorf("tool endpoint is required")
	}
	if t.Method == "" {
		return fmt.Errorf("tool method is required")
	}
	return nil
}

// Registry stores tool registrations. FindByTargetAndTeam returns (nil, nil)
// when no tool is registered, so callers can fall back to the generic
// service path without error handling.
type Registry interface {
	FindByTargetAndTeam(ctx context.Context, target, team string) (*Tool, error)
	FindByTeam(ctx context.Context, team string) ([]*Tool, error)
	Save(ctx context.Context, tool *Tool) (*Tool, error)
	Delete(ctx context.Context, target, team string) error
}

// MemoryRegistry is a thread-safe in-memory Registry for tests and
// single-node development.
type MemoryRegistry struct {
	mu    sync.RWMutex
	tools map[string]*Tool // keyed target|team
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{tools: make(map[string]*Tool)}
}

func memKey(target, team string) string { return target + "|" + team }

func (r *MemoryRegistry) FindByTargetAndTeam(ctx context.Context, target, team string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[memKey(target, team)]
	if !ok {
		return nil, nil
	}
	cp := *tool
	return &cp, nil
}

func (r *MemoryRegistry) FindByTeam(ctx context.Context, team string) ([]*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Tool
	for _, tool := range r.tools {
		if tool.Team == team {
			cp := *tool
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRegistry) Save(ctx context.Context, tool *Tool) (*Tool, error) {
	if err := tool.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if tool.ID == "" {
		tool.ID = memKey(tool.Target, tool.Team)
	}
	cp := *tool
	r.tools[memKey(tool.Target, tool.Team)] = &cp
	return tool, nil
}

func (r *MemoryRegistry) Delete(ctx context.Context, target, team string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, memKey(target, team))
	return nil
}
