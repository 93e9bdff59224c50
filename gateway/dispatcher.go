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
	"errors"
	"fmt"
	"strings"
	"time"

	"linqgate/gateway/linq"
	"linqgate/gateway/shared/logger"
	"linqgate/gateway/tools"
	"linqgate/gateway/workflow"
)

// Service is the dispatcher: every protocol request enters here and is
// routed to the workflow interpreter, the tool executor, or the generic
// service invoker.
type Service struct {
	gate        *PermissionGate
	cache       *ResponseCache
	invoker     ServiceInvoker
	registry    tools.Registry
	executor    *tools.Executor
	interpreter *workflow.Interpreter
	metrics     *Metrics
	logger      *logger.Logger
}

// NewService wires the dispatcher. The workflow interpreter is attached
// afterwards with SetInterpreter because it needs the service as its step
// runner.
func NewService(gate *PermissionGate, cache *ResponseCache, invoker ServiceInvoker,
	registry tools.Registry, executor *tools.Executor, metrics *Metrics, log *logger.Logger) *Service {
	return &Service{
		gate:     gate,
		cache:    cache,
		invoker:  invoker,
		registry: registry,
		executor: executor,
		metrics:  metrics,
		logger:   log,
	}
}

// SetInterpreter attaches the workflow interpreter.
func (s *Service) SetInterpreter(i *workflow.Interpreter) { s.interpreter = i }

// Process handles one protocol request end to end. It always returns a
// response envelope; protocol-level failures (forbidden target, unknown
// action, missing tool) are reported in the envelope, not as Go errors.
func (s *Service) Process(ctx context.Context, req *linq.Request) *linq.Response {
	identity := IdentityFromContext(ctx)
	if identity == nil {
		return s.errorEnvelope(req.Link.Target, "", errors.New("missing caller identity"))
	}
	team := identity.Team
	start := time.Now()

	var resp *linq.Response
	if len(req.Query.Workflow) > 0 || req.Link.Target == "workflow" {
		var err error
		resp, err = s.interpreter.Execute(ctx, team, req)
		if err != nil {
			resp = s.errorEnvelope("workflow", team, err)
		}
		for _, meta := range resp.Metadata.WorkflowMetadata {
			mode := "sync"
			if meta.Async {
				mode = "async"
			}
			s.metrics.WorkflowSteps.WithLabelValues(mode, meta.Status).Inc()
		}
	} else {
		resp = s.processSingle(ctx, team, identity, req)
	}

	s.metrics.RequestsTotal.WithLabelValues(req.Link.Target, resp.Metadata.Status).Inc()
	s.metrics.RequestDuration.WithLabelValues(req.Link.Target).Observe(time.Since(start).Seconds())
	return resp
}

func (s *Service) processSingle(ctx context.Context, team string, identity *Identity, req *linq.Request) *linq.Response {
	step := linq.WorkflowStep{
		Step:       1,
		Target:     req.Link.Target,
		Action:     req.Link.Action,
		Intent:     req.Query.Intent,
		Params:     req.Query.Params,
		Payload:    req.Query.Payload,
		ToolConfig: req.Query.ToolConfig,
	}

	result, cacheHit, err := s.execute(ctx, team, identity.APIKey, step)
	if err != nil {
		s.logger.Error(team, "", fmt.Sprintf("Request to %s failed: %v", req.Link.Target, err), nil)
		return s.errorEnvelope(req.Link.Target, team, err)
	}

	status := linq.StatusSuccess
	if _, isErr := linq.ErrorResult(result); isErr {
		status = linq.StatusError
	}
	return &linq.Response{
		Result: result,
		Metadata: linq.Metadata{
			Source:   req.Link.Target,
			Status:   status,
			Team:     team,
			CacheHit: cacheHit,
		},
	}
}

// RunStep executes one workflow step. Implements workflow.TargetRunner.
func (s *Service) RunStep(ctx context.Context, team string, step linq.WorkflowStep) (interface{}, error) {
	apiKey := ""
	if identity := IdentityFromContext(ctx); identity != nil {
		apiKey = identity.APIKey
	}
	result, _, err := s.execute(ctx, team, apiKey, step)
	return result, err
}

// execute runs one resolved operation: permission gate, then tool executor
// or generic invoker, with cache handling for fetch and delete actions.
func (s *Service) execute(ctx context.Context, team, apiKey string, step linq.WorkflowStep) (interface{}, bool, error) {
	if err := s.gate.Check(ctx, team, step.Target); err != nil {
		var forbidden *linq.ForbiddenError
		if errors.As(err, &forbidden) {
			s.metrics.PermissionDenied.Inc()
		}
		return nil, false, err
	}

	tool, err := s.registry.FindByTargetAndTeam(ctx, step.Target, team)
	if err != nil {
		return nil, false, fmt.Errorf("tool lookup failed: %w", err)
	}
	if tool != nil {
		result, err := s.runTool(ctx, team, tool, step)
		return result, false, err
	}
	if s.gate.bypass[step.Target] && step.Target != "workflow" {
		return nil, false, &linq.NotFoundError{Kind: "tool", ID: step.Target}
	}

	return s.invoke(ctx, team, apiKey, step)
}

func (s *Service) runTool(ctx context.Context, team string, tool *tools.Tool, step linq.WorkflowStep) (interface{}, error) {
	model := ""
	var settings map[string]interface{}
	if step.ToolConfig != nil {
		model = step.ToolConfig.Model
		settings = step.ToolConfig.Settings
	}
	return s.executor.Execute(ctx, tool, tools.ExecRequest{
		Intent:   step.Intent,
		Params:   step.Params,
		Payload:  step.Payload,
		Model:    model,
		Settings: settings,
		Team:     team,
	})
}

func (s *Service) invoke(ctx context.Context, team, apiKey string, step linq.WorkflowStep) (interface{}, bool, error) {
	inv := Invocation{
		Target:  step.Target,
		Action:  strings.ToLower(step.Action),
		Intent:  step.Intent,
		Params:  step.Params,
		Payload: step.Payload,
		Team:    team,
		APIKey:  apiKey,
	}
	path := inv.ResolvedPath()

	switch inv.Action {
	case linq.ActionFetch:
		if cached, ok := s.cache.Get(ctx, team, inv.Target, path); ok {
			s.metrics.CacheHits.WithLabelValues("hit").Inc()
			return cached, true, nil
		}
		s.metrics.CacheHits.WithLabelValues("miss").Inc()
		result, err := s.invoker.Invoke(ctx, inv)
		if err != nil {
			return nil, false, err
		}
		s.cache.Put(ctx, team, inv.Target, path, result)
		return result, false, nil
	case linq.ActionDelete:
		// Cache entry goes before the delete executes.
		s.cache.Invalidate(ctx, team, inv.Target, path)
		result, err := s.invoker.Invoke(ctx, inv)
		return result, false, err
	default:
		result, err := s.invoker.Invoke(ctx, inv)
		return result, false, err
	}
}

func (s *Service) errorEnvelope(source, team string, err error) *linq.Response {
	return &linq.Response{
		Result: linq.ErrorValue(err.Error()),
		Err:    err,
		Metadata: linq.Metadata{
			Source: source,
			Status: linq.StatusError,
			Team:   team,
		},
	}
}
