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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"linqgate/gateway/shared/logger"
)

// Auth types understood by the executor.
const (
	AuthNone        = "none"
	AuthBearer      = "bearer"
	AuthAPIKeyQuery = "api_key_query"
)

// Executor invokes registered tool endpoints. Downstream failures never
// surface as Go errors: they degrade to an error-shaped result value so a
// workflow can inspect and react to them.
type Executor struct {
	client *http.Client
	logger *logger.Logger
}

// NewExecutor builds an executor with a bounded-timeout HTTP client.
func NewExecutor(log *logger.Logger) *Executor {
	return &Executor{
		client: &http.Client{Timeout: 60 * time.Second},
		logger: log,
	}
}

// ExecRequest carries the per-call inputs the executor needs from a
// protocol request or resolved workflow step.
type ExecRequest struct {
	Intent   string
	Params   map[string]interface{}
	Payload  interface{}
	Model    string
	Settings map[string]interface{}
	Team     string
}

// Execute calls the tool endpoint and returns the decoded response body.
// An unsupported intent or downstream failure returns an error-shaped map,
// not an error; only request-construction problems return a Go error.
func (e *Executor) Execute(ctx context.Context, tool *Tool, req ExecRequest) (interface{}, error) {
	if !tool.SupportsIntent(req.Intent) {
		return nil, fmt.Errorf("intent %q not supported by tool %s", req.Intent, tool.Target)
	}

	endpoint := tool.Endpoint
	if req.Model != "" {
		endpoint = strings.ReplaceAll(endpoint, "{model}", req.Model)
	}

	payload := buildPayload(tool.Target, req)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool payload: %w", err)
	}

	method := tool.Method
	if method == "" {
		method = http.MethodPost
	}

	target, err := attachQueryAuth(endpoint, tool)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build tool request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range tool.Headers {
		httpReq.Header.Set(k, v)
	}
	if tool.AuthType == AuthBearer && tool.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+tool.APIKey)
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		e.logger.Error(req.Team, "", fmt.Sprintf("Tool %s call failed: %v", tool.Target, err), nil)
		return errorShaped(fmt.Sprintf("tool %s call failed: %v", tool.Target, err)), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorShaped(fmt.Sprintf("failed to read tool %s response: %v", tool.Target, err)), nil
	}

	e.logger.InfoWithDuration(req.Team, "",
		fmt.Sprintf("Tool %s responded %d", tool.Target, resp.StatusCode),
		float64(time.Since(start).Milliseconds()),
		map[string]interface{}{"status_code": resp.StatusCode})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorShaped(fmt.Sprintf("tool %s returned status %d: %s",
			tool.Target, resp.StatusCode, strings.TrimSpace(string(respBody)))), nil
	}

	if len(respBody) == 0 {
		return "Success but no content", nil
	}
	var decoded interface{}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		// Non-JSON bodies pass through as text.
		return string(respBody), nil
	}
	return decoded, nil
}

func attachQueryAuth(endpoint string, tool *Tool) (string, error) {
	if tool.AuthType != AuthAPIKeyQuery || tool.APIKey == "" {
		return endpoint, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid tool endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	q.Set("key", tool.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// buildPayload shapes the request body per target family. AI chat targets
// get their provider-specific envelope built around the prompt, with the
// tool config's settings carried where the provider expects them;
// everything else sends the caller's payload as-is.
func buildPayload(target string, req ExecRequest) interface{} {
	switch target {
	case "openai", "mistral":
		payload := make(map[string]interface{}, len(req.Settings)+2)
		for k, v := range req.Settings {
			payload[k] = v
		}
		payload["model"] = req.Model
		payload["messages"] = chatMessages(req)
		return payload
	case "gemini":
		payload := map[string]interface{}{
			"contents": []interface{}{
				map[string]interface{}{
					"parts": []interface{}{
						map[string]interface{}{"text": promptFrom(req)},
					},
				},
			},
		}
		if len(req.Settings) > 0 {
			payload["generationConfig"] = req.Settings
		}
		return payload
	case "huggingface":
		payload := map[string]interface{}{"inputs": promptFrom(req)}
		if len(req.Settings) > 0 {
			payload["parameters"] = req.Settings
		}
		return payload
	default:
		if req.Payload != nil {
			return req.Payload
		}
		return req.Params
	}
}

// chatMessages returns the caller's message list when the payload already
// is one, otherwise wraps the prompt in a single user message.
func chatMessages(req ExecRequest) []interface{} {
	if msgs, ok := req.Payload.([]interface{}); ok && len(msgs) > 0 {
		return msgs
	}
	if m, ok := req.Payload.(map[string]interface{}); ok {
		if msgs, ok := m["messages"].([]interface{}); ok && len(msgs) > 0 {
			return msgs
		}
	}
	return []interface{}{
		map[string]interface{}{"role": "user", "content": promptFrom(req)},
	}
}

func promptFrom(req ExecRequest) string {
	if s, ok := req.Payload.(string); ok && s != "" {
		return s
	}
	if m, ok := req.Payload.(map[string]interface{}); ok {
		if s, ok := m["prompt"].(string); ok && s != "" {
			return s
		}
		if s, ok := m["text"].(string); ok && s != "" {
			return s
		}
	}
	if s, ok := req.Params["prompt"].(string); ok && s != "" {
		return s
	}
	return req.Intent
}

func errorShaped(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}
