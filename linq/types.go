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

package linq

import "time"

// Actions understood by the generic service path. Each maps deterministically
// to an HTTP verb; see gateway.MethodForAction.
const (
	ActionFetch   = "fetch"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionPatch   = "patch"
	ActionOptions = "options"
	ActionHead    = "head"
)

// Response metadata status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is the uniform request envelope accepted by the gateway.
type Request struct {
	Link       Link   `json:"link"`
	Query      Query  `json:"query"`
	ExecutedBy string `json:"executedBy,omitempty"`
}

// Link names the backend to reach and the operation to perform on it.
type Link struct {
	Target string `json:"target"` // e.g. "quotes-service", "openai", "workflow"
	Action string `json:"action"` // e.g. "fetch", "create", "delete"
}

// Query carries the operation detail: the intent (endpoint path or named
// operation), its parameters and payload, and - for workflow envelopes - the
// ordered step list.
type Query struct {
	Intent     string                 `json:"intent"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Payload    interface{}            `json:"payload,omitempty"`
	ToolConfig *ToolConfig            `json:"toolConfig,omitempty"`
	Workflow   []WorkflowStep         `json:"workflow,omitempty"`
	WorkflowID string                 `json:"workflowId,omitempty"`
}

// ToolConfig selects a model and generation settings for tool-backed calls.
type ToolConfig struct {
	Model    string                 `json:"model,omitempty"`
	Settings map[string]interface{} `json:"settings,omitempty"`
}

// WorkflowStep is one unit of work in a workflow. Step numbers are 1-based,
// unique, and strictly increasing. Params and Payload may contain
// placeholders referencing earlier step results.
type WorkflowStep struct {
	Step        int                    `json:"step"`
	Target      string                 `json:"target"`
	Action      string                 `json:"action"`
	Intent      string                 `json:"intent,omitempty"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Payload     interface{}            `json:"payload,omitempty"`
	ToolConfig  *ToolConfig            `json:"toolConfig,omitempty"`
	Async       bool                   `json:"async,omitempty"`
	Description string                 `json:"description,omitempty"`
}

// Response is the uniform response envelope. Result is opaque: a WorkflowResult
// for workflow envelopes, otherwise whatever the backend returned.
type Response struct {
	Result   interface{} `json:"result"`
	Metadata Metadata    `json:"metadata"`

	// Err carries the protocol-level failure behind an error envelope so
	// transports can map it to a status code. Never serialized.
	Err error `json:"-"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	Source           string         `json:"source"`
	Status           string         `json:"status"`
	Team             string         `json:"team"`
	CacheHit         bool           `json:"cacheHit"`
	WorkflowMetadata []StepMetadata `json:"workflowMetadata,omitempty"`
}

// WorkflowResult is the Result of a workflow response: every step's result in
// step order plus a best-effort final answer extracted from the last step.
type WorkflowResult struct {
	Steps       []StepResult `json:"steps"`
	FinalResult string       `json:"finalResult"`
}

// StepResult pairs a step number with the result its call produced.
type StepResult struct {
	Step   int         `json:"step"`
	Target string      `json:"target"`
	Result interface{} `json:"result"`
}

// StepMetadata records one attempted step: appended in execution order,
// never removed, used for billing and audit after the fact.
type StepMetadata struct {
	Step       int       `json:"step"`
	Status     string    `json:"status"`
	DurationMs int64     `json:"durationMs"`
	Target     string    `json:"target"`
	ExecutedAt time.Time `json:"executedAt"`
	Async      bool      `json:"async,omitempty"`
}

// ErrorResult reports whether v is an error-shaped result ({"error": msg})
// and returns the message when it is. Callers must check this shape before
// trusting a result as success.
func ErrorResult(v interface{}) (string, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return "", false
	}
	errVal, ok := m["error"]
	if !ok {
		return "", false
	}
	if s, ok := errVal.(string); ok {
		return s, true
	}
	return "unknown error", true
}

// ErrorValue builds the error-shaped result for a failed downstream call.
func ErrorValue(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}
