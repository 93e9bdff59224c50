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

import "fmt"

// ForbiddenError is returned by the permission gate when a team lacks USE
// permission for a target.
type ForbiddenError struct {
	Team   string
	Target string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("team %s does not have USE permission for %s", e.Team, e.Target)
}

// UnsupportedActionError is returned when a link action has no HTTP verb
// mapping.
type UnsupportedActionError struct {
	Action string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("unsupported action: %s", e.Action)
}

// BackendError carries the upstream status and body of a non-2xx response or
// a transport failure from a downstream call.
type BackendError struct {
	Status int
	Body   string
	Cause  error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend call failed: %v", e.Cause)
	}
	return fmt.Sprintf("service returned %d: %s", e.Status, e.Body)
}

func (e *BackendError) Unwrap() error { return e.Cause }

// StepError identifies the workflow step whose call failed and the backend
// message it failed with.
type StepError struct {
	Step    int
	Message string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("workflow step %d failed: %s", e.Step, e.Message)
}

// NotFoundError is returned when a tool, route, workflow, or execution is
// absent.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
