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

// Package workflow runs multi-step protocol requests.
//
// The interpreter executes steps sequentially in ascending step order.
// Each step's params and payload are resolved against the results of
// earlier steps and the request's global params before the step runs.
// A step whose result is error-shaped aborts the workflow; metadata for
// the steps that did run is preserved on the error response.
//
// Steps marked async are not run inline. They are enqueued as durable
// tasks carrying a snapshot of all prior step results, and a background
// worker drains the queue one task per poll tick. Every task has a status
// record that moves queued -> processing -> completed | failed, with
// cancellation possible only while still queued. Completed is terminal:
// re-delivery of a finished task is a no-op.
//
// Workflow executions are tracked in an execution store. The record is
// created when the workflow starts and finalized when it ends; an async
// step that completes later back-patches the workflow's most recent
// record with its result.
package workflow
