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

// Package gateway is the request-processing core of the LinqGate server.
//
// A single protocol endpoint accepts every request. The dispatcher
// inspects the envelope and routes it down one of three paths:
//
//   - workflow requests go to the workflow interpreter
//   - tool targets (AI providers and team-registered endpoints) go to the
//     tool executor
//   - everything else is invoked as a generic backend service through the
//     HTTP invoker
//
// Around that core sit the cross-cutting pieces: a permission gate that
// checks team access to each target (with a short-TTL cache and a bypass
// list for tool targets), a read-through response cache for fetch
// operations, JWT-based team identity extraction, Prometheus metrics,
// and the HTTP binding itself.
package gateway
