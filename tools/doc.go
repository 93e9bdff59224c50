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

/*
Package tools manages per-team tool integrations: external APIs (typically
LLM providers) registered against a target name with their own endpoint,
auth, and payload shaping.

A tool is looked up by (target, team). When the dispatcher finds one, the
call goes through the tool path instead of the generic routed-service path:
the executor shapes the query payload into the provider's request format,
attaches the tool's credential, and performs the HTTP call.

Registrations persist in PostgreSQL via PostgresRegistry; MemoryRegistry
backs tests and single-node development.
*/
package tools
