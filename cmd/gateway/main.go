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

// Package main is the entry point for the LinqGate gateway.
//
// The gateway exposes a single protocol endpoint that dispatches requests
// to backend services, team-registered tools, and multi-step workflows,
// with permission gating, response caching, and an async step queue.
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	CONFIG_PATH - path to the YAML configuration (default: config.yaml)
//	JWT_SECRET  - secret for bearer token validation
package main

import (
	"linqgate/gateway/gateway"
)

func main() {
	gateway.Run()
}
