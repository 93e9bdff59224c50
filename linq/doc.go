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
Package linq defines the Linq protocol: the uniform request/response envelope
used for every dispatch through the gateway, whether it targets a registered
tool, a generic routed microservice, or a multi-step workflow.

# Request Envelope

Every call is expressed as a link (what to reach) plus a query (what to do):

	req := &linq.Request{
	    Link: linq.Link{Target: "quotes-service", Action: "fetch"},
	    Query: linq.Query{
	        Intent: "/quotes/{id}",
	        Params: map[string]interface{}{"id": "42"},
	    },
	}

When Query.Workflow is non-empty the envelope is treated as a workflow: an
ordered list of steps executed strictly in ascending step order, where later
steps may reference earlier results through placeholders.

# Placeholders

Step params and payloads may embed templates of the form

	{{step1.result}}              whole result of step 1
	{{step1.result.user.name}}    dotted path into the result
	{{params.teamId}}             global workflow parameter

Resolution is best-effort: a missing step, key, or index yields the empty
string, never an error. A string that consists of exactly one placeholder
resolves to the underlying value rather than its string form, so payloads can
receive structured step results intact.

# Error-Shaped Results

Downstream failures degrade to a value of the shape {"error": message}
instead of propagating an error across the call boundary. Use ErrorResult to
detect that shape before trusting a result as success.
*/
package linq
