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

// FinalResult extracts the user-facing answer from a workflow's last step
// result. Chat-completion shaped results (choices[0].message.content) yield
// the inner text; anything else is stringified, nil yields "".
func FinalResult(result interface{}) string {
	if m, ok := result.(map[string]interface{}); ok {
		if choices, ok := m["choices"].([]interface{}); ok && len(choices) > 0 {
			if choice, ok := choices[0].(map[string]interface{}); ok {
				if message, ok := choice["message"].(map[string]interface{}); ok {
					if content, ok := message["content"]; ok && content != nil {
						return Stringify(content)
					}
					return ""
				}
			}
		}
	}
	if result == nil {
		return ""
	}
	return Stringify(result)
}
