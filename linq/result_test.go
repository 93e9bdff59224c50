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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalResultChatCompletionShape(t *testing.T) {
	result := map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": "the answer",
				},
			},
		},
	}
	assert.Equal(t, "the answer", FinalResult(result))
}

func TestFinalResultFallsBackToStringified(t *testing.T) {
	assert.Equal(t, "plain", FinalResult("plain"))
	assert.Equal(t, "42", FinalResult(42))
	assert.Equal(t, "map[ok:true]", FinalResult(map[string]interface{}{"ok": true}))
	assert.Equal(t, "", FinalResult(nil))
}

func TestFinalResultEmptyChoices(t *testing.T) {
	result := map[string]interface{}{"choices": []interface{}{}}
	assert.Equal(t, "map[choices:[]]", FinalResult(result))
}

func TestErrorResult(t *testing.T) {
	msg, ok := ErrorResult(ErrorValue("boom"))
	assert.True(t, ok)
	assert.Equal(t, "boom", msg)

	_, ok = ErrorResult(map[string]interface{}{"data": 1})
	assert.False(t, ok)

	_, ok = ErrorResult("just a string")
	assert.False(t, ok)

	_, ok = ErrorResult(nil)
	assert.False(t, ok)
}
