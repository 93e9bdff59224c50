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
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Matches a string that is exactly one placeholder. Such strings resolve
	// to the underlying value, not its string form.
	singlePlaceholderPattern = regexp.MustCompile(`^\{\{(step\d+\.result(?:\.[^}]+)?|params\.[\w.\[\]]+)\}\}$`)

	stepPlaceholderPattern   = regexp.MustCompile(`\{\{step(\d+)\.result(?:\.([^}]+))?\}\}`)
	paramsPlaceholderPattern = regexp.MustCompile(`\{\{params\.([\w.\[\]]+)\}\}`)

	arrayAccessPattern = regexp.MustCompile(`^(.*)\[(\d+)\]$`)
)

// StepContext holds the accumulated step results and the workflow-level
// params a placeholder may reference. It is read-only during resolution.
type StepContext struct {
	StepResults  map[int]interface{}
	GlobalParams map[string]interface{}
}

// NewStepContext creates a resolution context for a workflow run.
func NewStepContext(globalParams map[string]interface{}) *StepContext {
	return &StepContext{
		StepResults:  make(map[int]interface{}),
		GlobalParams: globalParams,
	}
}

// Resolve walks value depth-first and substitutes every placeholder against
// ctx. Strings interpolate; slices resolve element-wise preserving order;
// maps resolve value-wise. Resolution is pure and safe to call concurrently:
// inputs are never mutated, resolved copies are returned.
func Resolve(value interface{}, ctx *StepContext) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if m := singlePlaceholderPattern.FindStringSubmatch(v); m != nil {
			if obj := resolveObject(m[1], ctx); obj != nil {
				return obj
			}
		}
		return resolveString(v, ctx)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = Resolve(item, ctx)
		}
		return out
	case map[string]interface{}:
		return ResolveMap(v, ctx)
	default:
		return value
	}
}

// ResolveMap resolves every value of input, returning a new map. A nil input
// yields an empty map so callers can merge without nil checks.
func ResolveMap(input map[string]interface{}, ctx *StepContext) map[string]interface{} {
	resolved := make(map[string]interface{}, len(input))
	for k, v := range input {
		resolved[k] = Resolve(v, ctx)
	}
	return resolved
}

// resolveObject returns the raw value a lone placeholder points at, or nil
// when the reference cannot be satisfied (caller falls back to string
// interpolation, which yields "").
func resolveObject(content string, ctx *StepContext) interface{} {
	if strings.HasPrefix(content, "step") {
		rest := strings.TrimPrefix(content, "step")
		numEnd := strings.Index(rest, ".")
		if numEnd < 0 {
			return nil
		}
		stepNum, err := strconv.Atoi(rest[:numEnd])
		if err != nil {
			return nil
		}
		result, ok := ctx.StepResults[stepNum]
		if !ok {
			return nil
		}
		path := strings.TrimPrefix(rest[numEnd:], ".result")
		path = strings.TrimPrefix(path, ".")
		if path == "" {
			return result
		}
		return valueAtPath(result, path)
	}
	if strings.HasPrefix(content, "params.") {
		if ctx.GlobalParams == nil {
			return nil
		}
		return valueAtPath(ctx.GlobalParams, strings.TrimPrefix(content, "params."))
	}
	return nil
}

// resolveString substitutes every placeholder in value left to right, each
// independently; unresolvable references become the empty string.
func resolveString(value string, ctx *StepContext) string {
	result := stepPlaceholderPattern.ReplaceAllStringFunc(value, func(match string) string {
		m := stepPlaceholderPattern.FindStringSubmatch(match)
		stepNum, err := strconv.Atoi(m[1])
		if err != nil {
			return ""
		}
		stepResult, ok := ctx.StepResults[stepNum]
		if !ok {
			return ""
		}
		if m[2] == "" {
			return Stringify(stepResult)
		}
		return stringAtPath(stepResult, m[2])
	})
	result = paramsPlaceholderPattern.ReplaceAllStringFunc(result, func(match string) string {
		if ctx.GlobalParams == nil {
			return ""
		}
		m := paramsPlaceholderPattern.FindStringSubmatch(match)
		return stringAtPath(ctx.GlobalParams, m[1])
	})
	return result
}

// valueAtPath walks a dotted path through nested maps and lists. Segments
// index maps by key and lists by integer index; the "name[3]" form combines
// both. Any type mismatch or missing key/index yields nil.
func valueAtPath(obj interface{}, path string) interface{} {
	current := obj
	for _, part := range strings.Split(path, ".") {
		if current == nil {
			return nil
		}
		if m := arrayAccessPattern.FindStringSubmatch(part); m != nil {
			current = indexInto(current, m[1])
			idx, err := strconv.Atoi(m[2])
			if err != nil {
				return nil
			}
			list, ok := current.([]interface{})
			if !ok || idx < 0 || idx >= len(list) {
				return nil
			}
			current = list[idx]
			continue
		}
		current = indexInto(current, part)
	}
	return current
}

// indexInto performs one segment of path traversal: a map key lookup or a
// numeric list index.
func indexInto(current interface{}, part string) interface{} {
	if part == "" {
		return current
	}
	switch c := current.(type) {
	case map[string]interface{}:
		return c[part]
	case []interface{}:
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 || idx >= len(c) {
			return nil
		}
		return c[idx]
	default:
		return nil
	}
}

func stringAtPath(obj interface{}, path string) string {
	v := valueAtPath(obj, path)
	if v == nil {
		return ""
	}
	return Stringify(v)
}

// Stringify renders a resolved value for interpolation into a string.
func Stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
