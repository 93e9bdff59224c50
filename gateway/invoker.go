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

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"linqgate/gateway/linq"
	"linqgate/gateway/shared/logger"
)

// actionMethods maps protocol actions to HTTP verbs. An action outside this
// map is rejected before any network call.
var actionMethods = map[string]string{
	linq.ActionFetch:   http.MethodGet,
	linq.ActionCreate:  http.MethodPost,
	linq.ActionUpdate:  http.MethodPut,
	linq.ActionDelete:  http.MethodDelete,
	linq.ActionPatch:   http.MethodPatch,
	linq.ActionOptions: http.MethodOptions,
	linq.ActionHead:    http.MethodHead,
}

// MethodForAction translates a protocol action to its HTTP verb.
func MethodForAction(action string) (string, error) {
	method, ok := actionMethods[strings.ToLower(action)]
	if !ok {
		return "", &linq.UnsupportedActionError{Action: action}
	}
	return method, nil
}

// ServiceInvoker executes a single resolved operation against a backend
// service. Implementations return the decoded response body; downstream
// failures come back as error-shaped values, not Go errors.
type ServiceInvoker interface {
	Invoke(ctx context.Context, inv Invocation) (interface{}, error)
}

// Invocation is one fully resolved call: placeholders already substituted,
// permissions already checked.
type Invocation struct {
	Target  string
	Action  string
	Intent  string
	Params  map[string]interface{}
	Payload interface{}
	Team    string
	APIKey  string
}

// ResolvedPath renders the invocation's intent with path variables
// substituted. It is also the cache-key path for fetch responses, so two
// calls that hit the same backend route share a cache entry.
func (inv Invocation) ResolvedPath() string {
	path := strings.TrimPrefix(inv.Intent, "/")
	for name, value := range inv.Params {
		placeholder := "{" + name + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, linq.Stringify(value))
		}
	}
	return path
}

// HTTPServiceInvoker calls backend services through the gateway's routed
// base URL: <base>/r/<target>/<path>.
type HTTPServiceInvoker struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

func NewHTTPServiceInvoker(baseURL string, log *logger.Logger) *HTTPServiceInvoker {
	return &HTTPServiceInvoker{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  log,
	}
}

// Invoke performs the HTTP call. Params not consumed as path variables
// become query parameters. A non-2xx response or transport failure degrades
// to an error-shaped result value so workflows can observe it as data.
func (i *HTTPServiceInvoker) Invoke(ctx context.Context, inv Invocation) (interface{}, error) {
	method, err := MethodForAction(inv.Action)
	if err != nil {
		return nil, err
	}

	target, err := i.buildURL(inv)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if inv.Payload != nil && method != http.MethodGet && method != http.MethodHead {
		encoded, err := json.Marshal(inv.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if inv.APIKey != "" {
		req.Header.Set("X-API-Key", inv.APIKey)
	}

	start := time.Now()
	resp, err := i.client.Do(req)
	if err != nil {
		i.logger.Error(inv.Team, "", fmt.Sprintf("Service %s call failed: %v", inv.Target, err), nil)
		return linq.ErrorValue(fmt.Sprintf("service %s call failed: %v", inv.Target, err)), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return linq.ErrorValue(fmt.Sprintf("failed to read response from %s: %v", inv.Target, err)), nil
	}

	i.logger.InfoWithDuration(inv.Team, "",
		fmt.Sprintf("%s %s responded %d", method, inv.Target, resp.StatusCode),
		float64(time.Since(start).Milliseconds()),
		map[string]interface{}{"status_code": resp.StatusCode, "target": inv.Target})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		backendErr := &linq.BackendError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		return linq.ErrorValue(fmt.Sprintf("service %s failed: %s", inv.Target, backendErr.Error())), nil
	}

	if len(respBody) == 0 {
		if method == http.MethodDelete {
			return "Resource successfully deleted", nil
		}
		return "Success but no content", nil
	}

	var decoded interface{}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return string(respBody), nil
	}
	return decoded, nil
}

// buildURL assembles <base>/r/<target>/<path>?<leftover-params>. Params
// already substituted into the path are excluded from the query string;
// the rest are appended in sorted order so generated URLs are stable.
func (i *HTTPServiceInvoker) buildURL(inv Invocation) (string, error) {
	path := strings.TrimPrefix(inv.Intent, "/")

	consumed := make(map[string]bool)
	for name, value := range inv.Params {
		placeholder := "{" + name + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(linq.Stringify(value)))
			consumed[name] = true
		}
	}

	full := fmt.Sprintf("%s/r/%s/%s", i.baseURL, inv.Target, path)
	u, err := url.Parse(full)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %q: %w", full, err)
	}

	var names []string
	for name := range inv.Params {
		if !consumed[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) > 0 {
		q := u.Query()
		for _, name := range names {
			q.Set(name, linq.Stringify(inv.Params[name]))
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
