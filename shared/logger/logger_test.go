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

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture redirects the standard logger during a test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Writer()
	origFlags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(orig)
		log.SetFlags(origFlags)
	})
	return &buf
}

func decodeEntry(t *testing.T, line string) Entry {
	t.Helper()
	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(line)), &entry))
	return entry
}

func TestInfoEmitsStructuredJSON(t *testing.T) {
	buf := capture(t)
	l := New("gateway")

	l.Info("team-a", "req-1", "request accepted", map[string]interface{}{"target": "openai"})

	entry := decodeEntry(t, buf.String())
	assert.Equal(t, INFO, entry.Level)
	assert.Equal(t, "gateway", entry.Component)
	assert.NotEmpty(t, entry.Instance)
	assert.Equal(t, "team-a", entry.TeamID)
	assert.Equal(t, "req-1", entry.ContextID)
	assert.Equal(t, "request accepted", entry.Message)
	assert.Equal(t, "openai", entry.Fields["target"])
	assert.NotEmpty(t, entry.Timestamp)
}

func TestLevels(t *testing.T) {
	buf := capture(t)
	l := New("gateway")

	l.Info("t", "", "i", nil)
	l.Warn("t", "", "w", nil)
	l.Error("t", "", "e", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, INFO, decodeEntry(t, lines[0]).Level)
	assert.Equal(t, WARN, decodeEntry(t, lines[1]).Level)
	assert.Equal(t, ERROR, decodeEntry(t, lines[2]).Level)
}

func TestContextIDOmittedWhenEmpty(t *testing.T) {
	buf := capture(t)
	l := New("worker")

	l.Info("team-a", "", "polling", nil)

	assert.NotContains(t, buf.String(), "context_id")
}

func TestInfoWithDurationAddsField(t *testing.T) {
	buf := capture(t)
	l := New("gateway")

	l.InfoWithDuration("team-a", "", "done", 12.5, nil)

	entry := decodeEntry(t, buf.String())
	assert.Equal(t, 12.5, entry.Fields["duration_ms"])
}
