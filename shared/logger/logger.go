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
	"encoding/json"
	"log"
	"os"
	"time"
)

// Level is the severity of a log line.
type Level string

const (
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
)

// Logger writes one JSON object per line to stdout. Every entry carries
// the tenant and the request or workflow it belongs to, so a multi-tenant
// deployment can filter one team's traffic out of a shared stream.
type Logger struct {
	Component string
	Instance  string
}

// Entry is one structured log line. ContextID holds the inbound request ID
// for gateway traffic and the workflow ID for interpreter and worker
// activity.
type Entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     Level                  `json:"level"`
	Component string                 `json:"component"`
	Instance  string                 `json:"instance"`
	TeamID    string                 `json:"team_id"`
	ContextID string                 `json:"context_id,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// New builds a logger for one component. The instance name comes from the
// hostname so replicas are distinguishable.
func New(component string) *Logger {
	instance, err := os.Hostname()
	if err != nil {
		instance = "unknown"
	}
	return &Logger{Component: component, Instance: instance}
}

func (l *Logger) write(level Level, teamID, contextID, message string, fields map[string]interface{}) {
	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Component: l.Component,
		Instance:  l.Instance,
		TeamID:    teamID,
		ContextID: contextID,
		Message:   message,
		Fields:    fields,
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		// A line the collector can't parse beats a dropped entry.
		log.Printf("ERROR: failed to marshal log entry: %v", err)
		return
	}
	log.Println(string(payload))
}

func (l *Logger) Info(teamID, contextID, message string, fields map[string]interface{}) {
	l.write(INFO, teamID, contextID, message, fields)
}

func (l *Logger) Warn(teamID, contextID, message string, fields map[string]interface{}) {
	l.write(WARN, teamID, contextID, message, fields)
}

func (l *Logger) Error(teamID, contextID, message string, fields map[string]interface{}) {
	l.write(ERROR, teamID, contextID, message, fields)
}

// InfoWithDuration logs at INFO with a duration_ms field merged in.
func (l *Logger) InfoWithDuration(teamID, contextID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.write(INFO, teamID, contextID, message, fields)
}
