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
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's Prometheus instruments. Registering against
// an injected registry keeps tests isolated from the global default.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	CacheHits        *prometheus.CounterVec
	PermissionDenied prometheus.Counter
	WorkflowSteps    *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linqgate_requests_total",
			Help: "Protocol requests processed, by target and outcome.",
		}, []string{"target", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linqgate_request_duration_seconds",
			Help:    "End-to-end request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"target"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linqgate_cache_hits_total",
			Help: "Fetch cache lookups, by result.",
		}, []string{"result"}),
		PermissionDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linqgate_permission_denied_total",
			Help: "Requests rejected by the permission gate.",
		}),
		WorkflowSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linqgate_workflow_steps_total",
			Help: "Workflow steps executed, by mode and outcome.",
		}, []string{"mode", "status"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linqgate_async_queue_depth",
			Help: "Steps waiting in the async queue.",
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.CacheHits,
		m.PermissionDenied, m.WorkflowSteps, m.QueueDepth)
	return m
}
