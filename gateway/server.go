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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"linqgate/gateway/linq"
	"linqgate/gateway/shared/logger"
	"linqgate/gateway/tools"
	"linqgate/gateway/workflow"
)

// Server is the HTTP surface of the gateway.
type Server struct {
	service  *Service
	queue    *workflow.Queue
	store    workflow.ExecutionStore
	registry tools.Registry
	auth     *Authenticator
	gatherer prometheus.Gatherer
	logger   *logger.Logger

	// CORSOrigins restricts browser access; empty means any origin.
	CORSOrigins []string
}

func NewServer(service *Service, queue *workflow.Queue, store workflow.ExecutionStore,
	registry tools.Registry, auth *Authenticator, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	return &Server{
		service:  service,
		queue:    queue,
		store:    store,
		registry: registry,
		auth:     auth,
		gatherer: gatherer,
		logger:   log,
	}
}

// Handler builds the routed, CORS-wrapped handler. Health and metrics are
// open; everything else requires a bearer token.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/linq").Subrouter()
	api.Use(s.auth.Middleware)
	api.HandleFunc("", s.handleLinq).Methods(http.MethodPost)
	api.HandleFunc("/async/steps/{id}", s.handleStepStatus).Methods(http.MethodGet)
	api.HandleFunc("/async/steps/{id}", s.handleStepCancel).Methods(http.MethodDelete)
	api.HandleFunc("/workflows/{id}/steps", s.handleWorkflowSteps).Methods(http.MethodGet)
	api.HandleFunc("/workflows/{id}/steps/{step}", s.handleWorkflowStepStatus).Methods(http.MethodGet)
	api.HandleFunc("/workflows/{id}/steps/{step}", s.handleWorkflowStepCancel).Methods(http.MethodDelete)
	api.HandleFunc("/workflows/{id}/executions", s.handleWorkflowExecutions).Methods(http.MethodGet)
	api.HandleFunc("/tools", s.handleToolSave).Methods(http.MethodPost)
	api.HandleFunc("/tools", s.handleToolList).Methods(http.MethodGet)
	api.HandleFunc("/tools/{target}", s.handleToolDelete).Methods(http.MethodDelete)

	origins := s.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

// ListenAndServe runs the server with sane timeouts until it fails.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info("", "", fmt.Sprintf("Gateway listening on %s", addr), nil)
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleLinq(w http.ResponseWriter, r *http.Request) {
	var req linq.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Link.Target == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "link.target is required"})
		return
	}
	if len(req.Query.Workflow) == 0 && req.Link.Target != "workflow" && req.Query.Intent == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query.intent is required"})
		return
	}

	resp := s.service.Process(r.Context(), &req)
	writeJSON(w, statusForResponse(resp), resp)
}

// statusForResponse maps protocol-level failures onto HTTP codes without
// losing the envelope. Downstream errors reported inside the result value
// stay 200; only typed failures carried on the envelope change the code.
func statusForResponse(resp *linq.Response) int {
	if resp.Err == nil {
		return http.StatusOK
	}
	var forbidden *linq.ForbiddenError
	var unsupported *linq.UnsupportedActionError
	var notFound *linq.NotFoundError
	switch {
	case errors.As(resp.Err, &forbidden):
		return http.StatusForbidden
	case errors.As(resp.Err, &unsupported):
		return http.StatusBadRequest
	case errors.As(resp.Err, &notFound):
		return http.StatusNotFound
	default:
		return http.StatusOK
	}
}

func (s *Server) handleStepStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.queue.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStepCancel(w http.ResponseWriter, r *http.Request) {
	rec, err := s.queue.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleWorkflowSteps(w http.ResponseWriter, r *http.Request) {
	recs, err := s.queue.ForWorkflow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"steps": recs})
}

func (s *Server) handleWorkflowStepStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	step, err := strconv.Atoi(vars["step"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "step must be a number"})
		return
	}
	rec, err := s.queue.StatusByStep(r.Context(), vars["id"], step)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleWorkflowStepCancel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	step, err := strconv.Atoi(vars["step"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "step must be a number"})
		return
	}
	rec, err := s.queue.CancelByStep(r.Context(), vars["id"], step)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleWorkflowExecutions(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ForWorkflow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"executions": recs})
}

func (s *Server) handleToolSave(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	var tool tools.Tool
	if err := json.NewDecoder(r.Body).Decode(&tool); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tool body"})
		return
	}
	// Registrations are always scoped to the caller's team.
	tool.Team = identity.Team
	saved, err := s.registry.Save(r.Context(), &tool)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleToolList(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	list, err := s.registry.FindByTeam(r.Context(), identity.Team)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": list})
}

func (s *Server) handleToolDelete(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if err := s.registry.Delete(r.Context(), mux.Vars(r)["target"], identity.Team); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var notFound *linq.NotFoundError
	if errors.As(err, &notFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
