// Package webapi provides the HTTP API for agentlint: agent discovery,
// validation, auditing and permission resolution over REST.
package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/jingkaihe/agentlint/pkg/agent"
	"github.com/jingkaihe/agentlint/pkg/audit"
	"github.com/jingkaihe/agentlint/pkg/logger"
	"github.com/jingkaihe/agentlint/pkg/permission"
	"github.com/jingkaihe/agentlint/pkg/presenter"
	"github.com/jingkaihe/agentlint/pkg/schema"
	"github.com/jingkaihe/agentlint/pkg/validate"
	"github.com/jingkaihe/agentlint/pkg/version"
)

// Server serves the agentlint REST API.
type Server struct {
	router    *mux.Router
	config    *ServerConfig
	discovery *agent.Discovery
	validator *validate.Validator
	auditor   *audit.Auditor
	server    *http.Server
}

// ServerConfig holds the configuration for the API server.
type ServerConfig struct {
	Host string
	Port int
	// AgentDirs overrides the conventional agent directories for the
	// discovery endpoint.
	AgentDirs []string
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// NewServer creates the API server.
func NewServer(ctx context.Context, config *ServerConfig) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	var opts []agent.Option
	if len(config.AgentDirs) > 0 {
		opts = append(opts, agent.WithDirs(config.AgentDirs...))
	}
	discovery, err := agent.NewDiscovery(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to configure agent discovery")
	}

	s := &Server{
		router:    mux.NewRouter(),
		config:    config,
		discovery: discovery,
		validator: validate.New(),
		auditor:   audit.New(),
	}

	s.setupRoutes()

	return s, nil
}

// setupRoutes configures all the HTTP routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/agents", s.handleListAgents).Methods("GET")
	api.HandleFunc("/validate", s.handleValidate).Methods("POST")
	api.HandleFunc("/audit", s.handleAudit).Methods("POST")
	api.HandleFunc("/resolve", s.handleResolve).Methods("POST")
	api.HandleFunc("/schema", s.handleSchema).Methods("GET")

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// documentRequest selects an agent document either by file path or by
// inline content with an optional name.
type documentRequest struct {
	Path    string `json:"path,omitempty"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content,omitempty"`
}

func (req documentRequest) name() string {
	if req.Name != "" {
		return req.Name
	}
	return "inline"
}

func (s *Server) loadDocument(ctx context.Context, req documentRequest) (*agent.Document, error) {
	switch {
	case req.Path != "":
		return agent.Load(ctx, req.Path)
	case req.Content != "":
		return agent.Parse(req.name(), req.Content)
	default:
		return nil, errors.New("request must provide either path or content")
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "invalid JSON request body")
	}
	return nil
}

// agentSummary is one row of the discovery listing.
type agentSummary struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Description string   `json:"description"`
	Mode        string   `json:"mode"`
	Tools       []string `json:"tools,omitempty"`
	Hidden      bool     `json:"hidden,omitempty"`
}

// handleListAgents handles GET /api/agents.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	docs, err := s.discovery.List(r.Context())
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to list agents", err)
		return
	}

	agents := make([]agentSummary, 0, len(docs))
	for _, doc := range docs {
		agents = append(agents, agentSummary{
			Name:        doc.Name,
			Path:        doc.Path,
			Description: doc.Definition.Description,
			Mode:        doc.Definition.EffectiveMode(),
			Tools:       doc.Definition.EnabledTools(),
			Hidden:      doc.Definition.Hidden != nil && *doc.Definition.Hidden,
		})
	}

	s.writeJSONResponse(w, map[string]any{
		"agents": agents,
		"count":  len(agents),
	})
}

// validateResponse wraps a validation report with its verdict.
type validateResponse struct {
	Valid  bool             `json:"valid"`
	Report *validate.Report `json:"report"`
}

// handleValidate handles POST /api/validate.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req documentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var report *validate.Report
	switch {
	case req.Path != "":
		report = s.validator.CheckFile(ctx, req.Path)
	case req.Content != "":
		doc, err := agent.Parse(req.name(), req.Content)
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "cannot parse agent content", err)
			return
		}
		report = s.validator.Check(doc)
	default:
		s.writeErrorResponse(w, http.StatusBadRequest, "request must provide either path or content", nil)
		return
	}

	s.writeJSONResponse(w, validateResponse{Valid: report.Valid(), Report: report})
}

// auditResponse carries an audit result plus its quality band.
type auditResponse struct {
	*audit.Result
	QualityBand audit.Band `json:"band"`
}

// handleAudit handles POST /api/audit.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req documentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	doc, err := s.loadDocument(ctx, req)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "cannot load agent document", err)
		return
	}

	result := s.auditor.Audit(doc)
	s.writeJSONResponse(w, auditResponse{Result: result, QualityBand: result.Band()})
}

// resolveRequest asks what happens when an agent's tool performs an
// operation.
type resolveRequest struct {
	documentRequest
	Tool      string `json:"tool"`
	Operation string `json:"operation"`
}

// resolveResponse is the resolution outcome for one operation.
type resolveResponse struct {
	Agent     string              `json:"agent"`
	Tool      string              `json:"tool"`
	Operation string              `json:"operation"`
	HasPolicy bool                `json:"hasPolicy"`
	Matched   bool                `json:"matched"`
	Decision  permission.Decision `json:"decision,omitempty"`
	Pattern   string              `json:"pattern,omitempty"`
}

// handleResolve handles POST /api/resolve.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if !permission.ValidTool(req.Tool) {
		s.writeErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("invalid tool %q (valid tools: %v)", req.Tool, permission.Tools), nil)
		return
	}

	doc, err := s.loadDocument(ctx, req.documentRequest)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "cannot load agent document", err)
		return
	}

	response := resolveResponse{
		Agent:     doc.Name,
		Tool:      req.Tool,
		Operation: req.Operation,
	}

	pol, ok := doc.Definition.PermissionFor(req.Tool)
	if ok {
		response.HasPolicy = true
		resolver, err := pol.Resolver()
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "agent has an invalid permission pattern", err)
			return
		}
		outcome := resolver.Resolve(req.Operation)
		response.Matched = outcome.Matched
		response.Decision = outcome.Decision
		response.Pattern = outcome.Pattern
	}

	s.writeJSONResponse(w, response)
}

// handleSchema handles GET /api/schema.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, schema.Generate())
}

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, map[string]any{
		"status":  "ok",
		"version": version.Get().Version,
	})
}

// writeJSONResponse writes a JSON response.
func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes an error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(context.TODO()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode error response")
	}
}

// Start runs the server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:    address,
		Handler: s.router,
	}

	presenter.Info(fmt.Sprintf("Starting agentlint API server on http://%s", address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("API server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Stop stops the server immediately.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
