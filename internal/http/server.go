// Package http provides the HTTP API for contactimport.
//
// Routes:
//
//	GET  /health
//	GET  /metrics
//	GET  /api/v1/fields
//	POST /api/v1/mappings            propose a mapping for headers
//	POST /api/v1/mappings/reconcile  apply reviewer edits to a mapping
//	POST /api/v1/imports             import rows with a finalized mapping
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/importer"
	"github.com/fyrsmithlabs/contactimport/internal/logging"
	"github.com/fyrsmithlabs/contactimport/internal/mapping"
	"github.com/fyrsmithlabs/contactimport/internal/reconcile"
	"github.com/fyrsmithlabs/contactimport/internal/store"
)

// maxBodySize bounds request bodies; imports carry whole files as rows.
const maxBodySize = "64M"

// Server provides HTTP endpoints for contactimport.
type Server struct {
	echo     *echo.Echo
	engine   *mapping.Engine
	executor *importer.Executor
	fields   store.FieldStore
	gatherer prometheus.Gatherer
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Deps are the components the handlers call.
type Deps struct {
	Engine   *mapping.Engine
	Executor *importer.Executor
	Fields   store.FieldStore
	// Gatherer serves /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, cfg *Config) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("mapping engine is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("import executor is required")
	}
	if deps.Fields == nil {
		return nil, fmt.Errorf("field store is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()

	s := &Server{
		echo:     e,
		engine:   deps.Engine,
		executor: deps.Executor,
		fields:   deps.Fields,
		gatherer: deps.Gatherer,
		logger:   deps.Logger.Named("http"),
		config:   cfg,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)
	e.Use(NewHTTPMetrics(s.logger).MetricsMiddleware())
	e.Use(middleware.BodyLimit(maxBodySize))

	s.registerRoutes()
	return s, nil
}

// requestLogger tags the request context with the request id and logs each
// request once it completes.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := logging.WithRequestID(c.Request().Context(), rid)
		c.SetRequest(c.Request().WithContext(ctx))

		err := next(c)

		s.logger.Info(ctx, "http request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/fields", s.handleListFields)
	v1.POST("/mappings", s.handleProposeMapping)
	v1.POST("/mappings/reconcile", s.handleReconcile)
	v1.POST("/imports", s.handleImport)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Classifier string `json:"classifier"`
}

// FieldsResponse is the response body for GET /api/v1/fields.
type FieldsResponse struct {
	Core   []contact.CustomFieldDef `json:"core"`
	Custom []contact.CustomFieldDef `json:"custom"`
}

// ProposeMappingRequest is the request body for POST /api/v1/mappings.
type ProposeMappingRequest struct {
	Headers []string `json:"headers" validate:"required,min=1,max=1000,dive,required"`
}

// ProposeMappingResponse is the response body for POST /api/v1/mappings.
type ProposeMappingResponse struct {
	Mapping    *contact.MappingResult `json:"mapping"`
	Classifier string                 `json:"classifier"`
}

// ReconcileRequest is the request body for POST /api/v1/mappings/reconcile.
// Working defaults to Original when omitted.
type ReconcileRequest struct {
	Original *contact.MappingResult `json:"original" validate:"required"`
	Working  *contact.MappingResult `json:"working,omitempty"`
	Ops      []reconcile.Op         `json:"ops" validate:"required,min=1,dive"`
}

// ImportRequest is the request body for POST /api/v1/imports. Agents maps
// agent email to user id; when omitted the stored users are used.
type ImportRequest struct {
	Rows    []map[string]string    `json:"rows" validate:"required"`
	Mapping *contact.MappingResult `json:"mapping" validate:"required"`
	Agents  map[string]string      `json:"agents,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Classifier: s.engine.ClassifierName()})
}

func (s *Server) handleListFields(c echo.Context) error {
	ctx := c.Request().Context()
	custom, err := s.fields.ListFields(ctx)
	if err != nil {
		s.logger.Error(ctx, "list fields failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list fields")
	}
	if custom == nil {
		custom = []contact.CustomFieldDef{}
	}
	return c.JSON(http.StatusOK, FieldsResponse{Core: contact.CoreFieldDefs(), Custom: custom})
}

func (s *Server) handleProposeMapping(c echo.Context) error {
	ctx := c.Request().Context()
	var req ProposeMappingRequest
	if err := s.bindAndValidate(c, &req); err != nil {
		return err
	}

	known, err := s.fields.ListFields(ctx)
	if err != nil {
		s.logger.Error(ctx, "list fields failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list fields")
	}
	result, err := s.engine.ProposeMapping(ctx, req.Headers, known)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, ProposeMappingResponse{Mapping: result, Classifier: s.engine.ClassifierName()})
}

func (s *Server) handleReconcile(c echo.Context) error {
	var req ReconcileRequest
	if err := s.bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := req.Original.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid original mapping: "+err.Error())
	}

	session := reconcile.NewSession(req.Original)
	if req.Working != nil {
		if err := req.Working.Validate(); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid working mapping: "+err.Error())
		}
		session.Working = req.Working.Clone()
	}

	session, err := reconcile.ApplyAll(session, req.Ops)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleImport(c echo.Context) error {
	ctx := c.Request().Context()
	var req ImportRequest
	if err := s.bindAndValidate(c, &req); err != nil {
		return err
	}

	var agents contact.AgentDirectory
	if req.Agents != nil {
		agents = contact.AgentDirectory(req.Agents)
	}
	result, err := s.executor.Execute(ctx, req.Rows, req.Mapping, agents)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid request body", zap.String("path", c.Path()), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// toHTTPError maps pipeline errors to status codes.
func toHTTPError(err error) *echo.HTTPError {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, contact.ErrClassifierUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, contact.ErrMalformedResponse):
		status = http.StatusBadGateway
	case errors.Is(err, contact.ErrUnknownHeader),
		errors.Is(err, contact.ErrEmptyLabel),
		errors.Is(err, contact.ErrInvalidTarget),
		errors.Is(err, contact.ErrInvalidHeaders),
		errors.Is(err, contact.ErrInvalidMapping),
		errors.Is(err, contact.ErrDuplicateTarget):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	return echo.NewHTTPError(status, err.Error())
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
