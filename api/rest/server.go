// Package rest exposes workflow execution, single tasks and the capability
// catalog over HTTP. Executions answer with an NDJSON stream.
package rest

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/scheduler"
	"github.com/leofalp/agentflow/core/task"
	"github.com/leofalp/agentflow/core/workflow"
	"github.com/leofalp/agentflow/internal/config"
	"github.com/leofalp/agentflow/providers/observability/zapobs"
)

// WorkflowRunner validates and executes graphs. *scheduler.Scheduler
// satisfies it.
type WorkflowRunner interface {
	Validate(graph workflow.Graph) error
	Run(ctx context.Context, graph workflow.Graph, emitter scheduler.Emitter, options ...scheduler.RunOption) (*scheduler.Summary, error)
}

// TaskRunner validates and executes single tasks. *task.Runner satisfies it.
type TaskRunner interface {
	Validate(request task.Request) error
	Run(ctx context.Context, request task.Request, emitter task.Emitter) (*task.Frame, error)
}

// Catalog lists capability templates. *capability.Registry satisfies it.
type Catalog interface {
	Templates() []capability.Template
}

// Metrics reports aggregated counters and histograms. *zapobs.Observer
// satisfies it.
type Metrics interface {
	Snapshot() zapobs.Snapshot
}

// Dependencies are the components the handlers call into. Metrics may be nil.
type Dependencies struct {
	Workflows WorkflowRunner
	Tasks     TaskRunner
	Catalog   Catalog
	Metrics   Metrics
	Logger    *zap.Logger
}

// Server is the HTTP API.
type Server struct {
	app    *fiber.App
	deps   Dependencies
	config config.ServerConfig
	logger *zap.Logger

	// ctx outlives individual requests: streams keep running after the
	// handler returns and stop when the server shuts down.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer builds the fiber app and registers every route.
func NewServer(deps Dependencies, cfg config.ServerConfig) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "agentflow",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          errorHandler,
		JSONEncoder:           sonic.ConfigStd.Marshal,
		JSONDecoder:           sonic.ConfigStd.Unmarshal,
		DisableStartupMessage: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	server := &Server{
		app:    app,
		deps:   deps,
		config: cfg,
		logger: deps.Logger.Named("http"),
		ctx:    ctx,
		cancel: cancel,
	}
	server.setupMiddleware()
	server.setupRoutes()
	return server
}

func (s *Server) setupMiddleware() {
	s.app.Use(fiberrecover.New(fiberrecover.Config{EnableStackTrace: true}))
	s.app.Use(s.accessLog)

	if s.config.EnableCORS {
		origins := s.config.CORSOrigins
		if origins == "" {
			origins = "*"
		}
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept",
			MaxAge:       86400,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Get("/nodes/templates", s.templates)
	api.Get("/metrics", s.metrics)
	api.Post("/workflow/execute", s.executeWorkflow)
	api.Post("/tasks", s.executeTask)
}

// accessLog logs one line per request. Streaming responses are logged when
// the handler returns, before the stream body is written.
func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err),
	)
	return err
}

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("listening", zap.String("address", s.config.Address))
	return s.app.Listen(s.config.Address)
}

// Shutdown cancels running streams and stops the listener, waiting at most
// timeout for open connections.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.cancel()
	return s.app.ShutdownWithTimeout(timeout)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"
	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}
	return c.Status(code).JSON(ErrorResponse{Error: "request_failed", Message: message})
}
