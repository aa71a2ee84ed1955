package rest

import (
	"bufio"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/leofalp/agentflow/core/scheduler"
	"github.com/leofalp/agentflow/core/stream"
	"github.com/leofalp/agentflow/core/task"
	"github.com/leofalp/agentflow/core/workflow"
	"github.com/leofalp/agentflow/providers/observability/zapobs"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: "ok"})
}

func (s *Server) templates(c *fiber.Ctx) error {
	return c.JSON(TemplatesResponse{Nodes: s.deps.Catalog.Templates()})
}

func (s *Server) metrics(c *fiber.Ctx) error {
	if s.deps.Metrics == nil {
		return c.JSON(zapobs.Snapshot{Counters: map[string]int64{}, Histograms: map[string]zapobs.HistogramSnapshot{}})
	}
	return c.JSON(s.deps.Metrics.Snapshot())
}

// executeWorkflow validates the graph synchronously, so structural problems
// get a 400, then streams one frame per settled node and the summary.
func (s *Server) executeWorkflow(c *fiber.Ctx) error {
	var request ExecuteRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   ErrInvalidRequest,
			Message: "decode request body: " + err.Error(),
		})
	}
	graph := request.Graph()
	if err := s.deps.Workflows.Validate(graph); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationResponse(err))
	}

	var options []scheduler.RunOption
	if request.State != nil {
		options = append(options, scheduler.WithState(request.State))
	}
	if request.RunID != "" {
		options = append(options, scheduler.WithRunID(request.RunID))
	}

	s.stream(c, func(emitter *stream.Emitter) {
		summary, err := s.deps.Workflows.Run(s.ctx, graph, emitter, options...)
		if err != nil {
			_ = emitter.Emit(StreamError{Type: "error", Status: string(scheduler.RunFailed), Message: err.Error()})
			return
		}
		s.logger.Info("workflow finished",
			zap.String("run_id", summary.RunID),
			zap.String("status", string(summary.Status)),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
		)
	})
	return nil
}

// executeTask runs one capability and streams its progress frames and final
// frame.
func (s *Server) executeTask(c *fiber.Ctx) error {
	var request task.Request
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   ErrInvalidRequest,
			Message: "decode request body: " + err.Error(),
		})
	}
	if err := s.deps.Tasks.Validate(request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: ErrUnknownTask, Message: err.Error()})
	}

	s.stream(c, func(emitter *stream.Emitter) {
		final, err := s.deps.Tasks.Run(s.ctx, request, emitter)
		if err != nil {
			_ = emitter.Emit(task.Frame{Status: task.StatusError, Error: err.Error(), Done: true})
			return
		}
		s.logger.Info("task finished", zap.String("task_type", request.TaskType), zap.String("status", final.Status))
	})
	return nil
}

// stream answers 200 with an NDJSON body written by produce. A failed write
// makes the emitter sticky-closed, which the executors treat as cancellation.
func (s *Server) stream(c *fiber.Ctx, produce func(*stream.Emitter)) {
	c.Set(fiber.HeaderContentType, stream.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")
	c.Status(fiber.StatusOK)

	c.Context().SetBodyStreamWriter(func(writer *bufio.Writer) {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.logger.Error("stream panic", zap.Any("panic", recovered))
			}
		}()
		emitter := stream.NewEmitter(writer)
		produce(emitter)
		if err := emitter.Err(); err != nil {
			s.logger.Warn("stream closed by client", zap.Error(err), zap.Int("frames", emitter.Frames()))
		}
	})
}

func validationResponse(err error) ErrorResponse {
	response := ErrorResponse{Error: ErrInvalidWorkflow, Message: err.Error()}
	var validationErr *workflow.ValidationError
	if errors.As(err, &validationErr) {
		response.Message = validationErr.Message
		response.Kind = string(validationErr.Kind)
		response.NodeID = validationErr.NodeID
	}
	return response
}
