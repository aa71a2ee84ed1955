package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/internal/utils"
	"github.com/leofalp/agentflow/providers/ai"
)

// LogLevel controls how much detail the logging middleware emits.
type LogLevel int

const (
	// LogLevelMinimal logs model, duration and token counts.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard adds message count and finish reason.
	LogLevelStandard

	// LogLevelVerbose adds truncated prompt and reply text. Do not use it in
	// production: prompts may contain user data.
	LogLevelVerbose
)

const truncateLen = 500

// NewLogging logs every attempt that passes through it.
func NewLogging(logger *zap.Logger, level LogLevel) gateway.Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next gateway.SendFunc) gateway.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			logger.Debug("llm send", requestFields(request, level)...)

			start := time.Now()
			response, err := next(ctx, request)
			elapsed := time.Since(start)

			if err != nil {
				logger.Warn("llm send failed",
					zap.String("model", request.Model),
					zap.Duration("duration", elapsed),
					zap.Bool("transient", ai.IsTransient(err)),
					zap.Error(err),
				)
				return nil, err
			}

			logger.Info("llm send completed", responseFields(request, response, elapsed, level)...)
			return response, nil
		}
	}
}

func requestFields(request ai.ChatRequest, level LogLevel) []zap.Field {
	fields := []zap.Field{zap.String("model", request.Model)}
	if level >= LogLevelStandard {
		fields = append(fields, zap.Int("message_count", len(request.Messages)))
	}
	if level >= LogLevelVerbose && len(request.Messages) > 0 {
		last := request.Messages[len(request.Messages)-1]
		fields = append(fields, zap.String("prompt", utils.TruncateString(last.Content, truncateLen)))
		if request.GenerationConfig != nil {
			fields = append(fields, zap.String("generation_config", utils.JSONToString(request.GenerationConfig)))
		}
	}
	return fields
}

func responseFields(request ai.ChatRequest, response *ai.ChatResponse, elapsed time.Duration, level LogLevel) []zap.Field {
	fields := []zap.Field{
		zap.String("model", request.Model),
		zap.Duration("duration", elapsed),
	}
	if response.Usage != nil {
		fields = append(fields,
			zap.Int("prompt_tokens", response.Usage.PromptTokens),
			zap.Int("completion_tokens", response.Usage.CompletionTokens),
			zap.Int("total_tokens", response.Usage.TotalTokens),
		)
	}
	if level >= LogLevelStandard && response.FinishReason != "" {
		fields = append(fields, zap.String("finish_reason", response.FinishReason))
	}
	if level >= LogLevelVerbose {
		fields = append(fields, zap.String("reply", utils.TruncateString(response.Content, truncateLen)))
	}
	return fields
}
