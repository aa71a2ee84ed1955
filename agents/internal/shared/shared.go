// Package shared holds helpers used by several capabilities: the model
// interface they call, upstream context rendering and the chart palette.
package shared

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/internal/utils"
)

// Completer sends one prompt to a model. *gateway.Gateway satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string, options gateway.Options) (string, error)
}

var _ Completer = (*gateway.Gateway)(nil)

// MaxContextChars bounds the rendering of a single upstream payload.
const MaxContextChars = 2000

// RenderUpstream formats upstream payloads as numbered JSON blocks for a
// prompt. Keys are sorted so that identical inputs give identical prompts.
func RenderUpstream(upstream []capability.Payload) string {
	if len(upstream) == 0 {
		return ""
	}

	var builder strings.Builder
	for index, payload := range upstream {
		encoded, err := sonic.ConfigStd.MarshalToString(payload)
		if err != nil {
			encoded = fmt.Sprint(payload)
		}
		fmt.Fprintf(&builder, "[input %d]\n%s\n", index+1, utils.TruncateString(encoded, MaxContextChars))
	}
	return strings.TrimRight(builder.String(), "\n")
}

// Excerpts returns the first text field found in each upstream payload,
// trimmed to limit characters. Payloads without text are skipped.
func Excerpts(upstream []capability.Payload, limit int) []string {
	excerpts := make([]string, 0, len(upstream))
	for _, payload := range upstream {
		if text := firstText(payload); text != "" {
			excerpts = append(excerpts, utils.TruncateString(text, limit))
		}
	}
	return excerpts
}

var textKeys = []string{"content", "summary", "advice", "analysis_report", "topic", "title"}

func firstText(payload capability.Payload) string {
	for _, key := range textKeys {
		if text, ok := payload[key].(string); ok && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if text, ok := payload[key].(string); ok && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

var palette = [][3]int{
	{75, 192, 192},
	{255, 99, 132},
	{54, 162, 235},
	{255, 206, 86},
	{153, 102, 255},
}

// Color returns the palette entry for index as an rgba() string.
func Color(index int, alpha float64) string {
	rgb := palette[index%len(palette)]
	return fmt.Sprintf("rgba(%d, %d, %d, %g)", rgb[0], rgb[1], rgb[2], alpha)
}
