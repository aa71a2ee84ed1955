package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leofalp/agentflow/api/rest"
	"github.com/leofalp/agentflow/core/scheduler"
	"github.com/leofalp/agentflow/core/stream"
	"github.com/leofalp/agentflow/internal/utils"
)

const previewChars = 120

func newRunCommand(options *globalOptions) *cobra.Command {
	var ndjson bool

	command := &cobra.Command{
		Use:   "run <workflow.yaml|workflow.json>",
		Short: "Validate and execute a workflow file locally",
		Example: `  agentflow run --provider stub examples/report.yaml
  agentflow run --ndjson workflow.json > run.ndjson`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := loadWorkflow(args[0])
			if err != nil {
				return err
			}

			application, err := options.newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = application.Close() }()

			graph := request.Graph()
			if err := application.Scheduler.Validate(graph); err != nil {
				return fmt.Errorf("invalid workflow %s: %w", args[0], err)
			}

			var runOptions []scheduler.RunOption
			if request.State != nil {
				runOptions = append(runOptions, scheduler.WithState(request.State))
			}

			var emitter scheduler.Emitter = &progressPrinter{out: cmd.OutOrStdout()}
			if ndjson {
				emitter = stream.NewEmitter(cmd.OutOrStdout())
			}
			summary, err := application.Scheduler.Run(cmd.Context(), graph, emitter, runOptions...)
			if err != nil {
				return err
			}
			if summary.Status == scheduler.RunFailed {
				return fmt.Errorf("run %s failed: no node succeeded", summary.RunID)
			}
			return nil
		},
	}
	command.Flags().BoolVar(&ndjson, "ndjson", false, "print the raw NDJSON stream")
	return command
}

// loadWorkflow reads a workflow file. YAML is converted to JSON first so
// nodes may carry their options under either config or data.
func loadWorkflow(path string) (rest.ExecuteRequest, error) {
	var request rest.ExecuteRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return request, fmt.Errorf("read workflow: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var document any
		if err := yaml.Unmarshal(data, &document); err != nil {
			return request, fmt.Errorf("parse workflow %s: %w", path, err)
		}
		if data, err = sonic.ConfigStd.Marshal(document); err != nil {
			return request, fmt.Errorf("convert workflow %s: %w", path, err)
		}
	case ".json":
	default:
		return request, fmt.Errorf("workflow %s: unsupported extension, want .yaml, .yml or .json", path)
	}

	if err := sonic.ConfigStd.Unmarshal(data, &request); err != nil {
		return request, fmt.Errorf("parse workflow %s: %w", path, err)
	}
	return request, nil
}

// progressPrinter renders scheduler emissions as coloured lines.
type progressPrinter struct {
	out io.Writer
}

func (printer *progressPrinter) Emit(value any) error {
	switch emission := value.(type) {
	case scheduler.NodeEmission:
		printer.node(emission)
	case *scheduler.Summary:
		printer.summary(emission)
	}
	return nil
}

func (printer *progressPrinter) node(emission scheduler.NodeEmission) {
	progress := dimStyle(fmt.Sprintf("[%d/%d]", emission.Completed, emission.Total))
	result := emission.Node
	if result.Status == scheduler.NodeSucceeded {
		fmt.Fprintf(printer.out, "%s %s %s %s %s\n", progress, okStyle("✓"), nodeStyle(emission.NodeID),
			dimStyle(fmt.Sprintf("(%s, %dms)", result.Type, result.DurationMs)), preview(result))
		return
	}
	failure := result.Error
	if failure == nil {
		failure = &scheduler.NodeFailure{Kind: "unknown"}
	}
	fmt.Fprintf(printer.out, "%s %s %s %s %s\n", progress, errorStyle("✗"), nodeStyle(emission.NodeID),
		warnStyle(string(failure.Kind)), failure.Message)
}

func (printer *progressPrinter) summary(summary *scheduler.Summary) {
	status := okStyle(string(summary.Status))
	switch summary.Status {
	case scheduler.RunCompletedWithErrors:
		status = warnStyle(string(summary.Status))
	case scheduler.RunFailed:
		status = errorStyle(string(summary.Status))
	}
	fmt.Fprintf(printer.out, "\n%s %s  %s succeeded, %s failed, %dms\n",
		summaryStyle("run "+summary.RunID), status,
		boldStyle(summary.Succeeded), boldStyle(summary.Failed), summary.DurationMs)
	if summary.Usage.TotalTokens > 0 {
		fmt.Fprintf(printer.out, "%s\n", dimStyle(fmt.Sprintf("tokens: %d prompt, %d completion",
			summary.Usage.PromptTokens, summary.Usage.CompletionTokens)))
	}
}

// preview returns a one-line excerpt of a payload: its main text field when
// it has one, otherwise its keys.
func preview(result scheduler.NodeResult) string {
	for _, key := range []string{"content", "summary", "advice", "analysis_report", "title"} {
		if text, ok := result.Payload[key].(string); ok && text != "" {
			return utils.TruncateString(strings.Join(strings.Fields(text), " "), previewChars)
		}
	}
	keys := make([]string, 0, len(result.Payload))
	for key := range result.Payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return dimStyle("{" + strings.Join(keys, ", ") + "}")
}
