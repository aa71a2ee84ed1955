package cmd

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/stream"
	"github.com/leofalp/agentflow/core/task"
)

func newTaskCommand(options *globalOptions) *cobra.Command {
	var kwargs, state string

	command := &cobra.Command{
		Use:   "task <task_type>",
		Short: "Run a single capability and print its NDJSON stream",
		Example: `  agentflow task analyze_market --provider stub
  agentflow task create_document --kwargs '{"prompt":"Q3 summary","wordCount":300}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := task.Request{TaskType: args[0]}
			if kwargs != "" {
				if err := sonic.ConfigStd.UnmarshalFromString(kwargs, &request.Kwargs); err != nil {
					return fmt.Errorf("--kwargs: %w", err)
				}
			}
			if state != "" {
				request.State = capability.State{}
				if err := sonic.ConfigStd.UnmarshalFromString(state, &request.State); err != nil {
					return fmt.Errorf("--state: %w", err)
				}
			}

			application, err := options.newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = application.Close() }()

			final, err := application.Tasks.Run(cmd.Context(), request, stream.NewEmitter(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			if final.Status == task.StatusError {
				return fmt.Errorf("task %s failed (%s): %s", request.TaskType, final.Kind, final.Error)
			}
			return nil
		},
	}
	command.Flags().StringVar(&kwargs, "kwargs", "", "task options as a JSON object")
	command.Flags().StringVar(&state, "state", "", `caller state as a JSON object, e.g. {"recentSearches":["AAPL"]}`)
	return command
}
