package cmd

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/leofalp/agentflow/api/rest"
)

func newTemplatesCommand(options *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "Print the capability catalog as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := options.newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = application.Close() }()

			output, err := sonic.ConfigStd.MarshalIndent(rest.TemplatesResponse{Nodes: application.Registry.Templates()}, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return err
		},
	}
}
