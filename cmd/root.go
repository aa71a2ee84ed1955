// Package cmd implements the agentflow command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leofalp/agentflow/internal/app"
	"github.com/leofalp/agentflow/internal/config"
)

// Version is the release version.
const Version = "0.3.0"

// globalOptions hold the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
	provider   string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	options := &globalOptions{}

	root := &cobra.Command{
		Use:   "agentflow",
		Short: "Run AI agent workflows",
		Long: `agentflow executes workflow graphs of AI capabilities (document generation,
research, data and market analysis) and streams per-node results as NDJSON.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&options.configPath, "config", "", "configuration file (default config.yaml when present)")
	flags.BoolVar(&options.debug, "debug", false, "enable debug logging")
	flags.StringVar(&options.provider, "provider", "", "override llm.provider (openai, anthropic, eino, stub)")

	root.AddCommand(
		newServeCommand(options),
		newRunCommand(options),
		newTaskCommand(options),
		newTemplatesCommand(options),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), errorStyle("error:"), err)
		os.Exit(1)
	}
}

// loadConfig applies the persistent flags on top of the loaded file.
func (options *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(options.configPath)
	if err != nil {
		return nil, err
	}
	if options.debug {
		cfg.Log.Level = "debug"
	}
	if options.provider != "" {
		cfg.LLM.Provider = options.provider
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newApp assembles the runtime with logs on console.
func (options *globalOptions) newApp(ctx context.Context, console io.Writer) (*app.App, error) {
	cfg, err := options.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.WithConsole(console))
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentflow %s\n", Version)
		},
	}
}
