package main

import (
	"context"
	"fmt"
	"io"

	"github.com/autom8ter/docpipe"
	_ "github.com/autom8ter/docpipe/backend/badger"
	_ "github.com/autom8ter/docpipe/backend/mongo"
	"github.com/autom8ter/docpipe/scenario"
	"github.com/spf13/cobra"
)

type runFlags struct {
	configPath string
	envPath    string
	logLevel   string
	backend    string
}

func runCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run every scenario step and print its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), flags, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "path to a yaml or json config file")
	cmd.Flags().StringVarP(&flags.envPath, "env-file", "e", ".env", "path to a .env file loaded when it exists")
	cmd.Flags().StringVarP(&flags.logLevel, "log-level", "l", "", "log level (error, warn, info, debug)")
	cmd.Flags().StringVarP(&flags.backend, "backend", "b", "", "backend name (badger, mongo)")
	return cmd
}

// run exits non-zero only when the configuration or the connection fails. Failed steps are
// reported and the run continues.
func run(ctx context.Context, flags runFlags, out io.Writer, errOut io.Writer) error {
	cfg, err := docpipe.LoadConfig(flags.configPath, flags.envPath)
	if err != nil {
		fmt.Fprintln(errOut, "failed to load config: ", err.Error())
		return err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.backend != "" {
		cfg.Backend = flags.backend
	}
	logger, err := docpipe.NewLogger(cfg.LogLevel, map[string]any{"service": "docpipe"})
	if err != nil {
		fmt.Fprintln(errOut, "failed to create logger: ", err.Error())
		return err
	}
	defer logger.Sync()

	ws, err := docpipe.Open(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "failed to connect", err, map[string]any{"backend": cfg.Backend})
		fmt.Fprintln(errOut, "failed to connect: ", err.Error())
		return err
	}
	defer ws.Close(ctx)

	results, err := scenario.Run(ctx, ws, cfg.Scenario, out, logger)
	if err != nil {
		logger.Error(ctx, "failed to prepare collections", err, map[string]any{"backend": cfg.Backend})
		fmt.Fprintln(errOut, "failed to prepare collections: ", err.Error())
		return err
	}
	failed := 0
	for _, r := range results {
		if r.Result.Err != nil {
			failed++
		}
	}
	logger.Info(ctx, "run completed", map[string]any{"steps": len(results), "failed": failed})
	return nil
}
