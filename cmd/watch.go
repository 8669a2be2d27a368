package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/internal/config"
	"github.com/xkilldash9x/vidpilot/internal/feed"
	"github.com/xkilldash9x/vidpilot/internal/observability"
	"github.com/xkilldash9x/vidpilot/internal/service"
)

// newWatchCmd creates the `watch` command, which runs every instruction
// appended to a file against one long-lived session.
func newWatchCmd() *cobra.Command {
	var opts feed.Options

	watchCmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Run each line appended to FILE as an instruction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runWatch(ctx, observability.GetLogger(), cfg, args[0], opts, componentFactory, cmd.OutOrStdout())
		},
	}

	watchCmd.Flags().BoolVar(&opts.FromStart, "from-start", false, "run the instructions already in the file first")
	watchCmd.Flags().BoolVar(&opts.Poll, "poll", false, "poll the file instead of using filesystem notifications")
	return watchCmd
}

// runWatch builds one planning session and feeds it instructions until ctx is
// cancelled. Blank lines and lines starting with '#' are ignored. A failed
// instruction is reported and the watch carries on.
func runWatch(ctx context.Context, logger *zap.Logger, cfg config.Interface, path string, opts feed.Options, factory service.ComponentFactory, out io.Writer) error {
	tailer, err := feed.NewTailer(path, opts, logger)
	if err != nil {
		return err
	}

	components, err := factory.Create(ctx, cfg, service.Options{Planner: true}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	err = tailer.Follow(ctx, func(line string) error {
		instruction := strings.TrimSpace(line)
		if instruction == "" || strings.HasPrefix(instruction, "#") {
			return nil
		}

		fmt.Fprintf(out, "> %s\n", instruction)
		report, runErr := components.Orchestrator.Run(ctx, instruction)
		printEntries(out, report.Entries)
		if runErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("Instruction failed", zap.String("instruction", instruction), zap.Error(runErr))
			fmt.Fprintf(out, "instruction failed: %v\n", runErr)
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		logger.Info("Watch stopped.", zap.String("path", path))
		return nil
	}
	return err
}
