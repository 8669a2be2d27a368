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
	"github.com/xkilldash9x/vidpilot/internal/journal"
	"github.com/xkilldash9x/vidpilot/internal/observability"
	"github.com/xkilldash9x/vidpilot/internal/service"
)

// newRunCmd creates the `run` command, which hands an instruction to the planner.
func newRunCmd() *cobra.Command {
	var maxIterations int

	runCmd := &cobra.Command{
		Use:   "run [instruction...]",
		Short: "Carry out a plain-language instruction, e.g. \"pause at 1:35\"",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-iterations") {
				cfg.SetOrchestratorMaxIterations(maxIterations)
			}
			instruction := strings.Join(args, " ")
			return runInstruction(ctx, observability.GetLogger(), cfg, instruction, componentFactory, cmd.OutOrStdout())
		},
	}

	runCmd.Flags().IntVarP(&maxIterations, "max-iterations", "n", 0, "planner rounds before giving up (default from config)")
	return runCmd
}

// runInstruction builds a planning session, runs one instruction to completion
// and prints the action log.
func runInstruction(ctx context.Context, logger *zap.Logger, cfg config.Interface, instruction string, factory service.ComponentFactory, out io.Writer) error {
	components, err := factory.Create(ctx, cfg, service.Options{Planner: true}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	report, runErr := components.Orchestrator.Run(ctx, instruction)
	printEntries(out, report.Entries)
	fmt.Fprintln(out, components.Session.State())

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("Instruction aborted", zap.String("instruction", instruction))
			return runErr
		}
		return fmt.Errorf("instruction %q failed: %w", instruction, runErr)
	}
	logger.Info("Instruction complete",
		zap.String("instruction", instruction),
		zap.Int("iterations", report.Iterations))
	return nil
}

func printEntries(out io.Writer, entries []journal.Entry) {
	for _, e := range entries {
		fmt.Fprintln(out, e.Line())
	}
}
