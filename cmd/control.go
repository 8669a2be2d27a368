package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/config"
	"github.com/xkilldash9x/vidpilot/internal/observability"
	"github.com/xkilldash9x/vidpilot/internal/orchestrator"
	"github.com/xkilldash9x/vidpilot/internal/service"
	"github.com/xkilldash9x/vidpilot/internal/timecode"
)

func newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Make sure the video is playing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDirectiveCmd(cmd, schemas.Directive{Kind: schemas.DirectivePlay})
		},
	}
}

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Make sure the video is paused",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDirectiveCmd(cmd, schemas.Directive{Kind: schemas.DirectivePause})
		},
	}
}

func newSeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seek HH:MM:SS",
		Short: "Move the playhead to a timestamp and leave the video paused",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := timecode.Parse(args[0])
			if err != nil {
				return err
			}
			return runDirectiveCmd(cmd, schemas.Directive{Kind: schemas.DirectiveSeek, Target: target})
		},
	}
}

func runDirectiveCmd(cmd *cobra.Command, d schemas.Directive) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	return runDirective(ctx, observability.GetLogger(), cfg, d, componentFactory, cmd.OutOrStdout())
}

// runDirective executes one directive without a planner and journals it under
// the command line that asked for it.
func runDirective(ctx context.Context, logger *zap.Logger, cfg config.Interface, d schemas.Directive, factory service.ComponentFactory, out io.Writer) error {
	components, err := factory.Create(ctx, cfg, service.Options{}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	res, err := orchestrator.Dispatch(ctx, components.Session, d, logger)
	if err != nil && errors.Is(err, context.Canceled) {
		return err
	}
	entry := components.Journal.Append(ctx, instructionFor(d), d, res)
	fmt.Fprintln(out, entry.Line())
	fmt.Fprintln(out, components.Session.State())
	return err
}

// instructionFor is how a direct command appears in the journal.
func instructionFor(d schemas.Directive) string {
	if d.Kind == schemas.DirectiveSeek {
		return "seek " + timecode.Format(d.Target)
	}
	return string(d.Kind)
}
