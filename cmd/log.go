package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/internal/feed"
	"github.com/xkilldash9x/vidpilot/internal/journal"
	"github.com/xkilldash9x/vidpilot/internal/observability"
)

// newLogCmd creates the `log` command, which follows the journal file that
// other vidpilot processes append to.
func newLogCmd() *cobra.Command {
	var opts feed.Options

	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Follow the action log as sessions append to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runLog(ctx, observability.GetLogger(), cfg.Journal().File, opts, cmd.OutOrStdout())
		},
	}

	logCmd.Flags().BoolVar(&opts.FromStart, "from-start", false, "print the existing log before following it")
	logCmd.Flags().BoolVar(&opts.Poll, "poll", false, "poll the file instead of using filesystem notifications")
	return logCmd
}

// runLog prints each record until ctx is cancelled.
func runLog(ctx context.Context, logger *zap.Logger, path string, opts feed.Options, out io.Writer) error {
	follower, err := journal.NewFollower(path, opts, logger)
	if err != nil {
		return err
	}
	err = follower.Follow(ctx, func(r journal.Record) error {
		_, werr := fmt.Fprintf(out, "[%s] %s: %s\n", r.At.Local().Format("15:04:05"), r.Instruction, r.Line())
		return werr
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
