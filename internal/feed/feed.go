// Package feed follows a growing text file line by line, reopening it when it
// is rotated or recreated.
package feed

import (
	"context"
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"
)

// Options controls where a Tailer starts and how it notices growth.
type Options struct {
	// FromStart replays the existing file before following it.
	FromStart bool
	// Poll stats the file instead of using inotify.
	Poll bool
}

// Tailer follows one file.
type Tailer struct {
	logger *zap.Logger
	path   string
	opts   Options
}

// NewTailer prepares to follow path; nothing is opened until Follow.
func NewTailer(path string, opts Options, logger *zap.Logger) (*Tailer, error) {
	if path == "" {
		return nil, fmt.Errorf("no file to follow")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tailer{logger: logger.Named("feed"), path: path, opts: opts}, nil
}

// Path is the followed file.
func (t *Tailer) Path() string { return t.path }

// Follow passes each line to fn until ctx is done, the tailer stops or fn
// returns an error. The file must exist when Follow is called.
func (t *Tailer) Follow(ctx context.Context, fn func(line string) error) error {
	whence := io.SeekEnd
	if t.opts.FromStart {
		whence = io.SeekStart
	}
	tl, err := tail.TailFile(t.path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Poll:      t.opts.Poll,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail %s: %w", t.path, err)
	}
	defer func() {
		_ = tl.Stop()
		tl.Cleanup()
	}()

	t.logger.Info("Following file.", zap.String("path", t.path), zap.Bool("from_start", t.opts.FromStart))
	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("Stopping tailer.")
			return ctx.Err()

		case line, ok := <-tl.Lines:
			if !ok {
				t.logger.Info("Tailer channel closed.")
				return tl.Err()
			}
			if line.Err != nil {
				t.logger.Warn("Error reading from followed file", zap.Error(line.Err))
				continue
			}
			if err := fn(line.Text); err != nil {
				return err
			}
		}
	}
}
