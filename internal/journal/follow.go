package journal

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/internal/feed"
)

// Follower tails a journal file written by a FileSink and decodes each line as
// it is appended.
type Follower struct {
	logger *zap.Logger
	tailer *feed.Tailer
}

// NewFollower prepares to follow path; nothing is opened until Follow.
func NewFollower(path string, opts feed.Options, logger *zap.Logger) (*Follower, error) {
	if path == "" {
		return nil, fmt.Errorf("journal.file must be configured to follow the action log")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	tailer, err := feed.NewTailer(path, opts, logger)
	if err != nil {
		return nil, err
	}
	return &Follower{logger: logger.Named("journal-follower"), tailer: tailer}, nil
}

// Follow delivers records to fn until ctx is done, the file goes away or fn
// returns an error. Lines that do not decode are logged and skipped.
func (f *Follower) Follow(ctx context.Context, fn func(Record) error) error {
	return f.tailer.Follow(ctx, func(line string) error {
		if line == "" {
			return nil
		}
		var rec Record
		if err := json.UnmarshalFromString(line, &rec); err != nil {
			f.logger.Warn("Skipping malformed journal line", zap.String("line", line), zap.Error(err))
			return nil
		}
		return fn(rec)
	})
}

// Line renders a record the way Entry.Line renders the live entry.
func (r Record) Line() string {
	action := r.Action
	if r.Target != "" {
		action = fmt.Sprintf("%s(%s)", r.Action, r.Target)
	}
	outcome := "no action"
	switch {
	case r.ErrorKind != "":
		outcome = fmt.Sprintf("failed (%s: %s)", r.ErrorKind, r.ErrorMessage)
	case r.Converged:
		outcome = "converged"
	}
	return fmt.Sprintf("%d. %s -> %s", r.Seq, action, outcome)
}
