// Package journal keeps the ordered action log of a session. The in-memory log
// is what the planner reads; every entry is also fanned out to durable sinks.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/timecode"
)

// Entry is one executed directive and its outcome.
type Entry struct {
	SessionID   uuid.UUID
	Seq         int
	Instruction string
	Directive   schemas.Directive
	Result      schemas.OperationResult
	At          time.Time
}

// Action renders the directive for humans, with seek targets as HH:MM:SS.
func (e Entry) Action() string {
	if e.Directive.Kind == schemas.DirectiveSeek {
		return fmt.Sprintf("seek(%s)", timecode.Format(e.Directive.Target))
	}
	return string(e.Directive.Kind)
}

// Outcome summarizes the result in a few words.
func (e Entry) Outcome() string {
	switch {
	case e.Result.Error != nil:
		return fmt.Sprintf("failed (%s: %s)", e.Result.Error.Kind, e.Result.Error.Message)
	case e.Result.Converged:
		return "converged"
	default:
		return "no action"
	}
}

// Line is the form the planner sees in its action log.
func (e Entry) Line() string {
	return fmt.Sprintf("%d. %s -> %s", e.Seq, e.Action(), e.Outcome())
}

func (e Entry) String() string { return e.Line() }

// Record is the flat, serializable form of an Entry shared by the sinks.
type Record struct {
	SessionID    string    `json:"session_id"`
	Seq          int       `json:"seq"`
	Instruction  string    `json:"instruction"`
	Action       string    `json:"action"`
	Target       string    `json:"target,omitempty"`
	Thought      string    `json:"thought,omitempty"`
	Converged    bool      `json:"converged"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	At           time.Time `json:"at"`
}

// Record flattens the entry. Timestamps are normalized to UTC.
func (e Entry) Record() Record {
	r := Record{
		SessionID:   e.SessionID.String(),
		Seq:         e.Seq,
		Instruction: e.Instruction,
		Action:      string(e.Directive.Kind),
		Thought:     e.Directive.Thought,
		Converged:   e.Result.Converged,
		At:          e.At.UTC(),
	}
	if e.Directive.Kind == schemas.DirectiveSeek {
		r.Target = timecode.Format(e.Directive.Target)
	}
	if e.Result.Error != nil {
		r.ErrorKind = string(e.Result.Error.Kind)
		r.ErrorMessage = e.Result.Error.Message
	}
	return r
}

// Sink persists entries somewhere durable.
type Sink interface {
	Write(ctx context.Context, e Entry) error
	Close() error
}

// Log is the ordered action log of one session. It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	session uuid.UUID
	entries []Entry
	sinks   []Sink
	logger  *zap.Logger
	now     func() time.Time
}

// NewLog starts a log for a fresh session.
func NewLog(logger *zap.Logger, sinks ...Sink) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Log{
		session: uuid.New(),
		sinks:   sinks,
		now:     time.Now,
	}
	l.logger = logger.Named("journal").With(zap.String("session_id", l.session.String()))
	return l
}

// SessionID identifies the session across sinks.
func (l *Log) SessionID() uuid.UUID { return l.session }

// Append records a directive and its result. Sink failures are logged and do
// not fail the append; the in-memory log stays authoritative.
func (l *Log) Append(ctx context.Context, instruction string, d schemas.Directive, res schemas.OperationResult) Entry {
	l.mu.Lock()
	e := Entry{
		SessionID:   l.session,
		Seq:         len(l.entries) + 1,
		Instruction: instruction,
		Directive:   d,
		Result:      res,
		At:          l.now(),
	}
	l.entries = append(l.entries, e)
	sinks := l.sinks
	l.mu.Unlock()

	l.logger.Info("Action recorded",
		zap.Int("seq", e.Seq),
		zap.String("action", e.Action()),
		zap.String("outcome", e.Outcome()))

	for _, s := range sinks {
		if err := s.Write(ctx, e); err != nil {
			l.logger.Warn("Failed to persist action", zap.Int("seq", e.Seq), zap.Error(err))
		}
	}
	return e
}

// Entries returns a copy of the log.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Lines renders the log for the planner, oldest first.
func (l *Log) Lines() []string {
	entries := l.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Line()
	}
	return lines
}

// Close closes every sink and reports all failures.
func (l *Log) Close() error {
	l.mu.Lock()
	sinks := l.sinks
	l.sinks = nil
	l.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
