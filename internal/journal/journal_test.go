package journal

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/vidpilot/api/schemas"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Write(ctx context.Context, e Entry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockSink) Close() error {
	args := m.Called()
	return args.Error(0)
}

var fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLog(t *testing.T, sinks ...Sink) *Log {
	l := NewLog(zaptest.NewLogger(t), sinks...)
	l.now = func() time.Time { return fixedTime }
	return l
}

func TestLog_AppendNumbersEntries(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	l.Append(ctx, "pause at 1:35", schemas.Directive{Kind: schemas.DirectivePause}, schemas.ResultFromError(nil))
	e := l.Append(ctx, "pause at 1:35", schemas.Directive{Kind: schemas.DirectiveSeek, Target: 95 * time.Second},
		schemas.ResultFromError(schemas.NewError(schemas.KindConvergenceTimeout, "seek", "seek did not converge")))

	assert.Equal(t, 2, e.Seq)
	assert.Equal(t, l.SessionID(), e.SessionID)
	assert.Equal(t, fixedTime, e.At)
	assert.Equal(t, []string{
		"1. pause -> converged",
		"2. seek(00:01:35) -> failed (CONVERGENCE_TIMEOUT: seek: seek did not converge)",
	}, l.Lines())
}

func TestLog_EntriesIsACopy(t *testing.T) {
	l := newTestLog(t)
	l.Append(context.Background(), "play", schemas.Directive{Kind: schemas.DirectivePlay}, schemas.ResultFromError(nil))

	got := l.Entries()
	got[0].Seq = 99
	assert.Equal(t, 1, l.Entries()[0].Seq)
}

func TestLog_UnresolvedHasNoAction(t *testing.T) {
	l := newTestLog(t)
	e := l.Append(context.Background(), "do a thing", schemas.Directive{Kind: schemas.DirectiveUnresolved}, schemas.OperationResult{})
	assert.Equal(t, "1. unresolved -> no action", e.Line())
}

func TestLog_FansOutToSinks(t *testing.T) {
	sink := new(MockSink)
	sink.On("Write", mock.Anything, mock.MatchedBy(func(e Entry) bool { return e.Seq == 1 })).Return(nil).Once()
	sink.On("Close").Return(nil).Once()

	l := newTestLog(t, sink)
	l.Append(context.Background(), "play", schemas.Directive{Kind: schemas.DirectivePlay}, schemas.ResultFromError(nil))
	require.NoError(t, l.Close())
	sink.AssertExpectations(t)
}

func TestLog_SinkFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := new(MockSink)
	sink.On("Write", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	l := NewLog(zap.New(core), sink)
	e := l.Append(context.Background(), "play", schemas.Directive{Kind: schemas.DirectivePlay}, schemas.ResultFromError(nil))

	assert.Equal(t, 1, e.Seq)
	assert.Len(t, l.Entries(), 1)
	require.Equal(t, 1, logs.FilterMessage("Failed to persist action").Len())
}

func TestLog_CloseJoinsErrors(t *testing.T) {
	a, b := new(MockSink), new(MockSink)
	a.On("Close").Return(errors.New("a failed"))
	b.On("Close").Return(errors.New("b failed"))

	err := newTestLog(t, a, b).Close()
	assert.ErrorContains(t, err, "a failed")
	assert.ErrorContains(t, err, "b failed")
}

func TestLog_ConcurrentAppends(t *testing.T) {
	l := newTestLog(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(context.Background(), "play", schemas.Directive{Kind: schemas.DirectivePlay}, schemas.ResultFromError(nil))
		}()
	}
	wg.Wait()

	entries := l.Entries()
	require.Len(t, entries, 20)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Seq)
	}
}

func TestEntry_Record(t *testing.T) {
	local := time.Date(2025, 3, 1, 7, 0, 0, 0, time.FixedZone("EST", -5*3600))
	e := Entry{
		Seq:         3,
		Instruction: "go to 1:10:00",
		Directive:   schemas.Directive{Kind: schemas.DirectiveSeek, Target: 4200 * time.Second, Thought: "user wants 1h10m"},
		Result:      schemas.ResultFromError(schemas.NewError(schemas.KindOracle, "classify", "quota")),
		At:          local,
	}
	r := e.Record()
	assert.Equal(t, "seek", r.Action)
	assert.Equal(t, "01:10:00", r.Target)
	assert.Equal(t, "user wants 1h10m", r.Thought)
	assert.Equal(t, "ORACLE_ERROR", r.ErrorKind)
	assert.Equal(t, fixedTime, r.At)
	assert.Equal(t, time.UTC, r.At.Location())
}

func TestFileSink_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "actions.jsonl")
	sink, err := NewFileSink(path, 0)
	require.NoError(t, err)

	l := newTestLog(t, sink)
	ctx := context.Background()
	l.Append(ctx, "pause", schemas.Directive{Kind: schemas.DirectivePause}, schemas.ResultFromError(nil))
	l.Append(ctx, "pause", schemas.Directive{Kind: schemas.DirectiveFinished}, schemas.OperationResult{Converged: true})
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, records, 2)
	assert.Equal(t, "pause", records[0].Action)
	assert.Equal(t, "finished", records[1].Action)
	assert.Equal(t, l.SessionID().String(), records[1].SessionID)
}

func TestFileSink_RequiresPath(t *testing.T) {
	_, err := NewFileSink("", 0)
	assert.Error(t, err)
}
