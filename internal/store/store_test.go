package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/journal"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

// utcTime accepts a time.Time that is already normalized to UTC.
var utcTime = ArgumentMatcherFunc(func(v interface{}) bool {
	ts, ok := v.(time.Time)
	return ok && ts.Location() == time.UTC
})

func strPtr(s string) *string { return &s }

func newMockStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return s, mockPool
}

func seekEntry() journal.Entry {
	return journal.Entry{
		SessionID:   uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		Seq:         2,
		Instruction: "pause at 1:35",
		Directive:   schemas.Directive{Kind: schemas.DirectiveSeek, Target: 95 * time.Second},
		Result:      schemas.ResultFromError(nil),
		At:          time.Date(2025, 3, 1, 7, 0, 0, 0, time.FixedZone("EST", -5*3600)),
	}
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestMigrate(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	mockPool.ExpectExec(flexibleSQLMatcher(schemaSQL)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert an entry without rollback errors", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		s, mockPool := newMockStore(t, zap.New(observedZapCore))
		e := seekEntry()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(insertSQL)).
			WithArgs(
				e.SessionID.String(), 2, "pause at 1:35", "seek",
				strPtr("00:01:35"), (*string)(nil),
				true,
				(*string)(nil), (*string)(nil),
				utcTime,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.Write(ctx, e))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should record failures with their kind", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		e := seekEntry()
		e.Result = schemas.ResultFromError(schemas.NewError(schemas.KindOracle, "classify", "quota exceeded"))

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(insertSQL)).
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(),
				false,
				strPtr("ORACLE_ERROR"), strPtr("classify: quota exceeded"),
				pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.Write(ctx, e))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should roll back when the insert fails", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		insertErr := errors.New("relation \"action_log\" does not exist")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(insertSQL)).
			WillReturnError(insertErr)
		mockPool.ExpectRollback()

		err := s.Write(ctx, seekEntry())
		require.Error(t, err)
		assert.ErrorIs(t, err, insertErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report a failed begin", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := s.Write(ctx, seekEntry())
		assert.ErrorContains(t, err, "failed to begin transaction")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestStore_IsAJournalSink(t *testing.T) {
	var _ journal.Sink = (*Store)(nil)
}
