package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/talkback/pkg/audit"
)

const (
	testYear         = 2026
	testMonth        = 3
	testDurationMS   = 42
	testFilterLimit  = 10
	testFilterOffset = 5
	testToggleCount  = 4
	testJoinCount    = 2
)

func newTestEvent() audit.Event {
	return audit.Event{
		ID:           "evt-123",
		Timestamp:    time.Date(testYear, testMonth, 15, 10, 30, 0, 0, time.UTC),
		DurationMS:   testDurationMS,
		Kind:         audit.KindToggle,
		SessionID:    "sess-789",
		ConnectionID: "conn-abc",
		Role:         "controller",
		Details:      map[string]any{"delivered": float64(1)},
		Success:      true,
	}
}

func addEventRow(rows *sqlmock.Rows, event audit.Event) {
	details, _ := json.Marshal(event.Details)
	rows.AddRow(
		event.ID, event.Timestamp, event.DurationMS, string(event.Kind),
		event.SessionID, event.ConnectionID, event.Role, details,
		event.Success, event.ErrorMessage,
	)
}

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	t.Run("custom retention", func(t *testing.T) {
		store := New(db, Config{RetentionDays: 7})
		assert.Equal(t, 7, store.retentionDays)
		assert.Equal(t, db, store.db)
	})

	t.Run("default retention when zero", func(t *testing.T) {
		store := New(db, Config{})
		assert.Equal(t, defaultRetentionDays, store.retentionDays)
	})
}

func TestLog_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	event := newTestEvent()
	details, err := json.Marshal(event.Details)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO session_events").WithArgs(
		event.ID,
		event.Timestamp,
		event.DurationMS,
		string(event.Kind),
		event.SessionID,
		event.ConnectionID,
		event.Role,
		details,
		event.Success,
		event.ErrorMessage,
		"2026-03-15",
	).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Log(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLog_NilDetails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	event := newTestEvent()
	event.Details = nil

	mock.ExpectExec("INSERT INTO session_events").WithArgs(
		sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
		sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
		[]byte("{}"),
		sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
	).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Log(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLog_DBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	mock.ExpectExec("INSERT INTO session_events").WillReturnError(errors.New("connection refused"))

	err = store.Log(context.Background(), newTestEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inserting session event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_NoFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	event := newTestEvent()
	rows := sqlmock.NewRows(eventColumns)
	addEventRow(rows, event)
	mock.ExpectQuery("SELECT .+ FROM session_events ORDER BY timestamp DESC").WillReturnRows(rows)

	results, err := store.Query(context.Background(), audit.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, event, results[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_AllFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})

	startTime := time.Date(testYear, testMonth, 1, 0, 0, 0, 0, time.UTC)
	endTime := time.Date(testYear, testMonth, 30, 23, 59, 59, 0, time.UTC)
	success := false

	mock.ExpectQuery("SELECT .+ FROM session_events WHERE").WithArgs(
		startTime,
		endTime,
		"sess-789",
		string(audit.KindToggle),
		false,
		testFilterLimit,
		testFilterOffset,
	).WillReturnRows(sqlmock.NewRows(eventColumns))

	results, err := store.Query(context.Background(), audit.QueryFilter{
		StartTime: &startTime,
		EndTime:   &endTime,
		SessionID: "sess-789",
		Kind:      audit.KindToggle,
		Success:   &success,
		Limit:     testFilterLimit,
		Offset:    testFilterOffset,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_DBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	mock.ExpectQuery("SELECT .+ FROM session_events").WillReturnError(errors.New("db unavailable"))

	results, err := store.Query(context.Background(), audit.QueryFilter{})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "querying session events")
	assert.Contains(t, err.Error(), "db unavailable")
}

func TestQuery_ScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	rows := sqlmock.NewRows([]string{"id", "timestamp"}).AddRow("evt-1", "not-a-timestamp")
	mock.ExpectQuery("SELECT .+ FROM session_events").WillReturnRows(rows)

	_, err = store.Query(context.Background(), audit.QueryFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning session event row")
}

func TestCountByKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{})
	rows := sqlmock.NewRows([]string{"kind", "count"}).
		AddRow(string(audit.KindToggle), testToggleCount).
		AddRow(string(audit.KindJoin), testJoinCount)
	mock.ExpectQuery("SELECT kind, COUNT\\(\\*\\) FROM session_events WHERE session_id = \\$1 GROUP BY kind").
		WithArgs("sess-1").
		WillReturnRows(rows)

	counts, err := store.CountByKind(context.Background(), audit.QueryFilter{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, map[audit.Kind]int{
		audit.KindToggle: testToggleCount,
		audit.KindJoin:   testJoinCount,
	}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanup(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		store := New(db, Config{RetentionDays: 7})
		mock.ExpectExec("DELETE FROM session_events WHERE timestamp").
			WithArgs(sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 5))

		assert.NoError(t, store.Cleanup(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		store := New(db, Config{RetentionDays: 7})
		mock.ExpectExec("DELETE FROM session_events").WillReturnError(errors.New("cleanup failed"))

		err = store.Cleanup(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cleaning up session events")
	})
}

func TestClose_NilCancel_NoPanic(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.NoError(t, New(db, Config{}).Close())
}

func TestClose_StopsCleanupRoutine(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := New(db, Config{RetentionDays: 7})

	mock.MatchExpectationsInOrder(false)
	for range 10 {
		mock.ExpectExec("DELETE FROM session_events").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	store.StartCleanupRoutine(10 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.NoError(t, store.Close())
}
