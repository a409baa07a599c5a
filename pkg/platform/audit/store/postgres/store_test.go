package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "provenance/pkg/platform/audit"
	txcontext "provenance/pkg/platform/tx"
)

func TestStore_AppendJoinsCallerTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db)
	event := audit.Event{
		Timestamp: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		AssetID:   3,
		ActorID:   "mint",
		Action:    string(audit.EventAssetCreated),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox")).
		WithArgs(sqlmock.AnyArg(), "asset", "3", "asset_created", sqlmock.AnyArg(), event.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sqlTx, err := db.Begin()
	require.NoError(t, err)
	ctx := txcontext.WithTx(context.Background(), sqlTx)
	require.NoError(t, store.Append(ctx, event))
	require.NoError(t, sqlTx.Commit())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListByAsset(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	payload, err := json.Marshal(audit.Event{
		Category: audit.CategoryCompliance,
		AssetID:  9,
		ActorID:  "bench-1",
		Action:   string(audit.EventCustodyTransferred),
		Subject:  "bench-2",
	})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload")).
		WithArgs("asset", "9").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	events, err := New(db).ListByAsset(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "bench-2", events[0].Subject)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListByAsset_EmptyIsNotNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload")).
		WithArgs("asset", "3").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	events, err := New(db).ListByAsset(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, events)
	assert.Empty(t, events)

	body, err := json.Marshal(events)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(body))
	require.NoError(t, mock.ExpectationsWereMet())
}
