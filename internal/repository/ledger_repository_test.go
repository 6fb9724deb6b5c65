package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/opl-api/internal/models"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
)

func newLedgerRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLedgerHoldDebitsAndInserts(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM escrow_holds WHERE request_id = $1 AND status = $2 FOR UPDATE")).
		WithArgs("req-1", models.HoldStatusHeld).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE escrow_accounts SET balance = balance - $2")).
		WithArgs("student-1", int64(30), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO escrow_holds")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	holdID, err := repo.Hold(context.Background(), "req-1", "student-1", 30)
	require.NoError(t, err)
	require.NotEmpty(t, holdID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerHoldReusesExistingHeldHold(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM escrow_holds WHERE request_id = $1 AND status = $2 FOR UPDATE")).
		WithArgs("req-1", models.HoldStatusHeld).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("hold-1"))
	mock.ExpectRollback()

	holdID, err := repo.Hold(context.Background(), "req-1", "student-1", 30)
	require.NoError(t, err)
	require.Equal(t, "hold-1", holdID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerHoldInsufficientBalance(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM escrow_holds WHERE request_id = $1 AND status = $2 FOR UPDATE")).
		WithArgs("req-1", models.HoldStatusHeld).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE escrow_accounts SET balance = balance - $2")).
		WithArgs("student-1", int64(500), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Hold(context.Background(), "req-1", "student-1", 500)
	require.ErrorIs(t, err, appErrors.ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerHoldRejectsNonPositiveAmount(t *testing.T) {
	db, _, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	_, err := repo.Hold(context.Background(), "req-1", "student-1", 0)
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func holdRow(status models.HoldStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "account_id", "amount", "status", "payee_id", "created_at", "settled_at"}).
		AddRow("hold-1", "student-1", int64(30), status, nil, time.Now().UTC(), nil)
}

func TestLedgerReleaseCreditsPayee(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM escrow_holds WHERE id = $1 FOR UPDATE")).
		WithArgs("hold-1").
		WillReturnRows(holdRow(models.HoldStatusHeld))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE escrow_holds SET status = $2")).
		WithArgs("hold-1", models.HoldStatusReleased, "teacher-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE SET balance = escrow_accounts.balance + $2")).
		WithArgs("teacher-1", int64(30), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Release(context.Background(), "hold-1", "teacher-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerReleaseIdempotentOnRetry(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM escrow_holds WHERE id = $1 FOR UPDATE")).
		WithArgs("hold-1").
		WillReturnRows(holdRow(models.HoldStatusReleased))
	mock.ExpectRollback()

	require.NoError(t, repo.Release(context.Background(), "hold-1", "teacher-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRefundAfterReleaseIsDoubleSettlement(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM escrow_holds WHERE id = $1 FOR UPDATE")).
		WithArgs("hold-1").
		WillReturnRows(holdRow(models.HoldStatusReleased))
	mock.ExpectRollback()

	err := repo.Refund(context.Background(), "hold-1")
	require.ErrorIs(t, err, appErrors.ErrDoubleSettlement)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerSettleMissingHold(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM escrow_holds WHERE id = $1 FOR UPDATE")).
		WithArgs("hold-404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.Refund(context.Background(), "hold-404")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerCreditTotals(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	rows := sqlmock.NewRows([]string{"status", "total"}).
		AddRow("held", int64(90)).
		AddRow("released", int64(120)).
		AddRow("refunded", int64(60))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COALESCE(SUM(amount), 0) AS total FROM escrow_holds")).
		WillReturnRows(rows)

	held, released, refunded, err := repo.CreditTotals(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(90), held)
	require.Equal(t, int64(120), released)
	require.Equal(t, int64(60), refunded)
	require.NoError(t, mock.ExpectationsWereMet())
}
