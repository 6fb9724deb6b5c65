package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/opl-api/internal/models"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
)

// LedgerRepository is the Postgres escrow ledger. Balance math happens inside
// a transaction with a guard on the balance column, so concurrent holds can
// never double-spend the same funds.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Hold earmarks amount credits from the account and returns the hold token.
// Idempotent per request: when a held hold already exists for the request the
// existing token is returned and the account is not debited again, so a fund
// retried after a lost state write never double-charges.
func (r *LedgerRepository) Hold(ctx context.Context, requestID, accountID string, amount int64) (string, error) {
	if amount <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "hold amount must be positive")
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", ledgerFailure("begin hold tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existing string
	const find = `SELECT id FROM escrow_holds WHERE request_id = $1 AND status = $2 FOR UPDATE`
	err = tx.GetContext(ctx, &existing, find, requestID, models.HoldStatusHeld)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", ledgerFailure("find existing hold", err)
	}

	const debit = `UPDATE escrow_accounts SET balance = balance - $2, updated_at = $3
	WHERE id = $1 AND balance >= $2`
	result, err := tx.ExecContext(ctx, debit, accountID, amount, time.Now().UTC())
	if err != nil {
		return "", ledgerFailure("debit account", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return "", ledgerFailure("check debit rows", err)
	}
	if rows == 0 {
		return "", appErrors.ErrInsufficientBalance
	}

	hold := models.EscrowHold{
		ID:        uuid.NewString(),
		RequestID: requestID,
		AccountID: accountID,
		Amount:    amount,
		Status:    models.HoldStatusHeld,
		CreatedAt: time.Now().UTC(),
	}
	const insert = `INSERT INTO escrow_holds (id, request_id, account_id, amount, status, created_at)
	VALUES (:id, :request_id, :account_id, :amount, :status, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, hold); err != nil {
		return "", ledgerFailure("insert hold", err)
	}

	if err := tx.Commit(); err != nil {
		return "", ledgerFailure("commit hold tx", err)
	}
	return hold.ID, nil
}

// Release settles the hold to the payee. Releasing an already-released hold is
// a no-op so a retried state write stays safe; releasing a refunded hold is a
// double settlement.
func (r *LedgerRepository) Release(ctx context.Context, holdID, payeeID string) error {
	return r.settle(ctx, holdID, models.HoldStatusReleased, payeeID)
}

// Refund settles the hold back to the paying account.
func (r *LedgerRepository) Refund(ctx context.Context, holdID string) error {
	return r.settle(ctx, holdID, models.HoldStatusRefunded, "")
}

func (r *LedgerRepository) settle(ctx context.Context, holdID string, target models.HoldStatus, payeeID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return ledgerFailure("begin settle tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var hold models.EscrowHold
	const load = `SELECT id, account_id, amount, status, payee_id, created_at, settled_at
	FROM escrow_holds WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &hold, load, holdID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "escrow hold not found")
		}
		return ledgerFailure("load hold", err)
	}

	switch hold.Status {
	case target:
		// Ledger already applied and the state write is being retried.
		return nil
	case models.HoldStatusHeld:
	default:
		return appErrors.Clone(appErrors.ErrDoubleSettlement,
			fmt.Sprintf("hold %s already settled as %s", holdID, hold.Status))
	}

	now := time.Now().UTC()
	creditAccount := hold.AccountID
	var payee interface{}
	if target == models.HoldStatusReleased {
		creditAccount = payeeID
		payee = payeeID
	}

	const update = `UPDATE escrow_holds SET status = $2, payee_id = $3, settled_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, holdID, target, payee, now); err != nil {
		return ledgerFailure("settle hold", err)
	}

	const credit = `INSERT INTO escrow_accounts (id, balance, updated_at) VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET balance = escrow_accounts.balance + $2, updated_at = $3`
	if _, err := tx.ExecContext(ctx, credit, creditAccount, hold.Amount, now); err != nil {
		return ledgerFailure("credit account", err)
	}

	if err := tx.Commit(); err != nil {
		return ledgerFailure("commit settle tx", err)
	}
	return nil
}

// CreditTotals sums hold amounts per settlement state for the stats overview.
func (r *LedgerRepository) CreditTotals(ctx context.Context) (held, released, refunded int64, err error) {
	const query = `SELECT status, COALESCE(SUM(amount), 0) AS total FROM escrow_holds GROUP BY status`
	rows := []struct {
		Status models.HoldStatus `db:"status"`
		Total  int64             `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return 0, 0, 0, ledgerFailure("sum hold amounts", err)
	}
	for _, row := range rows {
		switch row.Status {
		case models.HoldStatusHeld:
			held = row.Total
		case models.HoldStatusReleased:
			released = row.Total
		case models.HoldStatusRefunded:
			refunded = row.Total
		}
	}
	return held, released, refunded, nil
}

// ledgerFailure maps infrastructure errors to the retryable taxonomy entry.
// Domain outcomes (insufficient balance, double settlement) never pass
// through here.
func ledgerFailure(op string, err error) error {
	return appErrors.Wrap(fmt.Errorf("%s: %w", op, err),
		appErrors.ErrLedgerUnavailable.Code, appErrors.ErrLedgerUnavailable.Status,
		appErrors.ErrLedgerUnavailable.Message)
}
