package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/opl-api/internal/models"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
)

// MemoryLedger is the in-memory reference implementation of the escrow
// ledger. It mirrors the Postgres semantics exactly (idempotent same-direction
// settles, double-settlement detection) and backs the service test suite.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	holds    map[string]*models.EscrowHold
}

// NewMemoryLedger constructs an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]int64),
		holds:    make(map[string]*models.EscrowHold),
	}
}

// Credit adds funds to an account, creating it if missing.
func (l *MemoryLedger) Credit(accountID string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[accountID] += amount
}

// Balance reports the current balance of an account.
func (l *MemoryLedger) Balance(accountID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[accountID]
}

// HoldRecord returns a copy of the hold for inspection.
func (l *MemoryLedger) HoldRecord(holdID string) (models.EscrowHold, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	hold, ok := l.holds[holdID]
	if !ok {
		return models.EscrowHold{}, false
	}
	return *hold, true
}

// Hold earmarks amount credits from the account and returns the hold token.
// Idempotent per request: a held hold for the same request is reused instead
// of debiting the account a second time.
func (l *MemoryLedger) Hold(ctx context.Context, requestID, accountID string, amount int64) (string, error) {
	if amount <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "hold amount must be positive")
	}
	if err := ctx.Err(); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrLedgerUnavailable.Code,
			appErrors.ErrLedgerUnavailable.Status, appErrors.ErrLedgerUnavailable.Message)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, hold := range l.holds {
		if hold.RequestID == requestID && hold.Status == models.HoldStatusHeld {
			return hold.ID, nil
		}
	}
	if l.balances[accountID] < amount {
		return "", appErrors.ErrInsufficientBalance
	}
	l.balances[accountID] -= amount
	hold := &models.EscrowHold{
		ID:        uuid.NewString(),
		RequestID: requestID,
		AccountID: accountID,
		Amount:    amount,
		Status:    models.HoldStatusHeld,
		CreatedAt: time.Now().UTC(),
	}
	l.holds[hold.ID] = hold
	return hold.ID, nil
}

// Release settles the hold to the payee.
func (l *MemoryLedger) Release(ctx context.Context, holdID, payeeID string) error {
	return l.settle(ctx, holdID, models.HoldStatusReleased, payeeID)
}

// Refund settles the hold back to the paying account.
func (l *MemoryLedger) Refund(ctx context.Context, holdID string) error {
	return l.settle(ctx, holdID, models.HoldStatusRefunded, "")
}

func (l *MemoryLedger) settle(ctx context.Context, holdID string, target models.HoldStatus, payeeID string) error {
	if err := ctx.Err(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrLedgerUnavailable.Code,
			appErrors.ErrLedgerUnavailable.Status, appErrors.ErrLedgerUnavailable.Message)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	hold, ok := l.holds[holdID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "escrow hold not found")
	}

	switch hold.Status {
	case target:
		return nil
	case models.HoldStatusHeld:
	default:
		return appErrors.Clone(appErrors.ErrDoubleSettlement,
			fmt.Sprintf("hold %s already settled as %s", holdID, hold.Status))
	}

	now := time.Now().UTC()
	hold.Status = target
	hold.SettledAt = &now
	if target == models.HoldStatusReleased {
		hold.PayeeID = &payeeID
		l.balances[payeeID] += hold.Amount
	} else {
		l.balances[hold.AccountID] += hold.Amount
	}
	return nil
}

// CreditTotals sums hold amounts per settlement state.
func (l *MemoryLedger) CreditTotals(ctx context.Context) (held, released, refunded int64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, hold := range l.holds {
		switch hold.Status {
		case models.HoldStatusHeld:
			held += hold.Amount
		case models.HoldStatusReleased:
			released += hold.Amount
		case models.HoldStatusRefunded:
			refunded += hold.Amount
		}
	}
	return held, released, refunded, nil
}
