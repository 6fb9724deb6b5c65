package models

import "time"

// HoldStatus tracks the settlement state of an escrow hold.
type HoldStatus string

const (
	HoldStatusHeld     HoldStatus = "held"
	HoldStatusReleased HoldStatus = "released"
	HoldStatusRefunded HoldStatus = "refunded"
)

// EscrowAccount carries the credit balance for an opaque external identity.
type EscrowAccount struct {
	ID        string    `db:"id" json:"id"`
	Balance   int64     `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// EscrowHold earmarks credits taken from an account until exactly one of
// release or refund settles it. At most one held hold exists per request:
// taking a hold is idempotent per request id.
type EscrowHold struct {
	ID        string     `db:"id" json:"id"`
	RequestID string     `db:"request_id" json:"requestId"`
	AccountID string     `db:"account_id" json:"accountId"`
	Amount    int64      `db:"amount" json:"amount"`
	Status    HoldStatus `db:"status" json:"status"`
	PayeeID   *string    `db:"payee_id" json:"payeeId,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	SettledAt *time.Time `db:"settled_at" json:"settledAt,omitempty"`
}

// SettlementRecord is one row of the terminal-request audit export.
type SettlementRecord struct {
	RequestID    string        `db:"request_id"`
	StudentID    string        `db:"student_id"`
	TeacherID    string        `db:"teacher_id"`
	Status       RequestStatus `db:"status"`
	CreditAmount int64         `db:"credit_amount"`
	HoldStatus   HoldStatus    `db:"hold_status"`
	SettledAt    *time.Time    `db:"settled_at"`
}
