package schema

import "time"

// Ledger statuses.
const (
	LedgerCredited     = "credited"
	LedgerUserNotFound = "user_not_found"
)

// CreditLedger records every processed payment-webhook event. The event id is
// the primary key, which makes credit grants idempotent across webhook
// redeliveries.
type CreditLedger struct {
	EventID   string `gorm:"primaryKey;size:128"`
	Email     string `gorm:"size:255;index"`
	Credits   int
	Product   string `gorm:"size:255"`
	Status    string `gorm:"size:32"`
	Payload   []byte `gorm:"type:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
