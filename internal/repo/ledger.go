package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"entrevia/schema"
)

type LedgerRepo struct {
	db *gorm.DB
}

// Exists reports whether a webhook event id has already been processed.
func (r *LedgerRepo) Exists(ctx context.Context, eventID string) (bool, error) {
	var entry schema.CreditLedger
	err := r.db.WithContext(ctx).
		Select("event_id").
		First(&entry, "event_id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Record writes the ledger entry for an event, ignoring duplicates so a
// concurrent redelivery cannot double-credit.
func (r *LedgerRepo) Record(ctx context.Context, entry *schema.CreditLedger) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
