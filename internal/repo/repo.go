package repo

import (
	"gorm.io/gorm"

	"entrevia/schema"
)

// Repository bundles the per-aggregate stores behind one handle.
type Repository struct {
	User    *UserRepo
	Session *SessionRepo
	Ledger  *LedgerRepo
	db      *gorm.DB
}

func New(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(
		&schema.User{},
		&schema.Session{},
		&schema.Interview{},
		&schema.CreditLedger{},
	); err != nil {
		return nil, err
	}

	return &Repository{
		User:    &UserRepo{db: db},
		Session: &SessionRepo{db: db},
		Ledger:  &LedgerRepo{db: db},
		db:      db,
	}, nil
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}
