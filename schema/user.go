package schema

import "time"

// User mirrors the identity-provider profile and owns the credit balance.
// Credits are mutated only through transactional debit/grant operations.
type User struct {
	UID             string `gorm:"primaryKey;size:64"`
	Name            string `gorm:"size:255"`
	DisplayName     string `gorm:"size:255"`
	Email           string `gorm:"size:255;index"`
	Avatar          string `gorm:"size:512"`
	Plan            string `gorm:"size:32;default:free"`
	Credits         int
	LastInterviewAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
