package schema

import "time"

// Interview is the per-user history summary written when a session finishes.
// It is the row behind the dashboard list, keyed by (uid, session).
type Interview struct {
	UID       string    `gorm:"primaryKey;size:64"`
	SessionID string    `gorm:"primaryKey;size:64"`
	Date      time.Time `gorm:"index"`
	Role      string    `gorm:"size:255"`
	Score     float64
	Style     string `gorm:"size:64"`
	Track     string `gorm:"size:64"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
