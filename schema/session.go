package schema

import "time"

// Session statuses.
const (
	SessionStarted  = "started"
	SessionFinished = "finished"

	PlanPending   = "pending"
	PlanCompleted = "completed"
)

// Session is one interview attempt. Config is fixed at creation; the plan is
// written once by plan generation and the report once at finish. The JSON
// columns keep the wire shapes from the api package verbatim.
type Session struct {
	ID           string `gorm:"primaryKey;size:64"`
	UID          string `gorm:"size:64;index"`
	Status       string `gorm:"size:32"`
	PlanStatus   string `gorm:"size:32"`
	Config       []byte `gorm:"type:json"`
	Plan         []byte `gorm:"type:json"`
	Report       []byte `gorm:"type:json"`
	Meta         []byte `gorm:"type:json"`
	ProviderUsed string `gorm:"size:64"`
	ModelUsed    string `gorm:"size:128"`
	LatencyMS    int
	TokensUsed   *int
	FinishedAt   *time.Time
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}
