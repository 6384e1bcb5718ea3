package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"entrevia/schema"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepo struct {
	db *gorm.DB
}

func (r *SessionRepo) Create(ctx context.Context, session *schema.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// Get loads a session owned by uid. Ownership is part of the lookup so a
// caller can never read another user's session.
func (r *SessionRepo) Get(ctx context.Context, uid, id string) (*schema.Session, error) {
	var session schema.Session
	err := r.db.WithContext(ctx).
		First(&session, "id = ? AND uid = ?", id, uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SavePlan stores the generated plan with its provenance and flips the plan
// status to completed.
func (r *SessionRepo) SavePlan(ctx context.Context, uid, id string, plan []byte, provider, model string, latencyMS int, tokens *int) error {
	result := r.db.WithContext(ctx).Model(&schema.Session{}).
		Where("id = ? AND uid = ?", id, uid).
		Updates(map[string]any{
			"plan":          plan,
			"plan_status":   schema.PlanCompleted,
			"provider_used": provider,
			"model_used":    model,
			"latency_ms":    latencyMS,
			"tokens_used":   tokens,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepo) Finish(ctx context.Context, uid, id string, report, meta []byte) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&schema.Session{}).
		Where("id = ? AND uid = ?", id, uid).
		Updates(map[string]any{
			"status":      schema.SessionFinished,
			"report":      report,
			"meta":        meta,
			"finished_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, uid, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND uid = ?", id, uid).
		Delete(&schema.Session{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteStaleStarted removes sessions that never finished and are older than
// the cutoff. Runs from the cleanup cron.
func (r *SessionRepo) DeleteStaleStarted(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", schema.SessionStarted, cutoff).
		Delete(&schema.Session{})
	return result.RowsAffected, result.Error
}
