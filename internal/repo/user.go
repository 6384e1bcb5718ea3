package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	sortutil "entrevia/internal/utils/sort"
	"entrevia/schema"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

type UserRepo struct {
	db *gorm.DB
}

// Profile is the identity snapshot taken from a verified token.
type Profile struct {
	UID    string
	Name   string
	Email  string
	Avatar string
	Plan   string
}

// Provision creates the user on first sight with the trial balance, or
// refreshes the mutable profile fields on subsequent logins. Credits are
// never touched for existing rows.
func (r *UserRepo) Provision(ctx context.Context, profile Profile, initialCredits int) (*schema.User, error) {
	user := &schema.User{
		UID:     profile.UID,
		Name:    profile.Name,
		Email:   profile.Email,
		Avatar:  profile.Avatar,
		Plan:    profile.Plan,
		Credits: initialCredits,
	}
	if user.Plan == "" {
		user.Plan = "free"
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "avatar", "updated_at"}),
		}).
		Create(user).Error
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, profile.UID)
}

func (r *UserRepo) Get(ctx context.Context, uid string) (*schema.User, error) {
	var user schema.User
	err := r.db.WithContext(ctx).First(&user, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Debit atomically subtracts credits, failing with ErrInsufficientCredits
// when the balance cannot cover the amount. The balance guard lives in the
// UPDATE itself so concurrent debits cannot overdraw.
func (r *UserRepo) Debit(ctx context.Context, uid string, amount int) (int, error) {
	result := r.db.WithContext(ctx).Model(&schema.User{}).
		Where("uid = ? AND credits >= ?", uid, amount).
		Update("credits", gorm.Expr("credits - ?", amount))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, uid); err != nil {
			return 0, err
		}
		return 0, ErrInsufficientCredits
	}

	user, err := r.Get(ctx, uid)
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

func (r *UserRepo) Add(ctx context.Context, uid string, amount int) (int, error) {
	err := r.db.WithContext(ctx).Model(&schema.User{}).
		Where("uid = ?", uid).
		Update("credits", gorm.Expr("credits + ?", amount)).Error
	if err != nil {
		return 0, err
	}
	user, err := r.Get(ctx, uid)
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

// AddByEmail credits the most recently updated account for an email address,
// used by the payment webhook where only the buyer email is known.
func (r *UserRepo) AddByEmail(ctx context.Context, email string, amount int) (*schema.User, error) {
	var user schema.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("updated_at DESC").
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Model(&user).
		Update("credits", gorm.Expr("credits + ?", amount)).Error; err != nil {
		return nil, err
	}
	user.Credits += amount
	return &user, nil
}

// historyColumns are the sortable columns exposed to callers.
var historyColumns = []string{"date", "score", "role", "track"}

// History returns finished-interview summaries, newest first unless the
// caller asks for a different order.
func (r *UserRepo) History(ctx context.Context, uid string, limit int, sorts []sortutil.Method) ([]schema.Interview, error) {
	if len(sorts) == 0 {
		sorts = []sortutil.Method{{Name: "date", Desc: true}}
	}
	order, err := sortutil.GetOrder(historyColumns, sorts)
	if err != nil {
		return nil, err
	}

	var items []schema.Interview
	err = r.db.WithContext(ctx).
		Where("uid = ?", uid).
		Order(order).
		Limit(limit).
		Find(&items).Error
	return items, err
}

// AppendSummary upserts the history row for a finished session and stamps
// the user's last interview time.
func (r *UserRepo) AppendSummary(ctx context.Context, item *schema.Interview) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}, {Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"date", "role", "score", "style", "track", "updated_at"}),
		}).Create(item).Error; err != nil {
			return err
		}
		return tx.Model(&schema.User{}).
			Where("uid = ?", item.UID).
			Update("last_interview_at", time.Now().UTC()).Error
	})
}

func (r *UserRepo) DeleteSummary(ctx context.Context, uid, sessionID string) error {
	return r.db.WithContext(ctx).
		Where("uid = ? AND session_id = ?", uid, sessionID).
		Delete(&schema.Interview{}).Error
}
