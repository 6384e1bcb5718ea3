package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	sortutil "entrevia/internal/utils/sort"
	"entrevia/schema"
)

func setupRepo(t *testing.T) *Repository {
	t.Helper()
	// A named in-memory database keeps every pooled connection on the same
	// store while isolating tests from each other.
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	repo, err := New(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return repo
}

func provision(t *testing.T, repo *Repository, uid string) *schema.User {
	t.Helper()
	user, err := repo.User.Provision(context.Background(), Profile{
		UID:   uid,
		Name:  "Ana Souza",
		Email: uid + "@example.com",
	}, 3)
	require.NoError(t, err)
	return user
}

func TestProvisionIsIdempotentForCredits(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	user := provision(t, repo, "u-prov")
	assert.Equal(t, 3, user.Credits)

	_, err := repo.User.Debit(ctx, "u-prov", 1)
	require.NoError(t, err)

	again, err := repo.User.Provision(ctx, Profile{
		UID:   "u-prov",
		Name:  "Ana S.",
		Email: "u-prov@example.com",
	}, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Credits, "re-login must not reset the balance")
	assert.Equal(t, "Ana S.", again.Name)
}

func TestDebitInsufficientCredits(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	provision(t, repo, "u-debit")

	remaining, err := repo.User.Debit(ctx, "u-debit", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	_, err = repo.User.Debit(ctx, "u-debit", 2)
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	user, err := repo.User.Get(ctx, "u-debit")
	require.NoError(t, err)
	assert.Equal(t, 1, user.Credits, "failed debit must not change the balance")
}

func TestAddByEmail(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	provision(t, repo, "u-email")

	user, err := repo.User.AddByEmail(ctx, "u-email@example.com", 10)
	require.NoError(t, err)
	assert.Equal(t, 13, user.Credits)

	_, err = repo.User.AddByEmail(ctx, "missing@example.com", 10)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestHistoryOrderAndLimit(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	provision(t, repo, "u-hist")

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		require.NoError(t, repo.User.AppendSummary(ctx, &schema.Interview{
			UID:       "u-hist",
			SessionID: fmt.Sprintf("s-%02d", i),
			Date:      base.Add(time.Duration(i) * time.Hour),
			Role:      "Backend Engineer",
			Score:     7.5,
			Style:     "technical",
			Track:     "backend",
		}))
	}

	items, err := repo.User.History(ctx, "u-hist", 20, nil)
	require.NoError(t, err)
	require.Len(t, items, 20)
	assert.Equal(t, "s-24", items[0].SessionID)
	assert.True(t, items[0].Date.After(items[19].Date))

	ascending, err := repo.User.History(ctx, "u-hist", 5, []sortutil.Method{{Name: "date"}})
	require.NoError(t, err)
	require.Len(t, ascending, 5)
	assert.Equal(t, "s-00", ascending[0].SessionID)

	_, err = repo.User.History(ctx, "u-hist", 5, []sortutil.Method{{Name: "uid; DROP TABLE users"}})
	require.Error(t, err)

	user, err := repo.User.Get(ctx, "u-hist")
	require.NoError(t, err)
	assert.NotNil(t, user.LastInterviewAt)
}

func TestSessionLifecycle(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	provision(t, repo, "u-sess")

	session := &schema.Session{
		ID:         "s-1",
		UID:        "u-sess",
		Status:     schema.SessionStarted,
		PlanStatus: schema.PlanPending,
		Config:     []byte(`{"track":"backend"}`),
	}
	require.NoError(t, repo.Session.Create(ctx, session))

	tokens := 812
	require.NoError(t, repo.Session.SavePlan(ctx, "u-sess", "s-1",
		[]byte(`{"questions":[]}`), "openai", "gpt-4o-mini", 950, &tokens))

	got, err := repo.Session.Get(ctx, "u-sess", "s-1")
	require.NoError(t, err)
	assert.Equal(t, schema.PlanCompleted, got.PlanStatus)
	assert.Equal(t, "openai", got.ProviderUsed)

	require.NoError(t, repo.Session.Finish(ctx, "u-sess", "s-1",
		[]byte(`{"overallScore":7.5}`), []byte(`{"device":"web"}`)))

	got, err = repo.Session.Get(ctx, "u-sess", "s-1")
	require.NoError(t, err)
	assert.Equal(t, schema.SessionFinished, got.Status)
	require.NotNil(t, got.FinishedAt)

	_, err = repo.Session.Get(ctx, "someone-else", "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, repo.Session.Delete(ctx, "u-sess", "s-1"))
	_, err = repo.Session.Get(ctx, "u-sess", "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteStaleStarted(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	stale := &schema.Session{ID: "s-old", UID: "u", Status: schema.SessionStarted}
	require.NoError(t, repo.Session.Create(ctx, stale))
	require.NoError(t, repo.DB().Model(stale).
		Update("created_at", time.Now().UTC().Add(-48*time.Hour)).Error)

	fresh := &schema.Session{ID: "s-new", UID: "u", Status: schema.SessionStarted}
	require.NoError(t, repo.Session.Create(ctx, fresh))

	removed, err := repo.Session.DeleteStaleStarted(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.Session.Get(ctx, "u", "s-new")
	assert.NoError(t, err)
}

func TestLedgerIdempotency(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	seen, err := repo.Ledger.Exists(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	wrote, err := repo.Ledger.Record(ctx, &schema.CreditLedger{
		EventID: "evt-1",
		Email:   "buyer@example.com",
		Credits: 10,
		Product: "pack-10",
		Status:  schema.LedgerCredited,
	})
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = repo.Ledger.Record(ctx, &schema.CreditLedger{
		EventID: "evt-1",
		Email:   "buyer@example.com",
		Credits: 10,
	})
	require.NoError(t, err)
	assert.False(t, wrote, "duplicate event must not create a second entry")

	seen, err = repo.Ledger.Exists(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}
