package features

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"entrevia/internal/repo"
)

type SweeperConfig struct {
	Schedule string
	MaxAge   time.Duration
}

func ReadSweeperConfig() *SweeperConfig {
	v := viper.New()
	v.SetDefault("SESSION_SWEEP_SCHEDULE", "0 * * * *")
	v.SetDefault("SESSION_MAX_AGE_HOURS", 24)
	_ = v.BindEnv("SESSION_SWEEP_SCHEDULE")
	_ = v.BindEnv("SESSION_MAX_AGE_HOURS")

	return &SweeperConfig{
		Schedule: v.GetString("SESSION_SWEEP_SCHEDULE"),
		MaxAge:   time.Duration(v.GetInt("SESSION_MAX_AGE_HOURS")) * time.Hour,
	}
}

// Sweeper deletes sessions that were started but never finished. Abandoned
// sessions hold no plan worth keeping and would grow the table forever.
type Sweeper struct {
	config *SweeperConfig
	repo   *repo.Repository
	logger *zap.Logger
	cron   *cron.Cron
}

func NewSweeper(config *SweeperConfig, repository *repo.Repository, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		config: config,
		repo:   repository,
		logger: logger,
		cron:   cron.New(),
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.config.Schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Session sweeper started",
		zap.String("schedule", s.config.Schedule),
		zap.Duration("maxAge", s.config.MaxAge))
	return nil
}

func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := s.repo.Session.DeleteStaleStarted(ctx, s.config.MaxAge)
	if err != nil {
		s.logger.Error("Session sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("Swept stale sessions", zap.Int64("removed", removed))
	}
}
