package billing

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cliniccore/internal/models"
)

// Sweeper moves expired trials to past_due on a schedule, so idle clinics
// don't keep reporting trialing after the trial window closed. The same
// transition also happens inline on permission checks; both paths are
// idempotent.
type Sweeper struct {
	db   *gorm.DB
	lg   *zap.SugaredLogger
	cron *cron.Cron
}

func NewSweeper(db *gorm.DB, lg *zap.SugaredLogger) *Sweeper {
	return &Sweeper{db: db, lg: lg, cron: cron.New()}
}

func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Sweep is a single pass. Exported so tests and startup can run it
// directly.
func (s *Sweeper) Sweep() {
	res := s.db.Model(&models.Subscription{}).
		Where("status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at < ?", models.StatusTrialing, time.Now()).
		Update("status", models.StatusPastDue)
	if res.Error != nil {
		s.lg.Errorw("trial sweep failed", "error", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		s.lg.Infow("trial sweep", "expired", res.RowsAffected)
	}
}
