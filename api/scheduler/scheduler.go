package scheduler

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper is anything with dead connections to prune; the live case feed hub
// satisfies it
type Sweeper interface {
	Sweep()
}

// Scheduler runs the periodic housekeeping jobs for the serving process
type Scheduler struct {
	cron *cron.Cron
	hub  Sweeper
}

// NewScheduler creates a new scheduler instance
func NewScheduler(hub Sweeper) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		hub:  hub,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// ping live feed connections every minute so half-closed sockets get pruned
	_, err := s.cron.AddFunc("* * * * *", s.sweepLiveFeeds)
	if err != nil {
		zap.S().Errorw("failed to register live feed sweep job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("live feed scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("live feed scheduler stopped")
}

func (s *Scheduler) sweepLiveFeeds() {
	if s.hub == nil {
		return
	}
	s.hub.Sweep()
}
