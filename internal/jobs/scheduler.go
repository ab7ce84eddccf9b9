package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/gkintu/hukasa-staging-sub001/internal/ratelimit"
)

type Scheduler struct {
	cron    *cron.Cron
	queue   *redis.Client
	limiter ratelimit.Limiter
	stream  string
	log     zerolog.Logger
}

func NewScheduler(queue *redis.Client, limiter ratelimit.Limiter, stream string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:    c,
		queue:   queue,
		limiter: limiter,
		stream:  stream,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 * * * * *", s.sweepLimiter); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 0 0 * * *", s.enqueueCleanup); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish, up to a short grace period.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

// sweepLimiter evicts stale rate-limit counters so the per-address map stays
// bounded.
func (s *Scheduler) sweepLimiter() {
	if s.limiter == nil {
		return
	}
	s.limiter.Sweep()
}

// enqueueCleanup asks the render workers to drop stale intake objects.
func (s *Scheduler) enqueueCleanup() {
	if s.queue == nil {
		return
	}
	if _, err := s.queue.XAdd(context.Background(), &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{"type": "cleanup"},
	}).Result(); err != nil {
		s.log.Error().Err(err).Msg("enqueue cleanup failed")
	}
}
