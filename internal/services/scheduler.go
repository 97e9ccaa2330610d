package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const phaseExpirySpec = "@every 30s"

// SchedulerOptions configure the background jobs
type SchedulerOptions struct {
	CleanupSchedule string
	Timezone        string
	AutoAdvance     bool
	RunOnStart      bool
	JobTimeout      time.Duration
}

// Scheduler runs the daily cleanup and the optional phase-expiry job
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	games   *GameService
	opts    SchedulerOptions
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler registers the jobs without starting them
func NewScheduler(sweeper *Sweeper, games *GameService, opts SchedulerOptions) (*Scheduler, error) {
	loc := time.Local
	if opts.Timezone != "" {
		l, err := time.LoadLocation(opts.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", opts.Timezone, err)
		}
		loc = l
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweeper: sweeper,
		games:   games,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := s.cron.AddFunc(opts.CleanupSchedule, s.runCleanup); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", opts.CleanupSchedule, err)
	}
	if opts.AutoAdvance {
		if _, err := s.cron.AddFunc(phaseExpirySpec, s.runPhaseExpiry); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to register phase expiry job: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.JobTimeout)
	defer cancel()
	if _, err := s.sweeper.RunFullSweep(ctx); err != nil {
		log.Warn().Err(err).Msg("Scheduled cleanup skipped")
	}
}

func (s *Scheduler) runPhaseExpiry() {
	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()
	n, err := s.games.AdvanceExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Phase expiry job failed")
		return
	}
	if n > 0 {
		log.Info().Int("advanced", n).Msg("Advanced games past their deadline")
	}
}

// Start starts the cron loop
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().
		Str("cleanup_schedule", s.opts.CleanupSchedule).
		Str("timezone", s.cron.Location().String()).
		Bool("auto_advance", s.opts.AutoAdvance).
		Msg("Cron jobs initialized")

	if s.opts.RunOnStart {
		go s.runCleanup()
	}
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
