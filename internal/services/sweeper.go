package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SessionSweeper deletes expired sessions once at start and then on a
// fixed interval. Refresh deletes expired sessions lazily; both use
// types.SessionExpired semantics.
type SessionSweeper struct {
	auth     *AuthService
	interval time.Duration
	cron     *cron.Cron
	onSwept  func(int64)
	logger   zerolog.Logger
}

func NewSessionSweeper(auth *AuthService, interval time.Duration, onSwept func(int64), logger zerolog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionSweeper{
		auth:     auth,
		interval: interval,
		cron:     cron.New(),
		onSwept:  onSwept,
		logger:   logger.With().Str("component", "session_sweeper").Logger(),
	}
}

// Sweep runs one pass and returns the number of sessions removed.
func (s *SessionSweeper) Sweep(ctx context.Context) int64 {
	removed, err := s.auth.SweepExpiredSessions(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("session sweep failed")
		return 0
	}
	if s.onSwept != nil {
		s.onSwept(removed)
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Msg("expired sessions swept")
	}
	return removed
}

// Start sweeps once, then schedules the recurring sweep. ctx bounds each pass.
func (s *SessionSweeper) Start(ctx context.Context) {
	s.Sweep(ctx)
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.Sweep(ctx)
	}))
	s.cron.Start()
	s.logger.Info().Dur("interval", s.interval).Msg("session sweeper started")
}

// Stop halts scheduling and waits for a running pass to finish.
func (s *SessionSweeper) Stop() {
	<-s.cron.Stop().Done()
}
