package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"taskhive/api/internal/repository"
)

// Scheduler runs the periodic garbage collection: expired sessions and
// verification codes, and stale login attempts outside any lockout window.
type Scheduler struct {
	cron     *cron.Cron
	sessions *repository.SessionRepository
	codes    *repository.VerificationCodeRepository
	attempts *repository.LoginAttemptRepository
	log      zerolog.Logger
}

func NewScheduler(
	sessions *repository.SessionRepository,
	codes *repository.VerificationCodeRepository,
	attempts *repository.LoginAttemptRepository,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		sessions: sessions,
		codes:    codes,
		attempts: attempts,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.cleanupSessions); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@hourly", s.cleanupCodes); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@daily", s.cleanupAttempts); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) cleanupSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("session cleanup failed")
		return
	}
	if count > 0 {
		s.log.Info().Int("deleted", count).Msg("expired sessions removed")
	}
}

func (s *Scheduler) cleanupCodes() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := s.codes.DeleteExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("verification code cleanup failed")
		return
	}
	if count > 0 {
		s.log.Info().Int("deleted", count).Msg("expired verification codes removed")
	}
}

func (s *Scheduler) cleanupAttempts() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// Attempts older than any lockout window only matter for forensics,
	// which the security log already covers.
	count, err := s.attempts.DeleteOlderThan(ctx, time.Now().Add(-30*24*time.Hour))
	if err != nil {
		s.log.Error().Err(err).Msg("login attempt cleanup failed")
		return
	}
	if count > 0 {
		s.log.Info().Int("deleted", count).Msg("stale login attempts removed")
	}
}
