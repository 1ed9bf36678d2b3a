package app

import (
	"context"
	"time"

	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// RetentionSweeper periodically removes tombstoned messages that have been
// deleted for longer than maxAge. Tombstones stay visible to audit listings
// until the sweep catches them.
type RetentionSweeper struct {
	messages *MessageUseCase
	interval time.Duration
	maxAge   time.Duration
}

// NewRetentionSweeper create RetentionSweeper
func NewRetentionSweeper(messages *MessageUseCase, interval, maxAge time.Duration) *RetentionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &RetentionSweeper{messages: messages, interval: interval, maxAge: maxAge}
}

// Run blocks until ctx is canceled, sweeping once per interval.
func (s *RetentionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Log.Info("retention sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("maxAge", s.maxAge),
	)

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			logger.Log.Info("retention sweeper stopped")
			return
		}
	}
}

// SweepOnce runs a single pass and logs the outcome.
func (s *RetentionSweeper) SweepOnce(ctx context.Context) {
	removed, err := s.messages.Sweep(ctx, s.maxAge, time.Now())
	if err != nil {
		logger.Log.Errorf("retention sweep failed:", err)
		return
	}
	if removed > 0 {
		logger.Log.Info("retention sweep removed tombstones", zap.Int("count", removed))
	}
}
