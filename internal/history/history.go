// Package history derives a trend estimate from persisted unified-score
// results. It backs the aggregator's trend component when a request
// carries no velocity data.
package history

import (
	"context"
	"log/slog"

	"github.com/opensource-social/kestrel/internal/domain"
)

// points is how many recent results the trend looks at. Two give a
// velocity, three add acceleration.
const points = 3

// Service reads recent scores from the repository and turns their
// deltas into a [0,1] trend value centered on 0.5.
type Service struct {
	repo   domain.Repository
	logger *slog.Logger
}

// NewService creates a history-backed trend service.
func NewService(repo domain.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// RecentTrend returns the trend for an account from its stored unified
// scores, newest first. It reports ok=false when fewer than two scores
// exist or the repository is unavailable; the caller falls back to a
// neutral trend.
func (s *Service) RecentTrend(ctx context.Context, accountID string) (float64, bool) {
	if s.repo == nil || accountID == "" {
		return 0, false
	}

	results, err := s.repo.ResultHistory(ctx, domain.EngineTwitterScore, accountID, points)
	if err != nil {
		s.logger.Warn("score history unavailable", "account_id", accountID, "error", err)
		return 0, false
	}
	if len(results) < 2 {
		return 0, false
	}

	// Scores are on the 0-1000 scale; deltas normalize onto [-1,1].
	velocity := (results[0].Score - results[1].Score) / 1000
	accel := 0.0
	if len(results) >= 3 {
		prev := (results[1].Score - results[2].Score) / 1000
		accel = velocity - prev
	}

	return domain.Clamp01(0.5 + 0.5*velocity + 0.25*accel), true
}
