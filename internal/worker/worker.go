// Package worker provides async score processing from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-social/kestrel/internal/config"
	"github.com/opensource-social/kestrel/internal/domain"
	"github.com/opensource-social/kestrel/internal/score"
)

// Worker consumes scoring requests from the bus, runs the unified score
// engine, persists the result and publishes the outcome.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	engine *score.Engine
	cfg    *config.Store[domain.TwitterScoreParams]

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, engine *score.Engine, cfg *config.Store[domain.TwitterScoreParams]) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		engine: engine,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the score-requested topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicScoreRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicScoreRequested)
	return nil
}

// ScoreRequest is the message payload for async scoring.
type ScoreRequest struct {
	TraceID  string                  `json:"trace_id,omitempty"`
	Features *domain.AccountFeatures `json:"features"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req ScoreRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse score request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	if err := score.Validate(req.Features); err != nil {
		slog.Error("invalid score request",
			"message_id", msg.ID,
			"trace_id", traceID,
			"error", err,
		)
		return err
	}

	snap := w.cfg.Current()
	result := w.engine.Compute(ctx, req.Features, snap.Params)
	result.Meta.ConfigRevision = snap.Revision

	resultPayload, _ := json.Marshal(result)

	if w.repo != nil {
		stored := &domain.StoredResult{
			ID:        result.Meta.EvaluationID,
			Engine:    domain.EngineTwitterScore,
			AccountID: result.AccountID,
			Score:     float64(result.Score),
			Grade:     result.Grade,
			Payload:   resultPayload,
		}
		if err := w.repo.SaveResult(ctx, stored); err != nil {
			slog.Error("failed to save result",
				"account_id", result.AccountID,
				"error", err,
			)
		}
	}

	if err := w.bus.Publish(ctx, domain.TopicScoreComputed, resultPayload); err != nil {
		slog.Error("failed to publish computed score",
			"account_id", result.AccountID,
			"error", err,
		)
	}

	if Flagged(&result, snap.Params) {
		if err := w.bus.Publish(ctx, domain.TopicAccountFlagged, resultPayload); err != nil {
			slog.Error("failed to publish flagged account",
				"account_id", result.AccountID,
				"error", err,
			)
		}
	}

	slog.Info("score computed",
		"account_id", result.AccountID,
		"trace_id", traceID,
		"score", result.Score,
		"grade", result.Grade,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Flagged reports whether a result warrants the flagged-account topic:
// the risk penalty hit its cap or the grade bottomed out.
func Flagged(res *domain.ScoreResult, p domain.TwitterScoreParams) bool {
	return res.RiskPenalty >= p.Penalties.MaxTotal || res.Grade == domain.GradeD
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscription_count"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
