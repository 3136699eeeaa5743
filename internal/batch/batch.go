// Package batch fans a bounded batch of items out to an engine and
// collects results in input order. One bad item fills its own slot; it
// never aborts the rest of the batch.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/opensource-social/kestrel/internal/domain"
)

// DefaultWorkers bounds per-batch concurrency when none is configured.
const DefaultWorkers = 10

// Coordinator runs batches for one engine's item type.
type Coordinator[In, Out any] struct {
	workers int
	fn      func(ctx context.Context, item In) Out
}

// NewCoordinator creates a coordinator around a per-item compute
// function. The function must capture per-item failures inside Out.
func NewCoordinator[In, Out any](workers int, fn func(ctx context.Context, item In) Out) *Coordinator[In, Out] {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Coordinator[In, Out]{workers: workers, fn: fn}
}

// Run processes every item and returns results in input order. A batch
// over the size limit is rejected whole; no item is processed.
func (c *Coordinator[In, Out]) Run(ctx context.Context, items []In) ([]Out, error) {
	if len(items) == 0 {
		return nil, domain.NewValidationError("items", "batch must not be empty")
	}
	if len(items) > domain.MaxBatchItems {
		return nil, domain.NewValidationError("items",
			fmt.Sprintf("batch size %d exceeds limit %d", len(items), domain.MaxBatchItems))
	}

	results := make([]Out, len(items))
	var wg sync.WaitGroup
	sem := make(chan struct{}, c.workers)

	for i, item := range items {
		wg.Add(1)
		go func(idx int, it In) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = c.fn(ctx, it)
		}(i, item)
	}

	wg.Wait()
	return results, nil
}

// QualityStats aggregates audience-quality batch results.
func QualityStats(results []domain.QualityResult, p domain.AudienceQualityParams) domain.QualityBatchStats {
	stats := domain.QualityBatchStats{Total: len(results)}
	var sum float64
	scored := 0
	for _, r := range results {
		if r.Error != "" {
			stats.Errors++
			continue
		}
		sum += r.Score
		scored++
		switch {
		case r.Score >= p.QualityThresholds.High:
			stats.Distribution.High++
		case r.Score >= p.QualityThresholds.Medium:
			stats.Distribution.Medium++
		default:
			stats.Distribution.Low++
		}
	}
	if scored > 0 {
		stats.AvgScore = sum / float64(scored)
	}
	return stats
}

// ProximityStats aggregates graph-proximity batch results. classify maps
// a result onto "well_connected" or "isolated".
func ProximityStats(results []domain.ProximityResult, classify func(*domain.ProximityResult) string) domain.ProximityBatchStats {
	stats := domain.ProximityBatchStats{Total: len(results)}
	var sum float64
	scored := 0
	for i := range results {
		r := &results[i]
		if r.Error != "" {
			stats.Errors++
			continue
		}
		sum += r.Summary.Score
		scored++
		switch classify(r) {
		case "well_connected":
			stats.WellConnected++
		case "isolated":
			stats.Isolated++
		}
	}
	if scored > 0 {
		stats.AvgProximity = sum / float64(scored)
	}
	return stats
}

// ScoreStats aggregates unified-score batch results.
func ScoreStats(results []domain.ScoreResult) domain.ScoreBatchStats {
	stats := domain.ScoreBatchStats{
		Total:   len(results),
		ByGrade: make(map[string]int),
	}
	var sum float64
	scored := 0
	for _, r := range results {
		if r.Error != "" {
			stats.Errors++
			continue
		}
		sum += float64(r.Score)
		scored++
		stats.ByGrade[r.Grade]++
	}
	if scored > 0 {
		stats.AvgScore = sum / float64(scored)
	}
	return stats
}
