package batch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/opensource-social/kestrel/internal/domain"
)

type item struct {
	id   string
	fail bool
}

type outcome struct {
	id    string
	score float64
	err   string
}

func process(_ context.Context, it item) outcome {
	if it.fail {
		return outcome{id: it.id, err: "bad item"}
	}
	return outcome{id: it.id, score: 0.5}
}

func TestResultsPreserveInputOrder(t *testing.T) {
	c := NewCoordinator(4, process)

	items := make([]item, 50)
	for i := range items {
		items[i] = item{id: fmt.Sprintf("acct-%02d", i)}
	}

	results, err := c.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, r := range results {
		if r.id != items[i].id {
			t.Errorf("slot %d: expected %s, got %s", i, items[i].id, r.id)
		}
	}
}

func TestOversizedBatchRejectedWhole(t *testing.T) {
	var processed atomic.Int32
	c := NewCoordinator(4, func(ctx context.Context, it item) outcome {
		processed.Add(1)
		return process(ctx, it)
	})

	items := make([]item, domain.MaxBatchItems+10)
	_, err := c.Run(context.Background(), items)
	if err == nil {
		t.Fatal("expected validation error for oversized batch")
	}
	if !domain.IsValidation(err) {
		t.Errorf("expected a validation error, got %v", err)
	}
	if processed.Load() != 0 {
		t.Errorf("no item may be processed on rejection, got %d", processed.Load())
	}
}

func TestEmptyBatchRejected(t *testing.T) {
	c := NewCoordinator(4, process)
	if _, err := c.Run(context.Background(), nil); err == nil {
		t.Fatal("expected validation error for empty batch")
	}
}

func TestItemFailureStaysInItsSlot(t *testing.T) {
	c := NewCoordinator(2, process)

	items := []item{{id: "a"}, {id: "b", fail: true}, {id: "c"}}
	results, err := c.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[1].err == "" {
		t.Error("failed item must carry its error in its own slot")
	}
	if results[0].err != "" || results[2].err != "" {
		t.Error("neighboring items must be unaffected by one failure")
	}
}

func TestConcurrencyIsBounded(t *testing.T) {
	var inflight, peak atomic.Int32
	c := NewCoordinator(3, func(_ context.Context, it item) outcome {
		cur := inflight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		defer inflight.Add(-1)
		return outcome{id: it.id}
	})

	items := make([]item, 40)
	if _, err := c.Run(context.Background(), items); err != nil {
		t.Fatal(err)
	}
	if peak.Load() > 3 {
		t.Errorf("observed %d concurrent workers, limit is 3", peak.Load())
	}
}

func TestQualityStatsDistribution(t *testing.T) {
	p := domain.DefaultAudienceQualityParams()
	results := []domain.QualityResult{
		{Score: 0.85},
		{Score: 0.55},
		{Score: 0.10},
		{Error: "bad input"},
	}

	stats := QualityStats(results, p)
	if stats.Total != 4 || stats.Errors != 1 {
		t.Errorf("unexpected totals: %+v", stats)
	}
	if stats.Distribution.High != 1 || stats.Distribution.Medium != 1 || stats.Distribution.Low != 1 {
		t.Errorf("unexpected distribution: %+v", stats.Distribution)
	}
	want := (0.85 + 0.55 + 0.10) / 3
	if diff := stats.AvgScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("avg must exclude errored items: got %v want %v", stats.AvgScore, want)
	}
}

func TestScoreStatsByGrade(t *testing.T) {
	results := []domain.ScoreResult{
		{Score: 920, Grade: domain.GradeS},
		{Score: 780, Grade: domain.GradeA},
		{Score: 780, Grade: domain.GradeA},
		{Error: "bad input"},
	}

	stats := ScoreStats(results)
	if stats.Errors != 1 {
		t.Errorf("expected 1 error, got %d", stats.Errors)
	}
	if stats.ByGrade[domain.GradeA] != 2 || stats.ByGrade[domain.GradeS] != 1 {
		t.Errorf("unexpected grade histogram: %v", stats.ByGrade)
	}
}
