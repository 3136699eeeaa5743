package config

import (
	"sync"
	"testing"

	"github.com/opensource-social/kestrel/internal/domain"
)

func newAudienceStore(t *testing.T) *Store[domain.AudienceQualityParams] {
	t.Helper()
	s, err := NewStore(domain.EngineAudienceQuality, domain.DefaultAudienceQualityParams())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func TestStoreDefaults(t *testing.T) {
	s := newAudienceStore(t)

	snap := s.Current()
	if snap.Revision != 1 {
		t.Errorf("expected revision 1, got %d", snap.Revision)
	}
	if snap.Params.Version != "1.0.0" {
		t.Errorf("unexpected version %q", snap.Params.Version)
	}
}

func TestApplyValidPatch(t *testing.T) {
	s := newAudienceStore(t)

	snap, err := s.Apply(map[string]any{
		"weights": map[string]any{
			"purity":                0.50,
			"smart_followers_proxy": 0.25,
			"signal_quality":        0.15,
			"consistency":           0.10,
		},
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if snap.Revision != 2 {
		t.Errorf("expected revision 2, got %d", snap.Revision)
	}
	if snap.Params.Weights.Purity != 0.50 {
		t.Errorf("purity weight not applied: %v", snap.Params.Weights.Purity)
	}
	// Untouched sections survive the merge.
	if snap.Params.BotRisk.PerFlag != 0.18 {
		t.Errorf("botRisk clobbered by unrelated patch: %v", snap.Params.BotRisk.PerFlag)
	}
}

func TestApplyBadWeightSumRejected(t *testing.T) {
	s := newAudienceStore(t)
	before := s.Current()

	_, err := s.Apply(map[string]any{
		"weights": map[string]any{"purity": 0.90},
	})
	if err == nil {
		t.Fatal("expected weight-sum validation error")
	}
	if !domain.IsValidation(err) {
		t.Errorf("expected ValidationError, got %T: %v", err, err)
	}

	after := s.Current()
	if after != before {
		t.Error("failed apply must leave the store unchanged")
	}
	if after.Params.Weights.Purity != 0.40 {
		t.Errorf("prior config corrupted: purity = %v", after.Params.Weights.Purity)
	}
}

func TestApplyUnknownFieldRejected(t *testing.T) {
	s := newAudienceStore(t)

	_, err := s.Apply(map[string]any{"no_such_knob": 1})
	if err == nil {
		t.Fatal("expected unknown-field rejection")
	}
	if !domain.IsValidation(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestApplyEmptyPatchIsNoOpRevision(t *testing.T) {
	s := newAudienceStore(t)

	snap, err := s.Apply(map[string]any{})
	if err != nil {
		t.Fatalf("empty patch should be valid: %v", err)
	}
	if snap.Revision != 2 {
		t.Errorf("expected new revision for no-op replace, got %d", snap.Revision)
	}
}

func TestInFlightSnapshotSurvivesReplace(t *testing.T) {
	s := newAudienceStore(t)

	held := s.Current()

	if _, err := s.Apply(map[string]any{
		"weights": map[string]any{
			"purity":                0.50,
			"smart_followers_proxy": 0.25,
			"signal_quality":        0.15,
			"consistency":           0.10,
		},
	}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	// The snapshot obtained before the replace still reads the old values.
	if held.Params.Weights.Purity != 0.40 {
		t.Errorf("held snapshot mutated: purity = %v", held.Params.Weights.Purity)
	}
	if s.Current().Params.Weights.Purity != 0.50 {
		t.Errorf("new snapshot missing patch: purity = %v", s.Current().Params.Weights.Purity)
	}
}

func TestHopsStoreValidation(t *testing.T) {
	s, err := NewStore(domain.EngineHops, domain.DefaultHopsParams())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	cases := []struct {
		name  string
		patch map[string]any
	}{
		{"max_hops too high", map[string]any{"max_hops": 4}},
		{"max_hops zero", map[string]any{"max_hops": 0}},
		{"hop weights not decreasing", map[string]any{"hop_weights": []any{0.5, 0.6, 0.7}}},
		{"negative edge strength", map[string]any{"edge_min_strength": -0.1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Apply(tc.patch); err == nil {
				t.Errorf("expected rejection for %v", tc.patch)
			}
			if s.Current().Revision != 1 {
				t.Errorf("rejected patch bumped revision to %d", s.Current().Revision)
			}
		})
	}
}

func TestGradeThresholdOrderingEnforced(t *testing.T) {
	s, err := NewStore(domain.EngineTwitterScore, domain.DefaultTwitterScoreParams())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, err := s.Apply(map[string]any{
		"grade_thresholds": map[string]any{"A": 950},
	}); err == nil {
		t.Error("expected rejection: A above S breaks ordering")
	}
	if _, err := s.Apply(map[string]any{
		"grade_thresholds": map[string]any{"D": 10},
	}); err == nil {
		t.Error("expected rejection: D minimum must stay 0")
	}
}

func TestConcurrentReadersNeverTorn(t *testing.T) {
	s := newAudienceStore(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		patches := []map[string]any{
			{"weights": map[string]any{"purity": 0.50, "smart_followers_proxy": 0.25, "signal_quality": 0.15, "consistency": 0.10}},
			{"weights": map[string]any{"purity": 0.40, "smart_followers_proxy": 0.25, "signal_quality": 0.20, "consistency": 0.15}},
		}
		for i := 0; i < 200; i++ {
			if _, err := s.Apply(patches[i%2]); err != nil {
				t.Errorf("apply failed: %v", err)
				return
			}
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Current()
				w := snap.Params.Weights
				sum := w.Purity + w.SmartFollowersProxy + w.SignalQuality + w.Consistency
				// Every observed snapshot is one of the two valid sets.
				if sum < 0.99 || sum > 1.01 {
					t.Errorf("torn snapshot observed: sum=%v", sum)
					return
				}
			}
		}()
	}

	wg.Wait()
}
