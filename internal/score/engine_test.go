package score

import (
	"context"
	"strings"
	"testing"

	"github.com/opensource-social/kestrel/internal/domain"
	"github.com/opensource-social/kestrel/internal/insight"
)

func f(v float64) *float64 { return &v }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ins, err := insight.NewEngine()
	if err != nil {
		t.Fatalf("insight.NewEngine: %v", err)
	}
	if err := ins.LoadRules(insight.DefaultRules()); err != nil {
		t.Fatal(err)
	}
	return NewEngine(ins, nil)
}

// staticTrend is a canned TrendSource for fallback tests.
type staticTrend struct {
	value float64
	ok    bool
}

func (s staticTrend) RecentTrend(context.Context, string) (float64, bool) { return s.value, s.ok }

func strongAccount() *domain.AccountFeatures {
	return &domain.AccountFeatures{
		AccountID:       "acct-strong",
		BaseInfluence:   850,
		XScore:          820,
		SignalNoise:     8.5,
		Velocity:        f(0.30),
		Acceleration:    f(0.10),
		Consistency:     f(0.85),
		RiskLevel:       "LOW",
		AudienceQuality: f(0.80),
	}
}

func TestHighRiskAccountIsPenalized(t *testing.T) {
	e := newTestEngine(t)
	p := domain.DefaultTwitterScoreParams()

	res := e.Compute(context.Background(), &domain.AccountFeatures{
		AccountID:     "acct-risky",
		RiskLevel:     "HIGH",
		RedFlags:      []domain.RedFlag{domain.FlagRepostFarm, domain.FlagBotLikePattern, domain.FlagFakeEngagement},
		BaseInfluence: 420,
		XScore:        280,
	}, p)

	if res.Score > 550 {
		t.Errorf("high-risk flagged account must score <= 550, got %d", res.Score)
	}
	if res.Grade != domain.GradeC && res.Grade != domain.GradeD {
		t.Errorf("expected grade C or D, got %s", res.Grade)
	}
	// 0.15 risk + 0.24 flags exceeds the 0.35 cap.
	if res.RiskPenalty != p.Penalties.MaxTotal {
		t.Errorf("expected penalty capped at %v, got %v", p.Penalties.MaxTotal, res.RiskPenalty)
	}
	if res.Debug.Penalties.RiskLevel != 0.15 {
		t.Errorf("expected 0.15 risk-level penalty, got %v", res.Debug.Penalties.RiskLevel)
	}
	if len(res.Explain.Concerns) == 0 {
		t.Error("expected insight concerns for a heavily penalized account")
	}
}

func TestStrongAccountScoresWell(t *testing.T) {
	e := newTestEngine(t)
	p := domain.DefaultTwitterScoreParams()

	res := e.Compute(context.Background(), strongAccount(), p)

	if res.Score < 600 {
		t.Errorf("strong account must score at least 600, got %d", res.Score)
	}
	if res.RiskPenalty != 0 {
		t.Errorf("LOW risk with no flags must carry no penalty, got %v", res.RiskPenalty)
	}
	if res.Confidence != domain.ConfidenceHigh {
		t.Errorf("all inputs present must yield HIGH confidence, got %s", res.Confidence)
	}
	if len(res.Explain.Drivers) == 0 {
		t.Error("expected significant drivers to be listed")
	}
	if len(res.Explain.Concerns) != 0 {
		t.Errorf("expected no concerns, got %v", res.Explain.Concerns)
	}
}

func TestScoreInRange(t *testing.T) {
	e := newTestEngine(t)
	p := domain.DefaultTwitterScoreParams()

	cases := []*domain.AccountFeatures{
		{AccountID: "empty"},
		{AccountID: "max", BaseInfluence: 99999, XScore: 99999, SignalNoise: 99, Velocity: f(5), Consistency: f(1), AudienceQuality: f(1)},
		{AccountID: "doomed", RiskLevel: "HIGH", RedFlags: domain.KnownRedFlags()},
	}
	for _, in := range cases {
		res := e.Compute(context.Background(), in, p)
		if res.Score < 0 || res.Score > 1000 {
			t.Errorf("%s: score %d out of [0,1000]", in.AccountID, res.Score)
		}
	}
}

func TestMissingInputsDegradeToNeutral(t *testing.T) {
	e := newTestEngine(t)
	p := domain.DefaultTwitterScoreParams()

	res := e.Compute(context.Background(), &domain.AccountFeatures{AccountID: "bare"}, p)

	if res.Error != "" {
		t.Fatalf("missing inputs must not error: %q", res.Error)
	}
	if res.Confidence != domain.ConfidenceLow {
		t.Errorf("expected LOW confidence, got %s", res.Confidence)
	}
	if res.Components.Trend != 0.5 || res.Components.Consistency != 0.5 {
		t.Errorf("absent trend and consistency must be neutral 0.5, got %+v", res.Components)
	}
	if res.Components.NetworkProxy != p.NetworkProxyDefault {
		t.Errorf("expected default network proxy %v, got %v", p.NetworkProxyDefault, res.Components.NetworkProxy)
	}
	if len(res.Meta.DataSources) != 0 {
		t.Errorf("no inputs means no data sources, got %v", res.Meta.DataSources)
	}
}

func TestAudienceQualityOverridesNetworkProxy(t *testing.T) {
	e := newTestEngine(t)
	p := domain.DefaultTwitterScoreParams()

	res := e.Compute(context.Background(), &domain.AccountFeatures{
		AccountID:       "cross",
		AudienceQuality: f(0.91),
	}, p)

	if res.Components.NetworkProxy != 0.91 {
		t.Errorf("supplied audience quality must be used verbatim, got %v", res.Components.NetworkProxy)
	}
	found := false
	for _, s := range res.Meta.DataSources {
		if s == "audience_quality" {
			found = true
		}
	}
	if !found {
		t.Errorf("data sources must record the audience-quality provenance, got %v", res.Meta.DataSources)
	}
}

func TestEarlyBadgeFallback(t *testing.T) {
	e := newTestEngine(t)
	p := domain.DefaultTwitterScoreParams()

	res := e.Compute(context.Background(), &domain.AccountFeatures{
		AccountID:  "newcomer",
		EarlyBadge: "hot",
	}, p)

	if res.Components.NetworkProxy != p.EarlyBadgeScores["hot"] {
		t.Errorf("expected hot-badge proxy %v, got %v", p.EarlyBadgeScores["hot"], res.Components.NetworkProxy)
	}
}

func TestHistoryTrendFallback(t *testing.T) {
	ins, err := insight.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(ins, staticTrend{value: 0.72, ok: true})
	p := domain.DefaultTwitterScoreParams()

	res := e.Compute(context.Background(), &domain.AccountFeatures{AccountID: "hist"}, p)

	if res.Components.Trend != 0.72 {
		t.Errorf("expected history trend 0.72, got %v", res.Components.Trend)
	}
	found := false
	for _, s := range res.Meta.DataSources {
		if s == "score_history" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected score_history data source, got %v", res.Meta.DataSources)
	}
}

func TestVelocityBeatsHistory(t *testing.T) {
	ins, err := insight.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(ins, staticTrend{value: 0.10, ok: true})
	p := domain.DefaultTwitterScoreParams()

	res := e.Compute(context.Background(), &domain.AccountFeatures{
		AccountID: "live",
		Velocity:  f(0.40),
	}, p)

	// 0.5 + 0.5*0.40 = 0.70; request data outranks history.
	if res.Components.Trend != 0.70 {
		t.Errorf("expected request velocity trend 0.70, got %v", res.Components.Trend)
	}
}

func TestMorePenaltyNeverRaisesScore(t *testing.T) {
	e := newTestEngine(t)
	p := domain.DefaultTwitterScoreParams()

	base := strongAccount()
	clean := e.Compute(context.Background(), base, p)

	flagged := strongAccount()
	flagged.RedFlags = []domain.RedFlag{domain.FlagBotLikePattern}
	withFlag := e.Compute(context.Background(), flagged, p)

	if withFlag.Score >= clean.Score {
		t.Errorf("adding a red flag must lower the score: %d >= %d", withFlag.Score, clean.Score)
	}
}

func TestDuplicateFlagsCountOnce(t *testing.T) {
	e := newTestEngine(t)
	p := domain.DefaultTwitterScoreParams()

	once := e.Compute(context.Background(), &domain.AccountFeatures{
		AccountID: "a", RedFlags: []domain.RedFlag{domain.FlagViralSpike},
	}, p)
	twice := e.Compute(context.Background(), &domain.AccountFeatures{
		AccountID: "a", RedFlags: []domain.RedFlag{domain.FlagViralSpike, domain.FlagViralSpike},
	}, p)

	if once.RiskPenalty != twice.RiskPenalty {
		t.Errorf("duplicate flags must not stack: %v != %v", once.RiskPenalty, twice.RiskPenalty)
	}
}

func TestGradeBoundaries(t *testing.T) {
	g := domain.DefaultTwitterScoreParams().Grades
	cases := []struct {
		score int
		want  string
	}{
		{1000, domain.GradeS},
		{900, domain.GradeS},
		{899, domain.GradeA},
		{750, domain.GradeA},
		{749, domain.GradeB},
		{600, domain.GradeB},
		{599, domain.GradeC},
		{450, domain.GradeC},
		{449, domain.GradeD},
		{0, domain.GradeD},
	}
	for _, tc := range cases {
		if got := GradeFor(tc.score, g); got != tc.want {
			t.Errorf("GradeFor(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestValidateFeatures(t *testing.T) {
	cases := []struct {
		name    string
		in      *domain.AccountFeatures
		wantErr string
	}{
		{"valid", &domain.AccountFeatures{AccountID: "a"}, ""},
		{"missing id", &domain.AccountFeatures{}, "account_id"},
		{"negative influence", &domain.AccountFeatures{AccountID: "a", BaseInfluence: -1}, "base_influence"},
		{"bad risk level", &domain.AccountFeatures{AccountID: "a", RiskLevel: "EXTREME"}, "risk_level"},
		{"unknown flag", &domain.AccountFeatures{AccountID: "a", RedFlags: []domain.RedFlag{"SPOOKY"}}, "red_flags"},
		{"consistency out of range", &domain.AccountFeatures{AccountID: "a", Consistency: f(1.5)}, "consistency_0_1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.in)
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !domain.IsValidation(err) || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected validation error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}
