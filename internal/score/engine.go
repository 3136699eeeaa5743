// Package score implements the unified 0-1000 account score. It blends
// five normalized components, subtracts a capped risk penalty, and maps
// the result onto a letter grade.
package score

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-social/kestrel/internal/domain"
	"github.com/opensource-social/kestrel/internal/insight"
)

const neutral = 0.5

// TrendSource supplies a trend estimate from persisted score history when
// the request carries no velocity data.
type TrendSource interface {
	RecentTrend(ctx context.Context, accountID string) (float64, bool)
}

// Engine computes unified scores. Insight rules and the history-backed
// trend source are both optional.
type Engine struct {
	insights *insight.Engine
	trends   TrendSource
}

// NewEngine creates a score engine.
func NewEngine(insights *insight.Engine, trends TrendSource) *Engine {
	return &Engine{insights: insights, trends: trends}
}

// Validate checks a feature bundle before scoring.
func Validate(f *domain.AccountFeatures) error {
	if f == nil || f.AccountID == "" {
		return domain.NewValidationError("account_id", "is required")
	}
	if f.BaseInfluence < 0 {
		return domain.NewValidationError("base_influence", "must be non-negative")
	}
	if f.XScore < 0 {
		return domain.NewValidationError("x_score", "must be non-negative")
	}
	if f.SignalNoise < 0 {
		return domain.NewValidationError("signal_noise", "must be non-negative")
	}
	if _, ok := domain.NormalizeRiskLevel(f.RiskLevel); f.RiskLevel != "" && !ok {
		return domain.NewValidationError("risk_level", "must be one of LOW, MED, HIGH")
	}
	known := make(map[domain.RedFlag]bool)
	for _, kf := range domain.KnownRedFlags() {
		known[kf] = true
	}
	for _, fl := range f.RedFlags {
		if !known[fl] {
			return domain.NewValidationError("red_flags", fmt.Sprintf("unknown flag %q", fl))
		}
	}
	for name, v := range map[string]*float64{
		"consistency_0_1":               f.Consistency,
		"early_signal_score_0_1":        f.EarlyScore,
		"audience_quality_score_0_1":    f.AudienceQuality,
		"authority_proximity_score_0_1": f.AuthorityProximity,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return domain.NewValidationError(name, "must be in [0,1]")
		}
	}
	return nil
}

// Compute scores one account. Missing inputs degrade toward neutral
// component values and a lower confidence, never an error.
func (e *Engine) Compute(ctx context.Context, f *domain.AccountFeatures, p domain.TwitterScoreParams) domain.ScoreResult {
	start := time.Now()

	var sources []string
	present := 0

	// influence
	influence := neutral
	if f.BaseInfluence > 0 {
		influence = domain.Clamp01(f.BaseInfluence / p.InfluenceNorm)
		sources = append(sources, "base_influence")
		present++
	}

	// quality
	quality := neutral
	if f.XScore > 0 || f.SignalNoise > 0 {
		quality = domain.Clamp01(0.6*(f.XScore/p.XScoreNorm) + 0.4*(f.SignalNoise/p.SignalNoiseNorm))
		if f.XScore > 0 {
			sources = append(sources, "x_score")
		}
		if f.SignalNoise > 0 {
			sources = append(sources, "signal_noise")
		}
		present++
	}

	// trend, falling back to persisted score history
	trend := neutral
	switch {
	case f.Velocity != nil:
		accel := 0.0
		if f.Acceleration != nil {
			accel = *f.Acceleration
		}
		trend = domain.Clamp01(neutral + 0.5*(*f.Velocity) + 0.25*accel)
		sources = append(sources, "velocity")
		present++
	case e.trends != nil:
		if t, ok := e.trends.RecentTrend(ctx, f.AccountID); ok {
			trend = domain.Clamp01(t)
			sources = append(sources, "score_history")
			present++
		}
	}

	// network_proxy, in order of evidence strength
	networkProxy := p.NetworkProxyDefault
	switch {
	case f.AudienceQuality != nil && f.AuthorityProximity != nil:
		networkProxy = domain.Clamp01(0.7*(*f.AudienceQuality) + 0.3*(*f.AuthorityProximity))
		sources = append(sources, "audience_quality", "authority_proximity")
		present++
	case f.AudienceQuality != nil:
		networkProxy = *f.AudienceQuality
		sources = append(sources, "audience_quality")
		present++
	case f.AuthorityProximity != nil:
		networkProxy = *f.AuthorityProximity
		sources = append(sources, "authority_proximity")
		present++
	case f.EarlyScore != nil:
		networkProxy = *f.EarlyScore
		sources = append(sources, "early_signal")
		present++
	case f.EarlyBadge != "":
		if s, ok := p.EarlyBadgeScores[f.EarlyBadge]; ok {
			networkProxy = s
			sources = append(sources, "early_signal")
			present++
		}
	}

	// consistency
	consistency := neutral
	if f.Consistency != nil {
		consistency = *f.Consistency
		sources = append(sources, "consistency")
		present++
	}

	components := domain.ScoreComponents{
		Influence:    influence,
		Quality:      quality,
		Trend:        trend,
		NetworkProxy: networkProxy,
		Consistency:  consistency,
	}

	weighted := p.Weights.Influence*influence +
		p.Weights.Quality*quality +
		p.Weights.Trend*trend +
		p.Weights.NetworkProxy*networkProxy +
		p.Weights.Consistency*consistency

	penalties := penalize(f, p.Penalties)

	final01 := domain.Clamp01(weighted - penalties.Applied)
	final := int(math.Round(final01 * 1000))

	res := domain.ScoreResult{
		AccountID:   f.AccountID,
		Score:       final,
		Grade:       GradeFor(final, p.Grades),
		Confidence:  confidence(present),
		Components:  components,
		RiskPenalty: penalties.Applied,
		Debug: domain.ScoreDebug{
			WeightedSum: weighted,
			Weights:     p.Weights.Map(),
			Penalties:   penalties,
		},
		Meta: domain.ResultMeta{
			EvaluationID: uuid.New().String(),
			ComputedAt:   time.Now().UTC(),
			Version:      p.Version,
			DataSources:  sources,
		},
	}

	res.Explain = e.explain(&res, f, p)
	res.Meta.ProcessMs = time.Since(start).Milliseconds()
	return res
}

// penalize looks up the risk-level and red-flag penalties and caps the
// total. Duplicate flags count once.
func penalize(f *domain.AccountFeatures, p domain.PenaltyParams) domain.PenaltyBreakdown {
	var bd domain.PenaltyBreakdown

	level, _ := domain.NormalizeRiskLevel(f.RiskLevel)
	bd.RiskLevel = p.RiskLevel[level]

	seen := make(map[domain.RedFlag]bool)
	for _, fl := range f.RedFlags {
		if seen[fl] {
			continue
		}
		seen[fl] = true
		bd.RedFlags += p.RedFlags[fl]
	}

	bd.Applied = bd.RiskLevel + bd.RedFlags
	if bd.Applied > p.MaxTotal {
		bd.Applied = p.MaxTotal
	}
	return bd
}

// GradeFor maps a 0-1000 score onto a letter grade.
func GradeFor(score int, g domain.GradeThresholds) string {
	s := float64(score)
	switch {
	case s >= g.S:
		return domain.GradeS
	case s >= g.A:
		return domain.GradeA
	case s >= g.B:
		return domain.GradeB
	case s >= g.C:
		return domain.GradeC
	default:
		return domain.GradeD
	}
}

func confidence(present int) domain.Confidence {
	switch {
	case present >= 5:
		return domain.ConfidenceHigh
	case present >= 3:
		return domain.ConfidenceMed
	default:
		return domain.ConfidenceLow
	}
}

func (e *Engine) explain(res *domain.ScoreResult, f *domain.AccountFeatures, p domain.TwitterScoreParams) domain.ScoreExplain {
	type contrib struct {
		name  string
		value float64
	}
	contribs := []contrib{
		{"influence", p.Weights.Influence * res.Components.Influence},
		{"quality", p.Weights.Quality * res.Components.Quality},
		{"trend", p.Weights.Trend * res.Components.Trend},
		{"network_proxy", p.Weights.NetworkProxy * res.Components.NetworkProxy},
		{"consistency", p.Weights.Consistency * res.Components.Consistency},
	}
	sort.Slice(contribs, func(i, j int) bool {
		if contribs[i].value != contribs[j].value {
			return contribs[i].value > contribs[j].value
		}
		return contribs[i].name < contribs[j].name
	})

	ex := domain.ScoreExplain{
		Summary: fmt.Sprintf("grade %s account (twitter score %d)", res.Grade, res.Score),
	}
	for _, c := range contribs {
		if c.value >= p.DriverSignificance {
			ex.Drivers = append(ex.Drivers, fmt.Sprintf("%s (%.2f)", c.name, c.value))
		}
	}

	if e.insights != nil {
		level, _ := domain.NormalizeRiskLevel(f.RiskLevel)
		flags := make([]string, 0, len(f.RedFlags))
		for _, fl := range f.RedFlags {
			flags = append(flags, string(fl))
		}
		ins := e.insights.Evaluate(res, level, flags)
		ex.Concerns = ins.Concerns
		ex.Recommendations = ins.Recommendations
	}
	return ex
}
