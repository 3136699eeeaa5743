package domain

import (
	"fmt"
	"math"
)

// Engine names as they appear in routes and persisted records.
const (
	EngineAudienceQuality = "audience-quality"
	EngineHops            = "hops"
	EngineTwitterScore    = "twitter-score"
)

// WeightTolerance is how far a weight set may drift from summing to 1.0.
const WeightTolerance = 0.01

// MaxHopsLimit bounds graph traversal depth.
const MaxHopsLimit = 3

// MaxBatchItems bounds batch request size; exceeding it is a validation
// error, never a silent truncation.
const MaxBatchItems = 50

// ParamSet is the capability shared by all engine parameter sets: each can
// fully validate itself after an admin merge.
type ParamSet interface {
	Validate() error
}

// ---------------------------------------------------------------------------
// Audience quality

// AudienceWeights blends the audience-quality sub-signals. Must sum to 1.0.
type AudienceWeights struct {
	Purity              float64 `json:"purity"`
	SmartFollowersProxy float64 `json:"smart_followers_proxy"`
	SignalQuality       float64 `json:"signal_quality"`
	Consistency         float64 `json:"consistency"`
}

// OverlapParams scale Jaccard overlap into overlap pressure.
type OverlapParams struct {
	AvgWarn   float64 `json:"avg_warn"`   // avg_jaccard at which the avg term saturates
	MaxWarn   float64 `json:"max_warn"`   // max_jaccard at which the max term saturates
	AvgWeight float64 `json:"avg_weight"` // blend weight of the avg term
	MaxWeight float64 `json:"max_weight"` // blend weight of the max term
}

// BotRiskParams convert red flags into bot risk.
type BotRiskParams struct {
	PerFlag float64 `json:"per_flag"`
	Cap     float64 `json:"cap"`
}

// PurityCombine weighs overlap pressure against bot risk inside purity.
type PurityCombine struct {
	Overlap float64 `json:"overlap"`
	Bot     float64 `json:"bot"`
}

// QualityThresholds bucket final scores into high/medium/low.
type QualityThresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
}

// AudienceQualityParams is the audience-quality engine configuration.
type AudienceQualityParams struct {
	Version           string            `json:"version"`
	Weights           AudienceWeights   `json:"weights"`
	Overlap           OverlapParams     `json:"overlap"`
	BotRisk           BotRiskParams     `json:"botRisk"`
	PurityCombine     PurityCombine     `json:"purity_combine"`
	QualityThresholds QualityThresholds `json:"quality_thresholds"`
	XScoreNorm        float64           `json:"x_score_norm"`
	SignalNoiseNorm   float64           `json:"signal_noise_norm"`
}

// DefaultAudienceQualityParams is the baked-in starting configuration.
func DefaultAudienceQualityParams() AudienceQualityParams {
	return AudienceQualityParams{
		Version: "1.0.0",
		Weights: AudienceWeights{
			Purity:              0.40,
			SmartFollowersProxy: 0.25,
			SignalQuality:       0.20,
			Consistency:         0.15,
		},
		Overlap: OverlapParams{
			AvgWarn:   0.15,
			MaxWarn:   0.30,
			AvgWeight: 0.65,
			MaxWeight: 0.35,
		},
		BotRisk:           BotRiskParams{PerFlag: 0.18, Cap: 0.75},
		PurityCombine:     PurityCombine{Overlap: 0.60, Bot: 0.40},
		QualityThresholds: QualityThresholds{High: 0.70, Medium: 0.40},
		XScoreNorm:        1000,
		SignalNoiseNorm:   10,
	}
}

// Validate checks internal consistency after a merge.
func (p AudienceQualityParams) Validate() error {
	sum := p.Weights.Purity + p.Weights.SmartFollowersProxy +
		p.Weights.SignalQuality + p.Weights.Consistency
	if err := checkWeightSum("weights", sum); err != nil {
		return err
	}
	for name, w := range map[string]float64{
		"weights.purity":                p.Weights.Purity,
		"weights.smart_followers_proxy": p.Weights.SmartFollowersProxy,
		"weights.signal_quality":        p.Weights.SignalQuality,
		"weights.consistency":           p.Weights.Consistency,
	} {
		if w < 0 || w > 1 {
			return NewValidationError(name, "must be in [0,1]")
		}
	}
	if p.Overlap.AvgWarn <= 0 || p.Overlap.MaxWarn <= 0 {
		return NewValidationError("overlap", "warn thresholds must be positive")
	}
	if err := checkWeightSum("overlap blend", p.Overlap.AvgWeight+p.Overlap.MaxWeight); err != nil {
		return err
	}
	if p.BotRisk.PerFlag < 0 || p.BotRisk.PerFlag > 1 || p.BotRisk.Cap <= 0 || p.BotRisk.Cap > 1 {
		return NewValidationError("botRisk", "per_flag and cap must be in (0,1]")
	}
	if err := checkWeightSum("purity_combine", p.PurityCombine.Overlap+p.PurityCombine.Bot); err != nil {
		return err
	}
	if !(p.QualityThresholds.High > p.QualityThresholds.Medium) ||
		p.QualityThresholds.Medium <= 0 || p.QualityThresholds.High >= 1 {
		return NewValidationError("quality_thresholds", "need 0 < medium < high < 1")
	}
	if p.XScoreNorm <= 0 || p.SignalNoiseNorm <= 0 {
		return NewValidationError("norms", "x_score_norm and signal_noise_norm must be positive")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Graph proximity (hops)

// HopsParams is the graph-proximity engine configuration.
type HopsParams struct {
	Version         string  `json:"version"`
	MaxHops         int     `json:"max_hops"`
	EdgeMinStrength float64 `json:"edge_min_strength"`
	TopN            int     `json:"top_n"`

	// HopWeights[h-1] is the contribution weight of a top node at h hops.
	// Must be strictly decreasing over hops 1..MaxHopsLimit.
	HopWeights []float64 `json:"hop_weights"`

	// SaturationCap divides the hop-weighted strength sum before clamping
	// into [0,1].
	SaturationCap float64 `json:"saturation_cap"`

	MinReachable  int `json:"min_reachable"`  // below this → LOW confidence
	HighReachable int `json:"high_reachable"` // at/above this (and HighExplored) → HIGH
	HighExplored  int `json:"high_explored"`
}

// DefaultHopsParams is the baked-in starting configuration.
func DefaultHopsParams() HopsParams {
	return HopsParams{
		Version:         "1.0.0",
		MaxHops:         2,
		EdgeMinStrength: 0.10,
		TopN:            5,
		HopWeights:      []float64{1.0, 0.60, 0.35},
		SaturationCap:   3.0,
		MinReachable:    2,
		HighReachable:   3,
		HighExplored:    10,
	}
}

// Validate checks internal consistency after a merge.
func (p HopsParams) Validate() error {
	if p.MaxHops < 1 || p.MaxHops > MaxHopsLimit {
		return NewValidationError("max_hops", fmt.Sprintf("must be in [1,%d]", MaxHopsLimit))
	}
	if p.EdgeMinStrength < 0 || p.EdgeMinStrength >= 1 {
		return NewValidationError("edge_min_strength", "must be in [0,1)")
	}
	if p.TopN < 1 {
		return NewValidationError("top_n", "must be at least 1")
	}
	if len(p.HopWeights) < MaxHopsLimit {
		return NewValidationError("hop_weights", fmt.Sprintf("need %d entries", MaxHopsLimit))
	}
	prev := math.Inf(1)
	for i, w := range p.HopWeights[:MaxHopsLimit] {
		if w <= 0 || w > 1 {
			return NewValidationError("hop_weights", fmt.Sprintf("entry %d must be in (0,1]", i+1))
		}
		if w >= prev {
			return NewValidationError("hop_weights", "must be strictly decreasing")
		}
		prev = w
	}
	if p.SaturationCap <= 0 {
		return NewValidationError("saturation_cap", "must be positive")
	}
	if p.MinReachable < 1 || p.HighReachable < p.MinReachable || p.HighExplored < 1 {
		return NewValidationError("confidence", "need 1 <= min_reachable <= high_reachable and positive high_explored")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Unified score (twitter-score)

// ScoreWeights blends the five unified-score components. Must sum to 1.0.
type ScoreWeights struct {
	Influence    float64 `json:"influence"`
	Quality      float64 `json:"quality"`
	Trend        float64 `json:"trend"`
	NetworkProxy float64 `json:"network_proxy"`
	Consistency  float64 `json:"consistency"`
}

// Map returns the weights keyed by component name (for debug snapshots).
func (w ScoreWeights) Map() map[string]float64 {
	return map[string]float64{
		"influence":     w.Influence,
		"quality":       w.Quality,
		"trend":         w.Trend,
		"network_proxy": w.NetworkProxy,
		"consistency":   w.Consistency,
	}
}

// PenaltyParams hold the risk penalty tables.
type PenaltyParams struct {
	RiskLevel map[RiskLevel]float64 `json:"risk_level"`
	RedFlags  map[RedFlag]float64   `json:"red_flags"`
	MaxTotal  float64               `json:"max_total_penalty"`
}

// GradeThresholds are the minimum 0-1000 scores per grade. D must be 0 so
// every score maps to a grade; the rest must be strictly decreasing.
type GradeThresholds struct {
	S float64 `json:"S"`
	A float64 `json:"A"`
	B float64 `json:"B"`
	C float64 `json:"C"`
	D float64 `json:"D"`
}

// TwitterScoreParams is the unified aggregator configuration.
type TwitterScoreParams struct {
	Version   string          `json:"version"`
	Weights   ScoreWeights    `json:"weights"`
	Penalties PenaltyParams   `json:"penalties"`
	Grades    GradeThresholds `json:"grade_thresholds"`

	InfluenceNorm   float64 `json:"influence_norm"`
	XScoreNorm      float64 `json:"x_score_norm"`
	SignalNoiseNorm float64 `json:"signal_noise_norm"`

	NetworkProxyDefault float64            `json:"network_proxy_default"`
	EarlyBadgeScores    map[string]float64 `json:"early_badge_scores"`

	// DriverSignificance is the minimum weighted contribution for a
	// component to be listed as a driver.
	DriverSignificance float64 `json:"driver_significance"`
}

// DefaultTwitterScoreParams is the baked-in starting configuration.
func DefaultTwitterScoreParams() TwitterScoreParams {
	return TwitterScoreParams{
		Version: "1.0.0",
		Weights: ScoreWeights{
			Influence:    0.30,
			Quality:      0.25,
			Trend:        0.15,
			NetworkProxy: 0.20,
			Consistency:  0.10,
		},
		Penalties: PenaltyParams{
			RiskLevel: map[RiskLevel]float64{
				RiskLow:  0,
				RiskMed:  0.05,
				RiskHigh: 0.15,
			},
			RedFlags: map[RedFlag]float64{
				FlagViralSpike:      0.03,
				FlagAudienceOverlap: 0.05,
				FlagBotLikePattern:  0.08,
				FlagRepostFarm:      0.08,
				FlagFakeEngagement:  0.08,
			},
			MaxTotal: 0.35,
		},
		Grades: GradeThresholds{S: 900, A: 750, B: 600, C: 450, D: 0},

		InfluenceNorm:   1000,
		XScoreNorm:      1000,
		SignalNoiseNorm: 10,

		NetworkProxyDefault: 0.50,
		EarlyBadgeScores: map[string]float64{
			"rising": 0.65,
			"hot":    0.80,
			"new":    0.45,
		},
		DriverSignificance: 0.10,
	}
}

// Validate checks internal consistency after a merge.
func (p TwitterScoreParams) Validate() error {
	sum := p.Weights.Influence + p.Weights.Quality + p.Weights.Trend +
		p.Weights.NetworkProxy + p.Weights.Consistency
	if err := checkWeightSum("weights", sum); err != nil {
		return err
	}
	for name, w := range p.Weights.Map() {
		if w < 0 || w > 1 {
			return NewValidationError("weights."+name, "must be in [0,1]")
		}
	}
	for level, pen := range p.Penalties.RiskLevel {
		if pen < 0 || pen > 1 {
			return NewValidationError("penalties.risk_level."+string(level), "must be in [0,1]")
		}
	}
	for flag, pen := range p.Penalties.RedFlags {
		if pen < 0 || pen > 1 {
			return NewValidationError("penalties.red_flags."+string(flag), "must be in [0,1]")
		}
	}
	if p.Penalties.MaxTotal <= 0 || p.Penalties.MaxTotal > 1 {
		return NewValidationError("penalties.max_total_penalty", "must be in (0,1]")
	}
	g := p.Grades
	if g.D != 0 {
		return NewValidationError("grade_thresholds.D", "must be 0 so every score maps to a grade")
	}
	if !(g.S > g.A && g.A > g.B && g.B > g.C && g.C > g.D) {
		return NewValidationError("grade_thresholds", "must be strictly ordered S > A > B > C > D")
	}
	if g.S > 1000 {
		return NewValidationError("grade_thresholds.S", "must not exceed 1000")
	}
	if p.InfluenceNorm <= 0 || p.XScoreNorm <= 0 || p.SignalNoiseNorm <= 0 {
		return NewValidationError("norms", "normalization divisors must be positive")
	}
	if p.NetworkProxyDefault < 0 || p.NetworkProxyDefault > 1 {
		return NewValidationError("network_proxy_default", "must be in [0,1]")
	}
	for badge, s := range p.EarlyBadgeScores {
		if s < 0 || s > 1 {
			return NewValidationError("early_badge_scores."+badge, "must be in [0,1]")
		}
	}
	if p.DriverSignificance < 0 || p.DriverSignificance > 1 {
		return NewValidationError("driver_significance", "must be in [0,1]")
	}
	return nil
}

func checkWeightSum(name string, sum float64) error {
	if math.Abs(sum-1.0) > WeightTolerance {
		return NewValidationError(name, fmt.Sprintf("must sum to 1.0 within %.2f, got %.4f", WeightTolerance, sum))
	}
	return nil
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
