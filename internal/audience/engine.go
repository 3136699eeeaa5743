// Package audience computes the audience-quality sub-score: how much of an
// account's audience looks organic versus overlapped or botted.
package audience

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opensource-social/kestrel/internal/domain"
)

// Request carries the audience features for one account. Optional fields
// are pointers so partial-input requests can be told apart from zeroes;
// the result's inputs_used lists what actually fed the score.
type Request struct {
	AccountID   string               `json:"account_id"`
	XScore      *float64             `json:"x_score,omitempty"`
	SignalNoise *float64             `json:"signal_noise,omitempty"`
	Consistency *float64             `json:"consistency_0_1,omitempty"`
	RedFlags    []domain.RedFlag     `json:"red_flags,omitempty"`
	Overlap     *domain.OverlapStats `json:"overlap,omitempty"`
}

// neutral substitutes for missing optional inputs.
const neutral = 0.5

// Validate checks the request without computing anything.
func Validate(req *Request) error {
	if req.AccountID == "" {
		return domain.NewValidationError("account_id", "is required")
	}
	if req.XScore != nil && *req.XScore < 0 {
		return domain.NewValidationError("x_score", "must be non-negative")
	}
	if req.SignalNoise != nil && *req.SignalNoise < 0 {
		return domain.NewValidationError("signal_noise", "must be non-negative")
	}
	if req.Consistency != nil && (*req.Consistency < 0 || *req.Consistency > 1) {
		return domain.NewValidationError("consistency_0_1", "must be in [0,1]")
	}
	known := make(map[domain.RedFlag]bool)
	for _, f := range domain.KnownRedFlags() {
		known[f] = true
	}
	for _, f := range req.RedFlags {
		if !known[f] {
			return domain.NewValidationError("red_flags", fmt.Sprintf("unknown flag %q", f))
		}
	}
	if ov := req.Overlap; ov != nil {
		if ov.AvgJaccard < 0 || ov.AvgJaccard > 1 || ov.MaxJaccard < 0 || ov.MaxJaccard > 1 {
			return domain.NewValidationError("overlap", "jaccard values must be in [0,1]")
		}
		if ov.AvgShared < 0 || ov.MaxShared < 0 || ov.SampleSize < 0 {
			return domain.NewValidationError("overlap", "shared counts and sample_size must be non-negative")
		}
	}
	return nil
}

// Compute produces the audience-quality result for one account. It is a
// pure function of (request, params); the caller fills Meta.
func Compute(req *Request, p domain.AudienceQualityParams) domain.QualityResult {
	res := domain.QualityResult{AccountID: req.AccountID}

	var inputsUsed []string

	// Overlap pressure: a clamped weighted blend of avg and max Jaccard,
	// each scaled by its warn threshold so pressure hits 1.0 at the
	// configured saturation point.
	pressure := 0.0
	if req.Overlap != nil {
		pressure = domain.Clamp01(
			p.Overlap.AvgWeight*(req.Overlap.AvgJaccard/p.Overlap.AvgWarn) +
				p.Overlap.MaxWeight*(req.Overlap.MaxJaccard/p.Overlap.MaxWarn))
		inputsUsed = append(inputsUsed, "overlap")
	}

	// Bot risk: capped per-flag increments. Duplicate flags count once.
	flags := dedupeFlags(req.RedFlags)
	botRisk := float64(len(flags)) * p.BotRisk.PerFlag
	if botRisk > p.BotRisk.Cap {
		botRisk = p.BotRisk.Cap
	}
	if req.RedFlags != nil {
		inputsUsed = append(inputsUsed, "red_flags")
	}

	// Purity strictly decreases as either pressure or bot risk rises, and
	// equals 1.0 only at the clean baseline.
	purity := domain.Clamp01(1 - (p.PurityCombine.Overlap*pressure + p.PurityCombine.Bot*botRisk))

	smartProxy := neutral
	if req.XScore != nil {
		smartProxy = domain.Clamp01(*req.XScore / p.XScoreNorm)
		inputsUsed = append(inputsUsed, "x_score")
	}
	signalQuality := neutral
	if req.SignalNoise != nil {
		signalQuality = domain.Clamp01(*req.SignalNoise / p.SignalNoiseNorm)
		inputsUsed = append(inputsUsed, "signal_noise")
	}
	consistency := neutral
	if req.Consistency != nil {
		consistency = domain.Clamp01(*req.Consistency)
		inputsUsed = append(inputsUsed, "consistency_0_1")
	}

	w := p.Weights
	score := domain.Clamp01(
		w.Purity*purity +
			w.SmartFollowersProxy*smartProxy +
			w.SignalQuality*signalQuality +
			w.Consistency*consistency)

	res.Score = score
	res.Evidence = domain.QualityEvidence{
		OverlapPressure: pressure,
		BotRisk:         botRisk,
		Purity:          purity,
		InputsUsed:      inputsUsed,
	}
	res.Confidence = confidence(req)
	res.Explain = explain(req, p, res.Evidence, score, flags)
	return res
}

// confidence grows with input completeness and overlap sample size.
func confidence(req *Request) domain.Confidence {
	present := 0
	if req.XScore != nil {
		present++
	}
	if req.SignalNoise != nil {
		present++
	}
	if req.Consistency != nil {
		present++
	}
	if req.Overlap != nil {
		present++
	}
	switch {
	case present == 4 && req.Overlap.SampleSize >= 5:
		return domain.ConfidenceHigh
	case present >= 2:
		return domain.ConfidenceMed
	default:
		return domain.ConfidenceLow
	}
}

func explain(req *Request, p domain.AudienceQualityParams, ev domain.QualityEvidence, score float64, flags []domain.RedFlag) domain.QualityExplain {
	var drivers, concerns []string

	if ev.Purity >= p.QualityThresholds.High {
		drivers = append(drivers, fmt.Sprintf("high audience purity (%.2f)", ev.Purity))
	}
	if req.XScore != nil && *req.XScore/p.XScoreNorm >= p.QualityThresholds.High {
		drivers = append(drivers, "strong smart-followers proxy")
	}
	if req.SignalNoise != nil && *req.SignalNoise/p.SignalNoiseNorm >= p.QualityThresholds.High {
		drivers = append(drivers, "clean signal-to-noise ratio")
	}
	if req.Consistency != nil && *req.Consistency >= p.QualityThresholds.High {
		drivers = append(drivers, "consistent posting pattern")
	}

	if ev.OverlapPressure >= 0.5 {
		concerns = append(concerns, fmt.Sprintf("elevated audience overlap (pressure %.2f)", ev.OverlapPressure))
	}
	if len(flags) > 0 {
		names := make([]string, len(flags))
		for i, f := range flags {
			names[i] = string(f)
		}
		concerns = append(concerns, "red flags present: "+strings.Join(names, ", "))
	}
	if ev.BotRisk >= p.BotRisk.Cap {
		concerns = append(concerns, "bot risk at cap")
	}

	tier := "low"
	switch {
	case score >= p.QualityThresholds.High:
		tier = "high"
	case score >= p.QualityThresholds.Medium:
		tier = "medium"
	}

	return domain.QualityExplain{
		Summary:  fmt.Sprintf("%s audience quality (%.2f)", tier, score),
		Drivers:  drivers,
		Concerns: concerns,
	}
}

// Tier buckets a final score against the configured thresholds.
func Tier(score float64, p domain.AudienceQualityParams) string {
	switch {
	case score >= p.QualityThresholds.High:
		return "high"
	case score >= p.QualityThresholds.Medium:
		return "medium"
	default:
		return "low"
	}
}

func dedupeFlags(flags []domain.RedFlag) []domain.RedFlag {
	if len(flags) == 0 {
		return nil
	}
	seen := make(map[domain.RedFlag]bool, len(flags))
	out := make([]domain.RedFlag, 0, len(flags))
	for _, f := range flags {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
