package audience

import (
	"testing"

	"github.com/opensource-social/kestrel/internal/domain"
)

func f(v float64) *float64 { return &v }

func cleanRequest() *Request {
	return &Request{
		AccountID:   "clean_account",
		XScore:      f(850),
		SignalNoise: f(8.0),
		Consistency: f(0.75),
		RedFlags:    []domain.RedFlag{},
		Overlap: &domain.OverlapStats{
			AvgJaccard: 0.03,
			MaxJaccard: 0.08,
			AvgShared:  8,
			MaxShared:  20,
			SampleSize: 10,
		},
	}
}

func riskyRequest() *Request {
	return &Request{
		AccountID:   "risky_account",
		XScore:      f(450),
		SignalNoise: f(3.5),
		Consistency: f(0.45),
		RedFlags: []domain.RedFlag{
			domain.FlagAudienceOverlap,
			domain.FlagBotLikePattern,
			domain.FlagFakeEngagement,
		},
		Overlap: &domain.OverlapStats{
			AvgJaccard: 0.20,
			MaxJaccard: 0.35,
			AvgShared:  80,
			MaxShared:  150,
			SampleSize: 12,
		},
	}
}

func TestCleanAccountScoresHigh(t *testing.T) {
	p := domain.DefaultAudienceQualityParams()
	res := Compute(cleanRequest(), p)

	if res.Evidence.Purity < 0.6 {
		t.Errorf("expected purity >= 0.6 for clean account, got %.3f", res.Evidence.Purity)
	}
	if res.Score < 0.6 {
		t.Errorf("expected score >= 0.6 for clean account, got %.3f", res.Score)
	}
	if res.Confidence != domain.ConfidenceHigh {
		t.Errorf("expected HIGH confidence with full inputs, got %s", res.Confidence)
	}
}

func TestRiskyAccountScoresLow(t *testing.T) {
	p := domain.DefaultAudienceQualityParams()
	res := Compute(riskyRequest(), p)

	if res.Evidence.Purity > 0.5 {
		t.Errorf("expected purity <= 0.5 for risky account, got %.3f", res.Evidence.Purity)
	}
	if res.Score > 0.5 {
		t.Errorf("expected score <= 0.5 for risky account, got %.3f", res.Score)
	}
	if len(res.Explain.Concerns) == 0 {
		t.Error("expected concerns for risky account")
	}
}

func TestScoreAlwaysInRange(t *testing.T) {
	p := domain.DefaultAudienceQualityParams()

	cases := []*Request{
		{AccountID: "empty"},
		{AccountID: "max-overlap", Overlap: &domain.OverlapStats{AvgJaccard: 1, MaxJaccard: 1, SampleSize: 50}},
		{AccountID: "all-flags", RedFlags: domain.KnownRedFlags()},
		{AccountID: "huge-x", XScore: f(99999), SignalNoise: f(1000)},
	}
	for _, req := range cases {
		res := Compute(req, p)
		if res.Score < 0 || res.Score > 1 {
			t.Errorf("%s: score out of range: %v", req.AccountID, res.Score)
		}
		for name, v := range map[string]float64{
			"overlap_pressure": res.Evidence.OverlapPressure,
			"bot_risk":         res.Evidence.BotRisk,
			"purity":           res.Evidence.Purity,
		} {
			if v < 0 || v > 1 {
				t.Errorf("%s: %s out of range: %v", req.AccountID, name, v)
			}
		}
	}
}

func TestPurityMonotoneInOverlapPressure(t *testing.T) {
	p := domain.DefaultAudienceQualityParams()

	prev := 2.0
	for _, avg := range []float64{0.0, 0.03, 0.06, 0.09, 0.12} {
		req := cleanRequest()
		req.Overlap.AvgJaccard = avg
		req.Overlap.MaxJaccard = avg * 2
		res := Compute(req, p)
		if res.Evidence.Purity >= prev {
			t.Errorf("purity did not strictly decrease: avg_jaccard=%v purity=%.4f prev=%.4f",
				avg, res.Evidence.Purity, prev)
		}
		prev = res.Evidence.Purity
	}
}

func TestPurityMonotoneInRedFlags(t *testing.T) {
	p := domain.DefaultAudienceQualityParams()
	all := domain.KnownRedFlags()

	prev := 2.0
	for n := 0; n <= 4; n++ {
		req := cleanRequest()
		req.RedFlags = all[:n]
		res := Compute(req, p)
		if res.Evidence.Purity >= prev {
			t.Errorf("purity did not strictly decrease with %d flags: %.4f >= %.4f",
				n, res.Evidence.Purity, prev)
		}
		prev = res.Evidence.Purity
	}
}

func TestPurityNeverExceedsCleanBaseline(t *testing.T) {
	p := domain.DefaultAudienceQualityParams()
	baseline := Compute(cleanRequest(), p).Evidence.Purity

	req := cleanRequest()
	req.RedFlags = []domain.RedFlag{domain.FlagViralSpike}
	req.Overlap.AvgJaccard = 0.10
	if got := Compute(req, p).Evidence.Purity; got > baseline {
		t.Errorf("purity %.3f exceeds clean baseline %.3f", got, baseline)
	}
}

func TestDuplicateFlagsCountOnce(t *testing.T) {
	p := domain.DefaultAudienceQualityParams()

	once := Compute(&Request{
		AccountID: "a",
		RedFlags:  []domain.RedFlag{domain.FlagBotLikePattern},
	}, p)
	twice := Compute(&Request{
		AccountID: "a",
		RedFlags:  []domain.RedFlag{domain.FlagBotLikePattern, domain.FlagBotLikePattern},
	}, p)
	if once.Evidence.BotRisk != twice.Evidence.BotRisk {
		t.Errorf("duplicate flag changed bot risk: %v vs %v", once.Evidence.BotRisk, twice.Evidence.BotRisk)
	}
}

func TestInputsUsedReflectsPartialInput(t *testing.T) {
	p := domain.DefaultAudienceQualityParams()
	res := Compute(&Request{AccountID: "partial", XScore: f(700)}, p)

	if len(res.Evidence.InputsUsed) != 1 || res.Evidence.InputsUsed[0] != "x_score" {
		t.Errorf("unexpected inputs_used: %v", res.Evidence.InputsUsed)
	}
	if res.Confidence != domain.ConfidenceLow {
		t.Errorf("expected LOW confidence for single input, got %s", res.Confidence)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     *Request
		wantErr bool
	}{
		{"valid", cleanRequest(), false},
		{"missing account id", &Request{}, true},
		{"negative x_score", &Request{AccountID: "a", XScore: f(-1)}, true},
		{"consistency above 1", &Request{AccountID: "a", Consistency: f(1.5)}, true},
		{"unknown red flag", &Request{AccountID: "a", RedFlags: []domain.RedFlag{"NOT_A_FLAG"}}, true},
		{"jaccard above 1", &Request{AccountID: "a", Overlap: &domain.OverlapStats{AvgJaccard: 1.2}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.req)
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tc.wantErr && err != nil && !domain.IsValidation(err) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}
