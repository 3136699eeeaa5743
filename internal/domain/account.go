package domain

// RiskLevel classifies an account's overall risk bucket.
type RiskLevel string

const (
	RiskLow  RiskLevel = "LOW"
	RiskMed  RiskLevel = "MED"
	RiskHigh RiskLevel = "HIGH"
)

// NormalizeRiskLevel maps loosely-cased inputs ("low", "High") onto the enum.
// Unknown values return RiskLow and ok=false.
func NormalizeRiskLevel(s string) (RiskLevel, bool) {
	switch s {
	case "LOW", "low", "Low", "":
		return RiskLow, s != ""
	case "MED", "med", "Med", "MEDIUM", "medium":
		return RiskMed, true
	case "HIGH", "high", "High":
		return RiskHigh, true
	default:
		return RiskLow, false
	}
}

// RedFlag is a categorical risk tag attached to an account.
type RedFlag string

const (
	FlagViralSpike      RedFlag = "VIRAL_SPIKE"
	FlagBotLikePattern  RedFlag = "BOT_LIKE_PATTERN"
	FlagRepostFarm      RedFlag = "REPOST_FARM"
	FlagFakeEngagement  RedFlag = "FAKE_ENGAGEMENT"
	FlagAudienceOverlap RedFlag = "AUDIENCE_OVERLAP"
)

// KnownRedFlags lists every recognized flag, in stable order.
func KnownRedFlags() []RedFlag {
	return []RedFlag{
		FlagViralSpike,
		FlagBotLikePattern,
		FlagRepostFarm,
		FlagFakeEngagement,
		FlagAudienceOverlap,
	}
}

// OverlapStats is audience-overlap evidence against a sample of peer accounts.
type OverlapStats struct {
	AvgJaccard float64 `json:"avg_jaccard"`
	MaxJaccard float64 `json:"max_jaccard"`
	AvgShared  float64 `json:"avg_shared"`
	MaxShared  float64 `json:"max_shared"`
	SampleSize int     `json:"sample_size"`
}

// AccountFeatures is the per-request feature bundle for one account.
// It is immutable for the lifetime of a request and never persisted as-is.
type AccountFeatures struct {
	AccountID     string        `json:"account_id"`
	BaseInfluence float64       `json:"base_influence,omitempty"`
	XScore        float64       `json:"x_score,omitempty"`
	SignalNoise   float64       `json:"signal_noise,omitempty"`
	Velocity      *float64      `json:"velocity,omitempty"`
	Acceleration  *float64      `json:"acceleration,omitempty"`
	RiskLevel     string        `json:"risk_level,omitempty"`
	RedFlags      []RedFlag     `json:"red_flags,omitempty"`
	Consistency   *float64      `json:"consistency_0_1,omitempty"`
	EarlyBadge    string        `json:"early_signal_badge,omitempty"`
	EarlyScore    *float64      `json:"early_signal_score_0_1,omitempty"`
	Overlap       *OverlapStats `json:"overlap,omitempty"`

	// AudienceQuality, when supplied, overrides the network_proxy component
	// of the unified score (cross-engine contract).
	AudienceQuality *float64 `json:"audience_quality_score_0_1,omitempty"`

	// AuthorityProximity optionally blends graph evidence into network_proxy.
	AuthorityProximity *float64 `json:"authority_proximity_score_0_1,omitempty"`
}
