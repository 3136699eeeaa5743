package domain

import "time"

// Confidence is the evidence-completeness tier attached to every result.
type Confidence string

const (
	ConfidenceLow  Confidence = "LOW"
	ConfidenceMed  Confidence = "MED"
	ConfidenceHigh Confidence = "HIGH"
)

// Grade buckets for the unified 0-1000 score.
const (
	GradeS = "S"
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
	GradeD = "D"
)

// Grades lists every grade from best to worst.
func Grades() []string {
	return []string{GradeS, GradeA, GradeB, GradeC, GradeD}
}

// ResultMeta carries provenance shared by all engine results.
type ResultMeta struct {
	EvaluationID   string    `json:"evaluation_id,omitempty"`
	ComputedAt     time.Time `json:"computed_at"`
	Version        string    `json:"version"`
	ConfigRevision int       `json:"config_revision"`
	DataSources    []string  `json:"data_sources,omitempty"`
	Cached         bool      `json:"cached,omitempty"`
	ProcessMs      int64     `json:"process_ms,omitempty"`
}

// QualityEvidence is the audience-quality sub-score breakdown.
type QualityEvidence struct {
	OverlapPressure float64  `json:"overlap_pressure_0_1"`
	BotRisk         float64  `json:"bot_risk_0_1"`
	Purity          float64  `json:"purity_0_1"`
	InputsUsed      []string `json:"inputs_used"`
}

// QualityExplain is the human-readable audience-quality explanation.
type QualityExplain struct {
	Summary  string   `json:"summary"`
	Drivers  []string `json:"drivers,omitempty"`
	Concerns []string `json:"concerns,omitempty"`
}

// QualityResult is the audience-quality engine output for one account.
type QualityResult struct {
	AccountID  string          `json:"account_id"`
	Score      float64         `json:"audience_quality_score_0_1"`
	Confidence Confidence      `json:"confidence"`
	Evidence   QualityEvidence `json:"evidence"`
	Explain    QualityExplain  `json:"explain"`
	Meta       ResultMeta      `json:"meta"`
	Error      string          `json:"error,omitempty"`
}

// TopNodePath is one shortest path from the source account to a top node.
type TopNodePath struct {
	TargetID     string  `json:"target_id"`
	Hops         int     `json:"hops"`
	PathStrength float64 `json:"path_strength"`
}

// ProximitySummary condenses the traversal into headline numbers.
type ProximitySummary struct {
	Score             float64    `json:"authority_proximity_score_0_1"`
	Confidence        Confidence `json:"confidence"`
	ReachableTopNodes int        `json:"reachable_top_nodes"`
	MinHopsToAnyTop   int        `json:"min_hops_to_any_top"` // 0 when nothing is reachable
	NodesExplored     int        `json:"nodes_explored"`
}

// ProximityResult is the graph-proximity engine output for one account.
type ProximityResult struct {
	AccountID string           `json:"account_id"`
	TopNodes  []string         `json:"top_nodes"`
	Paths     []TopNodePath    `json:"paths"`
	Summary   ProximitySummary `json:"summary"`
	Meta      ResultMeta       `json:"meta"`
	Error     string           `json:"error,omitempty"`
}

// ScoreComponents are the five normalized inputs to the unified score.
type ScoreComponents struct {
	Influence    float64 `json:"influence"`
	Quality      float64 `json:"quality"`
	Trend        float64 `json:"trend"`
	NetworkProxy float64 `json:"network_proxy"`
	Consistency  float64 `json:"consistency"`
}

// PenaltyBreakdown itemizes the risk penalty.
type PenaltyBreakdown struct {
	RiskLevel float64 `json:"risk_level"`
	RedFlags  float64 `json:"red_flags"`
	Applied   float64 `json:"applied"` // after the max_total_penalty cap
}

// ScoreDebug exposes the aggregation internals for auditability.
type ScoreDebug struct {
	WeightedSum float64            `json:"weighted_sum_0_1"`
	Weights     map[string]float64 `json:"weights"`
	Penalties   PenaltyBreakdown   `json:"penalties"`
}

// ScoreExplain is the human-readable unified-score explanation.
type ScoreExplain struct {
	Summary         string   `json:"summary"`
	Drivers         []string `json:"drivers,omitempty"`
	Concerns        []string `json:"concerns,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// ScoreResult is the unified aggregator output for one account.
type ScoreResult struct {
	AccountID   string          `json:"account_id"`
	Score       int             `json:"twitter_score_1000"`
	Grade       string          `json:"grade"`
	Confidence  Confidence      `json:"confidence"`
	Components  ScoreComponents `json:"components"`
	RiskPenalty float64         `json:"risk_penalty"`
	Debug       ScoreDebug      `json:"debug"`
	Explain     ScoreExplain    `json:"explain"`
	Meta        ResultMeta      `json:"meta"`
	Error       string          `json:"error,omitempty"`
}

// Distribution buckets results into high/medium/low quality tiers.
type Distribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// QualityBatchStats aggregates an audience-quality batch.
type QualityBatchStats struct {
	Total        int          `json:"total"`
	Errors       int          `json:"errors"`
	AvgScore     float64      `json:"avg_score"`
	Distribution Distribution `json:"quality_distribution"`
}

// ProximityBatchStats aggregates a graph-proximity batch.
type ProximityBatchStats struct {
	Total         int     `json:"total"`
	Errors        int     `json:"errors"`
	AvgProximity  float64 `json:"avg_proximity"`
	WellConnected int     `json:"well_connected"`
	Isolated      int     `json:"isolated"`
}

// ScoreBatchStats aggregates a unified-score batch.
type ScoreBatchStats struct {
	Total    int            `json:"total"`
	Errors   int            `json:"errors"`
	AvgScore float64        `json:"avg_score"`
	ByGrade  map[string]int `json:"by_grade"`
}
