// Package insight provides the CEL-Go based insight rule engine.
//
// Insight rules inspect a computed score result and emit concerns and
// recommendations. Rules are CEL boolean expressions over the score
// components and penalty data, so operators can add or tune concerns
// without a rebuild.
package insight

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-social/kestrel/internal/domain"
)

// Rule is a single insight rule. When the expression evaluates to true
// against a score result, the message and recommendation are attached
// to the result's explanation.
type Rule struct {
	ID             string `json:"id"`
	Category       string `json:"category"` // "concern" or "recommendation"
	Expression     string `json:"expression"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation,omitempty"`
	Enabled        bool   `json:"enabled"`
}

// Rule categories.
const (
	CategoryConcern        = "concern"
	CategoryRecommendation = "recommendation"
)

// Insights collects the fired rule output for one result.
type Insights struct {
	Concerns        []string
	Recommendations []string
}

// Engine compiles and evaluates insight rules.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledRule
}

type compiledRule struct {
	rule    Rule
	program cel.Program
}

// NewEngine creates an insight engine with the score-result variable set.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("score", cel.IntType),
		cel.Variable("grade", cel.StringType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("red_flags", cel.ListType(cel.StringType)),
		cel.Variable("penalty", cel.DoubleType),
		cel.Variable("influence", cel.DoubleType),
		cel.Variable("quality", cel.DoubleType),
		cel.Variable("trend", cel.DoubleType),
		cel.Variable("network_proxy", cel.DoubleType),
		cel.Variable("consistency", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*compiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(r Rule) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compile(r)
	return err
}

// LoadRule compiles and loads a single rule, replacing any rule with the
// same ID.
func (e *Engine) LoadRule(r Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compile(r)
	if err != nil {
		return err
	}
	e.compiled[r.ID] = compiled
	return nil
}

// LoadRules compiles and loads the enabled rules from the set.
func (e *Engine) LoadRules(rules []Rule) error {
	for _, r := range rules {
		if r.Enabled {
			if err := e.LoadRule(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules atomically replaces the loaded rule set. On a compile
// error nothing is replaced.
func (e *Engine) ReloadRules(rules []Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*compiledRule)
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		compiled, err := e.compile(r)
		if err != nil {
			return err
		}
		next[r.ID] = compiled
	}

	e.compiled = next
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// LoadedRules returns the loaded rules sorted by ID.
func (e *Engine) LoadedRules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]Rule, 0, len(e.compiled))
	for _, c := range e.compiled {
		rules = append(rules, c.rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Evaluate runs every loaded rule against the result. Rules are applied
// in ID order so the output is stable across runs. A rule that fails to
// evaluate is skipped; an operator typo must not block scoring.
func (e *Engine) Evaluate(res *domain.ScoreResult, riskLevel domain.RiskLevel, redFlags []string) Insights {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiled))
	for _, c := range e.compiled {
		rules = append(rules, c)
	}
	e.mu.RUnlock()

	sort.Slice(rules, func(i, j int) bool { return rules[i].rule.ID < rules[j].rule.ID })

	if redFlags == nil {
		redFlags = []string{}
	}
	activation := map[string]any{
		"score":         int64(res.Score),
		"grade":         string(res.Grade),
		"risk_level":    string(riskLevel),
		"red_flags":     redFlags,
		"penalty":       res.Debug.Penalties.Applied,
		"influence":     res.Components.Influence,
		"quality":       res.Components.Quality,
		"trend":         res.Components.Trend,
		"network_proxy": res.Components.NetworkProxy,
		"consistency":   res.Components.Consistency,
	}

	var out Insights
	for _, c := range rules {
		val, _, err := c.program.Eval(activation)
		if err != nil {
			continue
		}
		fired, ok := val.(types.Bool)
		if !ok || !bool(fired) {
			continue
		}
		switch c.rule.Category {
		case CategoryRecommendation:
			out.Recommendations = append(out.Recommendations, c.rule.Message)
		default:
			out.Concerns = append(out.Concerns, c.rule.Message)
			if c.rule.Recommendation != "" {
				out.Recommendations = append(out.Recommendations, c.rule.Recommendation)
			}
		}
	}
	return out
}

func (e *Engine) compile(r Rule) (*compiledRule, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("rule id is required")
	}

	ast, issues := e.env.Compile(r.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", r.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", r.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", r.ID, err)
	}

	return &compiledRule{rule: r, program: program}, nil
}

// DefaultRules are the built-in insight rules loaded at startup.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:             "heavy-penalty",
			Category:       CategoryConcern,
			Expression:     `penalty >= 0.20`,
			Message:        "risk penalties removed a large share of the weighted score",
			Recommendation: "review the flagged activity before relying on this score",
			Enabled:        true,
		},
		{
			ID:             "bot-flags",
			Category:       CategoryConcern,
			Expression:     `red_flags.exists(f, f == "BOT_LIKE_PATTERN" || f == "FAKE_ENGAGEMENT")`,
			Message:        "automation or fake-engagement flags are present",
			Recommendation: "cross-check with the audience quality engine",
			Enabled:        true,
		},
		{
			ID:         "declining-trend",
			Category:   CategoryConcern,
			Expression: `trend < 0.35`,
			Message:    "engagement trend is declining",
			Enabled:    true,
		},
		{
			ID:         "isolated-network",
			Category:   CategoryConcern,
			Expression: `network_proxy < 0.25`,
			Message:    "weak connection to authoritative accounts",
			Enabled:    true,
		},
		{
			ID:         "inconsistent-posting",
			Category:   CategoryConcern,
			Expression: `consistency < 0.30`,
			Message:    "posting cadence is erratic",
			Enabled:    true,
		},
		{
			ID:         "rising-account",
			Category:   CategoryRecommendation,
			Expression: `trend >= 0.70 && penalty < 0.05`,
			Message:    "momentum is strong; a good window for collaboration outreach",
			Enabled:    true,
		},
	}
}
