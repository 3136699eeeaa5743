package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-social/kestrel/internal/audience"
	"github.com/opensource-social/kestrel/internal/batch"
	"github.com/opensource-social/kestrel/internal/cache"
	"github.com/opensource-social/kestrel/internal/config"
	"github.com/opensource-social/kestrel/internal/domain"
	"github.com/opensource-social/kestrel/internal/proximity"
	"github.com/opensource-social/kestrel/internal/repository"
	"github.com/opensource-social/kestrel/internal/score"
	"github.com/opensource-social/kestrel/internal/worker"
)

// resultTTL bounds how long a computed result may be served from cache.
// Config replaces invalidate earlier because the revision is part of the key.
const resultTTL = 5 * time.Minute

// batchWorkers bounds batch fan-out concurrency.
const batchWorkers = 8

// Handler holds dependencies for API handlers.
type Handler struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	scorer      *score.Engine
	audienceCfg *config.Store[domain.AudienceQualityParams]
	hopsCfg     *config.Store[domain.HopsParams]
	scoreCfg    *config.Store[domain.TwitterScoreParams]
	version     string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, c domain.Cache, bus domain.EventBus, scorer *score.Engine,
	audienceCfg *config.Store[domain.AudienceQualityParams],
	hopsCfg *config.Store[domain.HopsParams],
	scoreCfg *config.Store[domain.TwitterScoreParams],
	version string) *Handler {
	return &Handler{
		repo:        repo,
		cache:       c,
		bus:         bus,
		scorer:      scorer,
		audienceCfg: audienceCfg,
		hopsCfg:     hopsCfg,
		scoreCfg:    scoreCfg,
		version:     version,
	}
}

func knownEngine(engine string) bool {
	switch engine {
	case domain.EngineAudienceQuality, domain.EngineHops, domain.EngineTwitterScore:
		return true
	}
	return false
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ============================================================================
// COMPUTE HANDLERS
// ============================================================================

// Compute handles POST /api/connections/{engine}.
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "engine") {
	case domain.EngineAudienceQuality:
		h.computeQuality(w, r)
	case domain.EngineHops:
		h.computeProximity(w, r)
	case domain.EngineTwitterScore:
		h.computeScore(w, r)
	default:
		writeError(w, http.StatusNotFound, "unknown engine")
	}
}

func (h *Handler) computeQuality(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req audience.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := audience.Validate(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := h.audienceCfg.Current()

	raw, _ := json.Marshal(req)
	key := cache.ResultKey(raw, snap.Revision)
	var cached domain.QualityResult
	if h.cachedResult(ctx, domain.EngineAudienceQuality, key, &cached) {
		cached.Meta.Cached = true
		writeData(w, http.StatusOK, cached)
		return
	}

	start := time.Now()
	res := audience.Compute(&req, snap.Params)
	res.Meta = domain.ResultMeta{
		EvaluationID:   uuid.New().String(),
		ComputedAt:     time.Now().UTC(),
		Version:        snap.Params.Version,
		ConfigRevision: snap.Revision,
		DataSources:    res.Evidence.InputsUsed,
		ProcessMs:      time.Since(start).Milliseconds(),
	}

	h.persistResult(ctx, domain.EngineAudienceQuality, res.Meta.EvaluationID, res.AccountID, res.Score, "", res)
	h.cacheResult(ctx, domain.EngineAudienceQuality, key, res)

	writeData(w, http.StatusOK, res)
}

func (h *Handler) computeProximity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req proximity.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := proximity.Validate(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Graph == nil {
		g, err := h.loadGraph(ctx, req.GraphRef)
		if err != nil {
			h.writeLookupError(w, "graph snapshot", req.GraphRef, err)
			return
		}
		req.Graph = g
	}

	snap := h.hopsCfg.Current()

	// Keyed after graph_ref resolution so replacing a named snapshot
	// invalidates results computed against the old graph.
	raw, _ := json.Marshal(req)
	key := cache.ResultKey(raw, snap.Revision)
	var cached domain.ProximityResult
	if h.cachedResult(ctx, domain.EngineHops, key, &cached) {
		cached.Meta.Cached = true
		writeData(w, http.StatusOK, cached)
		return
	}

	start := time.Now()
	res := proximity.Compute(&req, snap.Params)
	sources := []string{"inline_graph"}
	if req.GraphRef != "" {
		sources = []string{"graph_snapshot:" + req.GraphRef}
	}
	res.Meta = domain.ResultMeta{
		EvaluationID:   uuid.New().String(),
		ComputedAt:     time.Now().UTC(),
		Version:        snap.Params.Version,
		ConfigRevision: snap.Revision,
		DataSources:    sources,
		ProcessMs:      time.Since(start).Milliseconds(),
	}

	h.persistResult(ctx, domain.EngineHops, res.Meta.EvaluationID, res.AccountID, res.Summary.Score, "", res)
	h.cacheResult(ctx, domain.EngineHops, key, res)

	writeData(w, http.StatusOK, res)
}

func (h *Handler) computeScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var features domain.AccountFeatures
	if err := json.NewDecoder(r.Body).Decode(&features); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := score.Validate(&features); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := h.scoreCfg.Current()

	raw, _ := json.Marshal(features)
	key := cache.ResultKey(raw, snap.Revision)
	var cached domain.ScoreResult
	if h.cachedResult(ctx, domain.EngineTwitterScore, key, &cached) {
		cached.Meta.Cached = true
		writeData(w, http.StatusOK, cached)
		return
	}

	res := h.scorer.Compute(ctx, &features, snap.Params)
	res.Meta.ConfigRevision = snap.Revision

	h.persistResult(ctx, domain.EngineTwitterScore, res.Meta.EvaluationID, res.AccountID, float64(res.Score), res.Grade, res)
	h.cacheResult(ctx, domain.EngineTwitterScore, key, res)
	h.publishScore(ctx, &res, snap.Params)

	writeData(w, http.StatusOK, res)
}

// EnqueueScore handles POST /api/connections/twitter-score/async: the
// request is validated, queued on the bus and computed by the worker.
func (h *Handler) EnqueueScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var features domain.AccountFeatures
	if err := json.NewDecoder(r.Body).Decode(&features); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := score.Validate(&features); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}

	traceID := GetTraceID(ctx)
	payload, _ := json.Marshal(worker.ScoreRequest{
		TraceID:  traceID,
		Features: &features,
	})
	if err := h.bus.Publish(ctx, domain.TopicScoreRequested, payload); err != nil {
		slog.Error("failed to enqueue score request",
			"account_id", features.AccountID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "failed to enqueue request")
		return
	}

	writeData(w, http.StatusAccepted, map[string]string{
		"account_id": features.AccountID,
		"status":     "queued",
		"trace_id":   traceID,
	})
}

// ============================================================================
// BATCH HANDLERS
// ============================================================================

// Batch handles POST /api/connections/{engine}/batch.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "engine") {
	case domain.EngineAudienceQuality:
		h.batchQuality(w, r)
	case domain.EngineHops:
		h.batchProximity(w, r)
	case domain.EngineTwitterScore:
		h.batchScore(w, r)
	default:
		writeError(w, http.StatusNotFound, "unknown engine")
	}
}

func (h *Handler) batchQuality(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Items []audience.Request `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	snap := h.audienceCfg.Current()
	coord := batch.NewCoordinator(batchWorkers, func(ctx context.Context, item audience.Request) domain.QualityResult {
		if err := audience.Validate(&item); err != nil {
			return domain.QualityResult{AccountID: item.AccountID, Error: err.Error()}
		}
		res := audience.Compute(&item, snap.Params)
		res.Meta = domain.ResultMeta{
			EvaluationID:   uuid.New().String(),
			ComputedAt:     time.Now().UTC(),
			Version:        snap.Params.Version,
			ConfigRevision: snap.Revision,
			DataSources:    res.Evidence.InputsUsed,
		}
		h.persistResult(ctx, domain.EngineAudienceQuality, res.Meta.EvaluationID, res.AccountID, res.Score, "", res)
		return res
	})

	results, err := coord.Run(ctx, req.Items)
	if err != nil {
		writeBatchError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"version":     snap.Params.Version,
		"computed_at": time.Now().UTC(),
		"results":     results,
		"stats":       batch.QualityStats(results, snap.Params),
	})
}

func (h *Handler) batchProximity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Items []proximity.Request `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	snap := h.hopsCfg.Current()
	coord := batch.NewCoordinator(batchWorkers, func(ctx context.Context, item proximity.Request) domain.ProximityResult {
		if err := proximity.Validate(&item); err != nil {
			return domain.ProximityResult{AccountID: item.AccountID, Error: err.Error()}
		}
		if item.Graph == nil {
			g, err := h.loadGraph(ctx, item.GraphRef)
			if err != nil {
				return domain.ProximityResult{AccountID: item.AccountID, Error: "graph snapshot not found: " + item.GraphRef}
			}
			item.Graph = g
		}
		res := proximity.Compute(&item, snap.Params)
		res.Meta = domain.ResultMeta{
			EvaluationID:   uuid.New().String(),
			ComputedAt:     time.Now().UTC(),
			Version:        snap.Params.Version,
			ConfigRevision: snap.Revision,
		}
		h.persistResult(ctx, domain.EngineHops, res.Meta.EvaluationID, res.AccountID, res.Summary.Score, "", res)
		return res
	})

	results, err := coord.Run(ctx, req.Items)
	if err != nil {
		writeBatchError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"version":     snap.Params.Version,
		"computed_at": time.Now().UTC(),
		"results":     results,
		"stats":       batch.ProximityStats(results, proximity.Classify),
	})
}

func (h *Handler) batchScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Items []domain.AccountFeatures `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	snap := h.scoreCfg.Current()
	coord := batch.NewCoordinator(batchWorkers, func(ctx context.Context, item domain.AccountFeatures) domain.ScoreResult {
		if err := score.Validate(&item); err != nil {
			return domain.ScoreResult{AccountID: item.AccountID, Error: err.Error()}
		}
		res := h.scorer.Compute(ctx, &item, snap.Params)
		res.Meta.ConfigRevision = snap.Revision
		h.persistResult(ctx, domain.EngineTwitterScore, res.Meta.EvaluationID, res.AccountID, float64(res.Score), res.Grade, res)
		h.publishScore(ctx, &res, snap.Params)
		return res
	})

	results, err := coord.Run(ctx, req.Items)
	if err != nil {
		writeBatchError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"version":     snap.Params.Version,
		"computed_at": time.Now().UTC(),
		"results":     results,
		"stats":       batch.ScoreStats(results),
	})
}

func writeBatchError(w http.ResponseWriter, err error) {
	if domain.IsValidation(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "batch execution failed")
}

// ============================================================================
// INFO / MOCK HANDLERS
// ============================================================================

// Info handles GET /api/connections/{engine}/info.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "engine") {
	case domain.EngineAudienceQuality:
		snap := h.audienceCfg.Current()
		writeData(w, http.StatusOK, map[string]interface{}{
			"engine":      domain.EngineAudienceQuality,
			"description": "Audience quality scoring from overlap, bot-risk and engagement signals.",
			"version":     snap.Params.Version,
			"revision":    snap.Revision,
			"components":  []string{"purity", "smart_followers_proxy", "signal_quality", "consistency"},
			"weights":     snap.Params.Weights,
			"thresholds":  snap.Params.QualityThresholds,
		})

	case domain.EngineHops:
		snap := h.hopsCfg.Current()
		writeData(w, http.StatusOK, map[string]interface{}{
			"engine":         domain.EngineHops,
			"description":    "Authority proximity via hop-bounded traversal of a social graph snapshot.",
			"version":        snap.Params.Version,
			"revision":       snap.Revision,
			"max_hops":       snap.Params.MaxHops,
			"hop_weights":    snap.Params.HopWeights[:domain.MaxHopsLimit],
			"saturation_cap": snap.Params.SaturationCap,
			"strategies":     []string{domain.SelectExplicit, domain.SelectTopN},
		})

	case domain.EngineTwitterScore:
		snap := h.scoreCfg.Current()
		writeData(w, http.StatusOK, map[string]interface{}{
			"engine":      domain.EngineTwitterScore,
			"description": "Unified 0-1000 account score blending influence, quality, trend, network and consistency.",
			"version":     snap.Params.Version,
			"revision":    snap.Revision,
			"components":  []string{"influence", "quality", "trend", "network_proxy", "consistency"},
			"weights":     snap.Params.Weights,
			"grades":      snap.Params.Grades,
			"max_penalty": snap.Params.Penalties.MaxTotal,
		})

	default:
		writeError(w, http.StatusNotFound, "unknown engine")
	}
}

// Mock handles GET /api/connections/{engine}/mock: deterministic example
// results computed from fixed sample inputs with the baked-in defaults,
// independent of the live configuration store.
func (h *Handler) Mock(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "engine") {
	case domain.EngineAudienceQuality:
		p := domain.DefaultAudienceQualityParams()
		reqs := qualityMockRequests()
		results := make([]domain.QualityResult, len(reqs))
		for i := range reqs {
			results[i] = audience.Compute(&reqs[i], p)
			results[i].Meta = domain.ResultMeta{Version: p.Version, DataSources: []string{"mock"}}
		}
		stats := batch.QualityStats(results, p)
		writeData(w, http.StatusOK, map[string]interface{}{
			"version":              p.Version,
			"description":          "Example audience-quality results for organic, average and botted accounts.",
			"results":              results,
			"quality_distribution": stats.Distribution,
			"stats":                stats,
		})

	case domain.EngineHops:
		p := domain.DefaultHopsParams()
		g := hopsMockGraph()
		sel := domain.TopNodeSelection{
			Strategy: domain.SelectExplicit,
			IDs:      []string{"auth-1", "auth-2", "auth-3"},
		}
		results := make([]domain.ProximityResult, 0, 2)
		for _, id := range []string{"mock-connected", "mock-isolated"} {
			req := proximity.Request{AccountID: id, Graph: g, TopNodes: sel}
			res := proximity.Compute(&req, p)
			res.Meta = domain.ResultMeta{Version: p.Version, DataSources: []string{"mock"}}
			results = append(results, res)
		}
		writeData(w, http.StatusOK, map[string]interface{}{
			"version":     p.Version,
			"description": "Example hops results for a well-connected and an isolated account.",
			"results":     results,
			"stats":       batch.ProximityStats(results, proximity.Classify),
		})

	case domain.EngineTwitterScore:
		p := domain.DefaultTwitterScoreParams()
		features := scoreMockFeatures()
		results := make([]domain.ScoreResult, len(features))
		for i := range features {
			results[i] = h.scorer.Compute(r.Context(), &features[i], p)
			results[i].Meta = domain.ResultMeta{Version: p.Version, DataSources: []string{"mock"}}
		}
		stats := batch.ScoreStats(results)
		writeData(w, http.StatusOK, map[string]interface{}{
			"version":            p.Version,
			"description":        "Example unified scores for strong, average and risky accounts.",
			"results":            results,
			"grade_distribution": stats.ByGrade,
			"stats":              stats,
		})

	default:
		writeError(w, http.StatusNotFound, "unknown engine")
	}
}

func qualityMockRequests() []audience.Request {
	return []audience.Request{
		{
			AccountID:   "mock-organic",
			XScore:      fptr(820),
			SignalNoise: fptr(8.4),
			Consistency: fptr(0.9),
			Overlap:     &domain.OverlapStats{AvgJaccard: 0.03, MaxJaccard: 0.08, SampleSize: 12},
		},
		{
			AccountID:   "mock-average",
			XScore:      fptr(430),
			SignalNoise: fptr(4.1),
			Consistency: fptr(0.55),
			Overlap:     &domain.OverlapStats{AvgJaccard: 0.10, MaxJaccard: 0.22, SampleSize: 6},
		},
		{
			AccountID:   "mock-botted",
			XScore:      fptr(120),
			SignalNoise: fptr(1.2),
			Consistency: fptr(0.2),
			RedFlags: []domain.RedFlag{
				domain.FlagBotLikePattern,
				domain.FlagFakeEngagement,
				domain.FlagRepostFarm,
			},
			Overlap: &domain.OverlapStats{AvgJaccard: 0.28, MaxJaccard: 0.55, SampleSize: 9},
		},
	}
}

func hopsMockGraph() *domain.Graph {
	return &domain.Graph{
		Nodes: []domain.GraphNode{
			{ID: "mock-connected"},
			{ID: "mock-isolated"},
			{ID: "auth-1", XScore: 950},
			{ID: "auth-2", XScore: 910},
			{ID: "auth-3", XScore: 880},
			{ID: "mid-1"},
			{ID: "mid-2"},
		},
		Edges: []domain.GraphEdge{
			{Source: "mock-connected", Target: "auth-1", Strength: 0.8},
			{Source: "mock-connected", Target: "mid-1", Strength: 0.6},
			{Source: "mid-1", Target: "auth-2", Strength: 0.7},
			{Source: "mock-connected", Target: "mid-2", Strength: 0.5},
			{Source: "mid-2", Target: "auth-3", Strength: 0.6},
		},
	}
}

func scoreMockFeatures() []domain.AccountFeatures {
	return []domain.AccountFeatures{
		{
			AccountID:       "mock-strong",
			BaseInfluence:   780,
			XScore:          820,
			SignalNoise:     8.4,
			Velocity:        fptr(0.3),
			Consistency:     fptr(0.85),
			AudienceQuality: fptr(0.82),
			RiskLevel:       "LOW",
		},
		{
			AccountID:     "mock-average",
			BaseInfluence: 410,
			XScore:        430,
			SignalNoise:   4.0,
			Consistency:   fptr(0.55),
		},
		{
			AccountID:     "mock-risky",
			BaseInfluence: 350,
			XScore:        300,
			SignalNoise:   2.0,
			RiskLevel:     "HIGH",
			RedFlags: []domain.RedFlag{
				domain.FlagBotLikePattern,
				domain.FlagFakeEngagement,
				domain.FlagViralSpike,
			},
		},
	}
}

func fptr(v float64) *float64 { return &v }

// ============================================================================
// CONFIG HANDLERS
// ============================================================================

// GetConfig handles GET /api/connections/{engine}/config. The public read
// returns the parameter set flat in the data payload (weights, overlap and
// so on as top-level keys); the nested shape is admin-only.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "engine") {
	case domain.EngineAudienceQuality:
		snap := h.audienceCfg.Current()
		writeFlatConfig(w, domain.EngineAudienceQuality, snap.Revision, snap.Params)
	case domain.EngineHops:
		snap := h.hopsCfg.Current()
		writeFlatConfig(w, domain.EngineHops, snap.Revision, snap.Params)
	case domain.EngineTwitterScore:
		snap := h.scoreCfg.Current()
		writeFlatConfig(w, domain.EngineTwitterScore, snap.Revision, snap.Params)
	default:
		writeError(w, http.StatusNotFound, "unknown engine")
	}
}

// AdminGetConfig handles GET /api/connections/admin/{engine}/config.
func (h *Handler) AdminGetConfig(w http.ResponseWriter, r *http.Request) {
	engine := chi.URLParam(r, "engine")
	if !knownEngine(engine) {
		writeError(w, http.StatusNotFound, "unknown engine")
		return
	}

	var version string
	var revision int
	var params interface{}
	switch engine {
	case domain.EngineAudienceQuality:
		snap := h.audienceCfg.Current()
		version, revision, params = snap.Params.Version, snap.Revision, snap.Params
	case domain.EngineHops:
		snap := h.hopsCfg.Current()
		version, revision, params = snap.Params.Version, snap.Revision, snap.Params
	case domain.EngineTwitterScore:
		snap := h.scoreCfg.Current()
		version, revision, params = snap.Params.Version, snap.Revision, snap.Params
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"engine":   engine,
		"enabled":  true,
		"version":  version,
		"revision": revision,
		"config":   params,
	})
}

// AdminPatchConfig handles PATCH /api/connections/admin/{engine}/config.
// The patch is deep-merged onto the current parameters and fully
// revalidated; a rejected merge leaves the live configuration unchanged.
func (h *Handler) AdminPatchConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine := chi.URLParam(r, "engine")
	if !knownEngine(engine) {
		writeError(w, http.StatusNotFound, "unknown engine")
		return
	}

	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	var version string
	var revision int
	var params interface{}
	var err error
	switch engine {
	case domain.EngineAudienceQuality:
		var snap *config.Snapshot[domain.AudienceQualityParams]
		if snap, err = h.audienceCfg.Apply(patch); err == nil {
			version, revision, params = snap.Params.Version, snap.Revision, snap.Params
		}
	case domain.EngineHops:
		var snap *config.Snapshot[domain.HopsParams]
		if snap, err = h.hopsCfg.Apply(patch); err == nil {
			version, revision, params = snap.Params.Version, snap.Revision, snap.Params
		}
	case domain.EngineTwitterScore:
		var snap *config.Snapshot[domain.TwitterScoreParams]
		if snap, err = h.scoreCfg.Apply(patch); err == nil {
			version, revision, params = snap.Params.Version, snap.Revision, snap.Params
		}
	}
	if err != nil {
		if domain.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("config patch failed", "engine", engine, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to apply config patch")
		return
	}

	h.recordRevision(ctx, engine, revision, version, params)

	slog.Info("config updated", "engine", engine, "revision", revision, "version", version)
	writeConfig(w, engine, version, revision, params)
}

// ConfigHistory handles GET /api/connections/admin/{engine}/config/history.
func (h *Handler) ConfigHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine := chi.URLParam(r, "engine")
	if !knownEngine(engine) {
		writeError(w, http.StatusNotFound, "unknown engine")
		return
	}
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	revs, err := h.repo.ListConfigRevisions(ctx, engine, 0)
	if err != nil {
		slog.Error("failed to list config revisions", "engine", engine, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list config revisions")
		return
	}

	entries := make([]map[string]interface{}, 0, len(revs))
	for _, rev := range revs {
		entries = append(entries, map[string]interface{}{
			"revision":   rev.Revision,
			"version":    rev.Version,
			"config":     json.RawMessage(rev.Config),
			"created_at": rev.CreatedAt,
		})
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"engine":    engine,
		"revisions": entries,
		"count":     len(entries),
	})
}

// recordRevision appends the new configuration to the audit trail and
// announces it on the bus. Failures are logged, not surfaced: the live
// store has already switched.
func (h *Handler) recordRevision(ctx context.Context, engine string, revision int, version string, params interface{}) {
	raw, err := json.Marshal(params)
	if err != nil {
		slog.Error("failed to marshal config revision", "engine", engine, "error", err)
		return
	}

	if h.repo != nil {
		rev := &domain.ConfigRevision{
			Engine:   engine,
			Revision: revision,
			Version:  version,
			Config:   raw,
		}
		if err := h.repo.SaveConfigRevision(ctx, rev); err != nil {
			slog.Error("failed to save config revision", "engine", engine, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"engine":   engine,
			"revision": revision,
			"version":  version,
		})
		if err := h.bus.Publish(ctx, domain.TopicConfigUpdated, payload); err != nil {
			slog.Error("failed to publish config update", "engine", engine, "error", err)
		}
	}
}

func writeConfig(w http.ResponseWriter, engine, version string, revision int, params interface{}) {
	writeData(w, http.StatusOK, map[string]interface{}{
		"engine":   engine,
		"version":  version,
		"revision": revision,
		"config":   params,
	})
}

// writeFlatConfig spreads the parameter set into the data payload itself,
// adding engine and revision alongside the params' own keys.
func writeFlatConfig(w http.ResponseWriter, engine string, revision int, params interface{}) {
	raw, err := json.Marshal(params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode config")
		return
	}
	flat := map[string]interface{}{}
	if err := json.Unmarshal(raw, &flat); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode config")
		return
	}
	flat["engine"] = engine
	flat["revision"] = revision
	writeData(w, http.StatusOK, flat)
}

// ============================================================================
// RESULT / GRAPH HANDLERS
// ============================================================================

// GetResult handles GET /api/connections/results/{engine}/{accountID}:
// the latest persisted result for one account from one engine.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine := chi.URLParam(r, "engine")
	accountID := chi.URLParam(r, "accountID")

	if !knownEngine(engine) {
		writeError(w, http.StatusNotFound, "unknown engine")
		return
	}
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	res, err := h.repo.LatestResult(ctx, engine, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no result for account")
			return
		}
		slog.Error("failed to load result", "engine", engine, "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load result")
		return
	}

	writeData(w, http.StatusOK, json.RawMessage(res.Payload))
}

// PutGraph handles PUT /api/connections/graphs/{id}: stores a named graph
// snapshot reusable across hops requests via graph_ref.
func (h *Handler) PutGraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var g domain.Graph
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if len(g.Nodes) == 0 && len(g.Edges) == 0 {
		writeError(w, http.StatusBadRequest, "graph: must contain nodes or edges")
		return
	}
	for i, e := range g.Edges {
		if e.Strength < 0 || e.Strength > 1 {
			writeError(w, http.StatusBadRequest, "edges: edge "+strconv.Itoa(i)+" strength must be in [0,1]")
			return
		}
	}

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}
	if err := h.repo.SaveGraphSnapshot(ctx, id, &g); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("failed to save graph snapshot", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save graph snapshot")
		return
	}

	slog.Info("graph snapshot stored", "id", id, "nodes", len(g.Nodes), "edges", len(g.Edges))
	writeData(w, http.StatusOK, map[string]interface{}{
		"id":    id,
		"nodes": len(g.Nodes),
		"edges": len(g.Edges),
	})
}

// GetGraph handles GET /api/connections/graphs/{id}.
func (h *Handler) GetGraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	g, err := h.loadGraph(ctx, id)
	if err != nil {
		h.writeLookupError(w, "graph snapshot", id, err)
		return
	}

	writeData(w, http.StatusOK, g)
}

func (h *Handler) loadGraph(ctx context.Context, id string) (*domain.Graph, error) {
	if h.repo == nil {
		return nil, repository.ErrNotFound
	}
	return h.repo.GetGraphSnapshot(ctx, id)
}

// ============================================================================
// SHARED HELPERS
// ============================================================================

func (h *Handler) cachedResult(ctx context.Context, engine, key string, out interface{}) bool {
	if h.cache == nil {
		return false
	}
	hit, err := cache.GetResult(ctx, h.cache, engine, key, out)
	if err != nil {
		slog.Warn("cache read failed", "engine", engine, "error", err)
		return false
	}
	return hit
}

func (h *Handler) cacheResult(ctx context.Context, engine, key string, result interface{}) {
	if h.cache == nil {
		return
	}
	if err := cache.SetResult(ctx, h.cache, engine, key, result, resultTTL); err != nil {
		slog.Warn("cache write failed", "engine", engine, "error", err)
	}
	if _, err := h.cache.IncrementCounter(ctx, engine, "computed", time.Minute); err != nil {
		slog.Warn("compute counter failed", "engine", engine, "error", err)
	}
}

func (h *Handler) persistResult(ctx context.Context, engine, id, accountID string, scoreVal float64, grade string, result interface{}) {
	if h.repo == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		slog.Error("failed to marshal result", "engine", engine, "account_id", accountID, "error", err)
		return
	}
	stored := &domain.StoredResult{
		ID:        id,
		Engine:    engine,
		AccountID: accountID,
		Score:     scoreVal,
		Grade:     grade,
		Payload:   payload,
	}
	if err := h.repo.SaveResult(ctx, stored); err != nil {
		slog.Error("failed to save result", "engine", engine, "account_id", accountID, "error", err)
	}
}

func (h *Handler) publishScore(ctx context.Context, res *domain.ScoreResult, p domain.TwitterScoreParams) {
	if h.bus == nil {
		return
	}
	payload, _ := json.Marshal(res)
	if err := h.bus.Publish(ctx, domain.TopicScoreComputed, payload); err != nil {
		slog.Error("failed to publish computed score", "account_id", res.AccountID, "error", err)
	}
	if worker.Flagged(res, p) {
		if err := h.bus.Publish(ctx, domain.TopicAccountFlagged, payload); err != nil {
			slog.Error("failed to publish flagged account", "account_id", res.AccountID, "error", err)
		}
	}
}

func (h *Handler) writeLookupError(w http.ResponseWriter, what, id string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found: "+id)
		return
	}
	slog.Error("failed to load "+what, "id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "failed to load "+what)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeData wraps every successful body in the data envelope.
func writeData(w http.ResponseWriter, status int, v interface{}) {
	writeJSON(w, status, map[string]interface{}{"data": v})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
