// Package proximity computes authority proximity: how close an account
// sits, in hops weighted by edge strength, to a designated set of top
// nodes in a social graph snapshot.
package proximity

import (
	"fmt"
	"sort"

	"github.com/opensource-social/kestrel/internal/domain"
)

// Request is one proximity computation. Exactly one of Graph or GraphRef
// must be supplied; the HTTP layer resolves GraphRef into Graph before
// calling Compute.
type Request struct {
	AccountID string                  `json:"account_id"`
	Graph     *domain.Graph           `json:"graph,omitempty"`
	GraphRef  string                  `json:"graph_ref,omitempty"`
	TopNodes  domain.TopNodeSelection `json:"top_nodes"`

	// MaxHops overrides the configured default when non-zero. Bounded to
	// [1, domain.MaxHopsLimit].
	MaxHops int `json:"max_hops,omitempty"`
}

// Validate checks the request without traversing anything.
func Validate(req *Request) error {
	if req.AccountID == "" {
		return domain.NewValidationError("account_id", "is required")
	}
	if req.Graph == nil && req.GraphRef == "" {
		return domain.NewValidationError("graph", "either graph or graph_ref is required")
	}
	if req.MaxHops != 0 && (req.MaxHops < 1 || req.MaxHops > domain.MaxHopsLimit) {
		return domain.NewValidationError("max_hops", fmt.Sprintf("must be in [1,%d]", domain.MaxHopsLimit))
	}
	switch req.TopNodes.Strategy {
	case "", domain.SelectTopN:
	case domain.SelectExplicit:
		if len(req.TopNodes.IDs) == 0 {
			return domain.NewValidationError("top_nodes.ids", "explicit selection requires at least one id")
		}
	default:
		return domain.NewValidationError("top_nodes.strategy", fmt.Sprintf("unknown strategy %q", req.TopNodes.Strategy))
	}
	if req.Graph != nil {
		for i, e := range req.Graph.Edges {
			if e.Strength < 0 || e.Strength > 1 {
				return domain.NewValidationError("graph.edges", fmt.Sprintf("edge %d strength must be in [0,1]", i))
			}
		}
	}
	return nil
}

// arena is the indexed traversal workspace: node ids mapped onto a dense
// index space with visited/distance/strength arrays sized to the snapshot.
type arena struct {
	ids   []string
	index map[string]int
	adj   [][]arc // filtered, sorted by neighbor index
}

type arc struct {
	to       int
	strength float64
}

func buildArena(g *domain.Graph, minStrength float64) *arena {
	a := &arena{index: make(map[string]int, len(g.Nodes))}
	add := func(id string) int {
		if i, ok := a.index[id]; ok {
			return i
		}
		i := len(a.ids)
		a.index[id] = i
		a.ids = append(a.ids, id)
		return i
	}
	for _, n := range g.Nodes {
		add(n.ID)
	}
	// Edges may reference nodes missing from the node list; index them too
	// so traversal still sees them.
	for _, e := range g.Edges {
		add(e.Source)
		add(e.Target)
	}
	a.adj = make([][]arc, len(a.ids))
	for _, e := range g.Edges {
		if e.Strength < minStrength {
			continue
		}
		s, t := a.index[e.Source], a.index[e.Target]
		if s == t {
			continue
		}
		a.adj[s] = append(a.adj[s], arc{to: t, strength: e.Strength})
		if !e.Directed {
			a.adj[t] = append(a.adj[t], arc{to: s, strength: e.Strength})
		}
	}
	for i := range a.adj {
		sort.Slice(a.adj[i], func(x, y int) bool { return a.adj[i][x].to < a.adj[i][y].to })
	}
	return a
}

// Compute runs the hop-bounded multi-target BFS and scores the result.
// An account absent from the graph (or with no usable edges) is not an
// error: it yields zero reachable nodes and LOW confidence.
func Compute(req *Request, p domain.HopsParams) domain.ProximityResult {
	maxHops := req.MaxHops
	if maxHops == 0 {
		maxHops = p.MaxHops
	}

	sel := req.TopNodes
	if sel.Strategy == "" {
		sel = domain.TopNodeSelection{Strategy: domain.SelectTopN, N: p.TopN}
	}
	topIDs := req.Graph.ResolveTopNodes(sel)

	res := domain.ProximityResult{
		AccountID: req.AccountID,
		TopNodes:  topIDs,
		Paths:     []domain.TopNodePath{},
	}
	res.Summary.Confidence = domain.ConfidenceLow

	a := buildArena(req.Graph, p.EdgeMinStrength)
	src, ok := a.index[req.AccountID]
	if !ok || len(a.adj[src]) == 0 {
		return res
	}

	// Level-synchronous BFS. dist is minimal by construction; strength[v]
	// is the best product of edge strengths over any minimal-hop path,
	// relaxed one full level at a time.
	dist := make([]int, len(a.ids))
	for i := range dist {
		dist[i] = -1
	}
	strength := make([]float64, len(a.ids))
	dist[src] = 0
	strength[src] = 1.0
	frontier := []int{src}
	explored := 1

	for depth := 1; depth <= maxHops && len(frontier) > 0; depth++ {
		best := make(map[int]float64)
		for _, u := range frontier {
			for _, arc := range a.adj[u] {
				if dist[arc.to] != -1 {
					continue
				}
				cand := strength[u] * arc.strength
				if cand > best[arc.to] {
					best[arc.to] = cand
				}
			}
		}
		next := make([]int, 0, len(best))
		for v := range best {
			next = append(next, v)
		}
		sort.Ints(next)
		for _, v := range next {
			dist[v] = depth
			strength[v] = best[v]
		}
		explored += len(next)
		frontier = next
	}

	// Collect shortest paths to reachable top nodes. The source itself is
	// never its own target (hop counts start at 1).
	for _, id := range topIDs {
		v, ok := a.index[id]
		if !ok || v == src || dist[v] <= 0 {
			continue
		}
		res.Paths = append(res.Paths, domain.TopNodePath{
			TargetID:     id,
			Hops:         dist[v],
			PathStrength: strength[v],
		})
	}
	sort.Slice(res.Paths, func(i, j int) bool {
		pi, pj := res.Paths[i], res.Paths[j]
		if pi.Hops != pj.Hops {
			return pi.Hops < pj.Hops
		}
		if pi.PathStrength != pj.PathStrength {
			return pi.PathStrength > pj.PathStrength
		}
		return pi.TargetID < pj.TargetID
	})

	raw := 0.0
	minHops := 0
	for _, path := range res.Paths {
		raw += p.HopWeights[path.Hops-1] * path.PathStrength
		if minHops == 0 || path.Hops < minHops {
			minHops = path.Hops
		}
	}

	res.Summary = domain.ProximitySummary{
		Score:             domain.Clamp01(raw / p.SaturationCap),
		ReachableTopNodes: len(res.Paths),
		MinHopsToAnyTop:   minHops,
		NodesExplored:     explored,
	}
	res.Summary.Confidence = confidence(len(res.Paths), explored, p)
	return res
}

func confidence(reachable, explored int, p domain.HopsParams) domain.Confidence {
	switch {
	case reachable < p.MinReachable:
		return domain.ConfidenceLow
	case reachable >= p.HighReachable && explored >= p.HighExplored:
		return domain.ConfidenceHigh
	default:
		return domain.ConfidenceMed
	}
}

// Classify buckets a result for batch statistics: an account reaching any
// top node is well connected, one reaching none is isolated.
func Classify(res *domain.ProximityResult) string {
	if res.Summary.ReachableTopNodes > 0 {
		return "well_connected"
	}
	return "isolated"
}
