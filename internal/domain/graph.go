package domain

import "sort"

// GraphNode is one account in a social graph snapshot.
type GraphNode struct {
	ID     string  `json:"id"`
	XScore float64 `json:"x_score,omitempty"`

	// Influence is an optional ranking field usable by top_n selection.
	Influence float64 `json:"influence,omitempty"`
}

// GraphEdge is a weighted connection between two accounts.
// Strength is a fraction in [0,1]; edges below the configured minimum
// strength are excluded from traversal.
type GraphEdge struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`

	// Directed edges are only traversable source→target. The default is
	// an undirected follow relationship.
	Directed bool `json:"directed,omitempty"`
}

// Graph is a read-only social graph snapshot supplied with a request or
// loaded from the repository by reference.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// TopNodeSelection names the traversal target set: either an explicit id
// list or the top N nodes ranked by a named node field.
type TopNodeSelection struct {
	Strategy string   `json:"strategy"` // "explicit" or "top_n"
	IDs      []string `json:"ids,omitempty"`
	N        int      `json:"n,omitempty"`
	By       string   `json:"by,omitempty"` // "x_score" (default) or "influence"
}

// Selection strategies.
const (
	SelectExplicit = "explicit"
	SelectTopN     = "top_n"
)

// ResolveTopNodes returns the target id set for a selection over g.
// Explicit ids absent from the graph are kept (they are simply
// unreachable); top_n ranks by the named field with id as tiebreaker.
func (g *Graph) ResolveTopNodes(sel TopNodeSelection) []string {
	switch sel.Strategy {
	case SelectExplicit:
		out := make([]string, 0, len(sel.IDs))
		seen := make(map[string]bool, len(sel.IDs))
		for _, id := range sel.IDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
		return out

	case SelectTopN:
		n := sel.N
		if n <= 0 {
			n = 5
		}
		ranked := make([]GraphNode, len(g.Nodes))
		copy(ranked, g.Nodes)
		rank := func(node GraphNode) float64 {
			if sel.By == "influence" {
				return node.Influence
			}
			return node.XScore
		}
		sort.Slice(ranked, func(i, j int) bool {
			ri, rj := rank(ranked[i]), rank(ranked[j])
			if ri != rj {
				return ri > rj
			}
			return ranked[i].ID < ranked[j].ID
		})
		if n > len(ranked) {
			n = len(ranked)
		}
		out := make([]string, 0, n)
		for _, node := range ranked[:n] {
			out = append(out, node.ID)
		}
		return out

	default:
		return nil
	}
}
