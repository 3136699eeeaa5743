// Package config implements the versioned engine-parameter store.
//
// Each scoring engine owns one Store. Reads are lock-free snapshot loads;
// an admin replace deep-merges a patch onto the current parameters, fully
// revalidates the merged result, and only then publishes a new immutable
// snapshot. A failed merge leaves the store unchanged, and a snapshot
// obtained before a replace stays valid for the request that holds it.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-social/kestrel/internal/domain"
)

// Snapshot is one immutable published configuration version.
type Snapshot[T domain.ParamSet] struct {
	Revision  int       `json:"revision"`
	Params    T         `json:"config"`
	CreatedAt time.Time `json:"created_at"`
}

// Store holds the live parameter set for one engine.
type Store[T domain.ParamSet] struct {
	engine string

	mu  sync.Mutex // serializes writers only
	cur atomic.Pointer[Snapshot[T]]
}

// NewStore creates a store seeded with the baked-in defaults at revision 1.
// Defaults that fail their own validation are a programming error.
func NewStore[T domain.ParamSet](engine string, defaults T) (*Store[T], error) {
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default %s params invalid: %w", engine, err)
	}
	s := &Store[T]{engine: engine}
	s.cur.Store(&Snapshot[T]{
		Revision:  1,
		Params:    defaults,
		CreatedAt: time.Now().UTC(),
	})
	return s, nil
}

// Engine returns the engine name this store configures.
func (s *Store[T]) Engine() string {
	return s.engine
}

// Current returns the live snapshot. Never nil; never torn: the pointer
// swap in Apply is the only mutation.
func (s *Store[T]) Current() *Snapshot[T] {
	return s.cur.Load()
}

// Apply deep-merges patch onto the current parameters, revalidates the
// merged result, and publishes it as a new revision. On any error the
// prior configuration remains authoritative.
func (s *Store[T]) Apply(patch map[string]any) (*Snapshot[T], error) {
	if patch == nil {
		return nil, domain.NewValidationError("patch", "body must be a JSON object")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()

	base, err := toMap(old.Params)
	if err != nil {
		return nil, fmt.Errorf("marshal current %s params: %w", s.engine, err)
	}
	merged := deepMerge(base, patch)

	params, err := fromMap[T](merged)
	if err != nil {
		return nil, domain.NewValidationError("patch", err.Error())
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	next := &Snapshot[T]{
		Revision:  old.Revision + 1,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}
	s.cur.Store(next)
	return next, nil
}

// toMap round-trips a parameter set through JSON into a generic map.
func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// fromMap decodes a merged map back into a typed parameter set, rejecting
// keys the parameter set does not declare.
func fromMap[T domain.ParamSet](m map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(m)
	if err != nil {
		return out, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("invalid config field: %v", err)
	}
	return out, nil
}

// deepMerge merges src onto dst: nested objects merge recursively, scalars
// and arrays replace. dst is not mutated.
func deepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		sv, srcIsMap := v.(map[string]any)
		dv, dstIsMap := out[k].(map[string]any)
		if srcIsMap && dstIsMap {
			out[k] = deepMerge(dv, sv)
			continue
		}
		out[k] = v
	}
	return out
}
