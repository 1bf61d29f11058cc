// ABOUTME: Weighted multiplicative scoring for matching agents to tasks.
// ABOUTME: Offline agents are excluded; results sort by score with registration-order tie-break.

package registry

import (
	"sort"
	"time"

	"github.com/2389/circle-core/internal/protocol"
)

// Weights are the per-component multipliers of the task-matching score:
// score = relevance*Relevance + freshness*Freshness + cost*Cost + load*Load.
type Weights struct {
	Relevance float64 `json:"relevance"`
	Freshness float64 `json:"freshness"`
	Cost      float64 `json:"cost"`
	Load      float64 `json:"load"`
}

// DefaultWeights returns the standard weight configuration.
func DefaultWeights() Weights {
	return Weights{
		Relevance: 0.5,
		Freshness: 0.2,
		Cost:      0.2,
		Load:      0.1,
	}
}

// WeightUpdate is a partial weight change; nil fields keep their current
// value.
type WeightUpdate struct {
	Relevance *float64
	Freshness *float64
	Cost      *float64
	Load      *float64
}

// UpdateScoringWeights merges the update into the current weights.
// Partial merge: unset fields are untouched.
func (r *Registry) UpdateScoringWeights(u WeightUpdate) {
	r.weightsMu.Lock()
	defer r.weightsMu.Unlock()

	if u.Relevance != nil {
		r.weights.Relevance = *u.Relevance
	}
	if u.Freshness != nil {
		r.weights.Freshness = *u.Freshness
	}
	if u.Cost != nil {
		r.weights.Cost = *u.Cost
	}
	if u.Load != nil {
		r.weights.Load = *u.Load
	}
}

// ScoringWeights returns the current weight configuration.
func (r *Registry) ScoringWeights() Weights {
	r.weightsMu.RLock()
	defer r.weightsMu.RUnlock()
	return r.weights
}

// TaskDescriptor describes the task an agent is being selected for.
type TaskDescriptor struct {
	Description  string
	Capabilities []string
}

// ScoredAgent is one ranked candidate with its score components.
type ScoredAgent struct {
	Card      *protocol.AgentCard
	Score     float64
	Relevance float64
	Freshness float64
	Cost      float64
	Load      float64
}

// candidate is a scoring snapshot taken under the registry lock.
type candidate struct {
	card  *protocol.AgentCard
	caps  int
	hb    *protocol.Heartbeat
	order int
}

// FindAgentsForTask scores every online agent against the task and returns
// all agents with score > 0, sorted descending by score. Ties keep
// registration order. Agents with no heartbeat, or a heartbeat older than
// the staleness window, are skipped entirely.
func (r *Registry) FindAgentsForTask(task *TaskDescriptor) []ScoredAgent {
	weights := r.ScoringWeights()
	now := r.clock.Now()

	r.mu.RLock()
	candidates := make([]candidate, 0, len(r.cards))
	for id, card := range r.cards {
		if r.offlineLocked(id, now) {
			continue
		}
		candidates = append(candidates, candidate{
			card:  card,
			caps:  len(r.capabilities[id]),
			hb:    r.heartbeats[id],
			order: r.order[id],
		})
	}
	r.mu.RUnlock()

	// Registration order first, then a stable sort by score keeps the
	// tie-break deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].order < candidates[j].order
	})

	scored := make([]ScoredAgent, 0, len(candidates))
	for _, c := range candidates {
		s := r.score(c, weights, now)
		if s.Score > 0 {
			scored = append(scored, s)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// score computes the weighted score for one candidate.
func (r *Registry) score(c candidate, w Weights, now time.Time) ScoredAgent {
	s := ScoredAgent{Card: c.card}

	// Relevance: placeholder for richer matching against the task
	// descriptor. An agent with at least one capability is relevant.
	if c.caps > 0 {
		s.Relevance = 1
	}

	// Freshness: linear decay from 1 to 0 over the freshness window.
	age := now.Sub(c.hb.LastSeen)
	s.Freshness = 1 - age.Seconds()/r.freshnessWindow.Seconds()
	if s.Freshness < 0 {
		s.Freshness = 0
	}

	// Cost: a declared estimate scores conservatively below unknown cost.
	s.Cost = 1
	if c.card.CostEstimate != nil {
		s.Cost = 0.5
	}

	// Load: degrades linearly, saturating at 10 active tasks.
	s.Load = 1 - float64(c.hb.ActiveTasks)/10
	if s.Load < 0 {
		s.Load = 0
	}

	s.Score = s.Relevance*w.Relevance +
		s.Freshness*w.Freshness +
		s.Cost*w.Cost +
		s.Load*w.Load
	return s
}
