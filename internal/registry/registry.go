// ABOUTME: Agent registry tracking cards, capabilities, and heartbeats with liveness sweep.
// ABOUTME: Central coordinator for agent registration, discovery, and status lookups.

package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/2389/circle-core/internal/notify"
	"github.com/2389/circle-core/internal/protocol"
)

// Defaults for liveness timing. Both are configurable via Options.
const (
	// DefaultStaleTimeout is how long an agent may go without a heartbeat
	// before it is considered offline.
	DefaultStaleTimeout = 60 * time.Second

	// DefaultSweepInterval is how often the liveness sweep runs.
	DefaultSweepInterval = 30 * time.Second

	// DefaultFreshnessWindow is the heartbeat age over which the freshness
	// score decays linearly from 1 to 0.
	DefaultFreshnessWindow = 30 * time.Second
)

// Options configures a Registry. Zero values fall back to defaults; a nil
// Broadcaster disables notifications.
type Options struct {
	StaleTimeout    time.Duration
	SweepInterval   time.Duration
	FreshnessWindow time.Duration
	Clock           Clock
	Broadcaster     *notify.Broadcaster
	Logger          *slog.Logger
}

// Registry coordinates all known agents. It is safe for concurrent use:
// registration, scoring, and the liveness sweep share one RWMutex, held
// only for map access, never across calls into an AgentInstance.
type Registry struct {
	mu           sync.RWMutex
	cards        map[string]*protocol.AgentCard
	capabilities map[string][]protocol.Capability
	heartbeats   map[string]*protocol.Heartbeat
	instances    map[string]AgentInstance
	order        map[string]int // registration order, tie-break for scoring
	nextOrder    int

	weightsMu sync.RWMutex
	weights   Weights

	staleTimeout    time.Duration
	sweepInterval   time.Duration
	freshnessWindow time.Duration

	clock       Clock
	broadcaster *notify.Broadcaster
	logger      *slog.Logger
}

// New creates a Registry.
func New(opts Options) *Registry {
	if opts.StaleTimeout <= 0 {
		opts.StaleTimeout = DefaultStaleTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.FreshnessWindow <= 0 {
		opts.FreshnessWindow = DefaultFreshnessWindow
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Registry{
		cards:           make(map[string]*protocol.AgentCard),
		capabilities:    make(map[string][]protocol.Capability),
		heartbeats:      make(map[string]*protocol.Heartbeat),
		instances:       make(map[string]AgentInstance),
		order:           make(map[string]int),
		weights:         DefaultWeights(),
		staleTimeout:    opts.StaleTimeout,
		sweepInterval:   opts.SweepInterval,
		freshnessWindow: opts.FreshnessWindow,
		clock:           opts.Clock,
		broadcaster:     opts.Broadcaster,
		logger:          opts.Logger.With("component", "registry"),
	}
}

// Register runs the full registration sequence for an agent instance:
// capability discovery, card validation, Initialize, initial heartbeat
// capture, then atomic installation of card/capabilities/heartbeat.
// Any failure is returned as a *RegistrationError and leaves no partial
// state behind. Registering an already-known agent ID replaces its
// registration wholesale.
func (r *Registry) Register(ctx context.Context, inst AgentInstance) (*protocol.AgentCard, error) {
	// All agent calls happen before taking the lock; installation is the
	// only synchronized step, so a failure needs no rollback.
	card, err := inst.Card(ctx)
	if err != nil {
		return nil, &RegistrationError{Err: err}
	}
	if card == nil {
		return nil, &RegistrationError{Err: protocol.ErrInvalidCard}
	}
	if err := card.Validate(); err != nil {
		return nil, &RegistrationError{AgentID: card.ID, Err: err}
	}

	if err := inst.Initialize(ctx); err != nil {
		return nil, &RegistrationError{AgentID: card.ID, Err: err}
	}

	hb, err := inst.Status(ctx)
	if err != nil {
		return nil, &RegistrationError{AgentID: card.ID, Err: err}
	}
	if hb == nil {
		hb = &protocol.Heartbeat{Status: protocol.AgentIdle}
	}
	hbCopy := *hb
	hbCopy.AgentID = card.ID
	if hbCopy.LastSeen.IsZero() {
		hbCopy.LastSeen = r.clock.Now()
	}

	r.mu.Lock()
	if _, known := r.order[card.ID]; !known {
		r.order[card.ID] = r.nextOrder
		r.nextOrder++
	}
	r.cards[card.ID] = card
	r.capabilities[card.ID] = card.CapabilityList()
	r.heartbeats[card.ID] = &hbCopy
	r.instances[card.ID] = inst
	total := len(r.cards)
	r.mu.Unlock()

	r.logger.Info("agent registered",
		"agent_id", card.ID,
		"name", card.Name,
		"type", card.Type,
		"capabilities", len(card.Capabilities),
		"total_agents", total,
	)
	r.publish(&notify.Event{
		Kind:      notify.KindAgentRegistered,
		Timestamp: r.clock.Now(),
		AgentID:   card.ID,
	})

	return card, nil
}

// Unregister removes an agent from the registry. The agent's Shutdown hook
// is called best-effort: a shutdown failure is logged, never propagated.
// Unregistering an unknown ID is a no-op.
func (r *Registry) Unregister(ctx context.Context, agentID string) {
	r.mu.RLock()
	inst, known := r.instances[agentID]
	r.mu.RUnlock()

	if !known {
		return
	}

	if err := inst.Shutdown(ctx); err != nil {
		r.logger.Warn("agent shutdown failed",
			"agent_id", agentID,
			"error", err,
		)
	}

	r.mu.Lock()
	delete(r.cards, agentID)
	delete(r.capabilities, agentID)
	delete(r.heartbeats, agentID)
	delete(r.instances, agentID)
	delete(r.order, agentID)
	total := len(r.cards)
	r.mu.Unlock()

	r.logger.Info("agent unregistered",
		"agent_id", agentID,
		"total_agents", total,
	)
	r.publish(&notify.Event{
		Kind:      notify.KindAgentUnregistered,
		Timestamp: r.clock.Now(),
		AgentID:   agentID,
	})
}

// RecordHeartbeat stores the most recent heartbeat for a registered agent,
// overwriting the previous one. Returns ErrAgentNotFound for an unknown
// agent: a heartbeat must never exist without a card.
func (r *Registry) RecordHeartbeat(hb *protocol.Heartbeat) error {
	if err := hb.Validate(); err != nil {
		return err
	}

	hbCopy := *hb
	if hbCopy.LastSeen.IsZero() {
		hbCopy.LastSeen = r.clock.Now()
	}

	r.mu.Lock()
	if _, known := r.cards[hb.AgentID]; !known {
		r.mu.Unlock()
		return ErrAgentNotFound
	}
	r.heartbeats[hb.AgentID] = &hbCopy
	r.mu.Unlock()

	r.publish(&notify.Event{
		Kind:      notify.KindAgentHeartbeat,
		Timestamp: r.clock.Now(),
		AgentID:   hb.AgentID,
	})
	return nil
}

// RefreshCapabilities re-queries the agent's card and replaces the derived
// capability list. The stored card itself is not replaced.
func (r *Registry) RefreshCapabilities(ctx context.Context, agentID string) error {
	inst := r.GetAgentInstance(agentID)
	if inst == nil {
		return ErrAgentNotFound
	}

	card, err := inst.Card(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, known := r.cards[agentID]; !known {
		// Unregistered while we were querying.
		return ErrAgentNotFound
	}
	r.capabilities[agentID] = card.CapabilityList()
	return nil
}

// GetAgent returns the card for agentID, or nil if unknown.
func (r *Registry) GetAgent(agentID string) *protocol.AgentCard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cards[agentID]
}

// GetAgentInstance returns the instance for agentID, or nil if unknown.
func (r *Registry) GetAgentInstance(agentID string) AgentInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instances[agentID]
}

// GetAgentStatus returns the most recent heartbeat for agentID, or nil if
// unknown. Heartbeats are replaced wholesale, never mutated in place, so
// the returned value is stable.
func (r *Registry) GetAgentStatus(agentID string) *protocol.Heartbeat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.heartbeats[agentID]
}

// GetCapabilities returns the derived capability list for agentID, or nil
// if unknown.
func (r *Registry) GetCapabilities(agentID string) []protocol.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.capabilities[agentID]
}

// ListAgents returns all registered cards in registration order.
func (r *Registry) ListAgents() []*protocol.AgentCard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listAgentsLocked()
}

// listAgentsLocked returns cards sorted by registration order. Caller holds mu.
func (r *Registry) listAgentsLocked() []*protocol.AgentCard {
	cards := make([]*protocol.AgentCard, 0, len(r.cards))
	for _, card := range r.cards {
		cards = append(cards, card)
	}
	sort.Slice(cards, func(i, j int) bool {
		return r.order[cards[i].ID] < r.order[cards[j].ID]
	})
	return cards
}

// HandleDiscoveryRequest returns all registered agents, optionally filtered
// by an exact-match domain tag in card metadata and/or by requiring at
// least one overlapping capability name. Discovery is informational and
// applies no liveness filter; scoring is where liveness matters.
func (r *Registry) HandleDiscoveryRequest(req *protocol.DiscoveryRequest) *protocol.DiscoveryResponse {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resp := &protocol.DiscoveryResponse{Agents: []protocol.AgentCard{}}
	for _, card := range r.listAgentsLocked() {
		if req.Domain != "" && card.Metadata["domain"] != req.Domain {
			continue
		}
		if len(req.Capabilities) > 0 && !capabilityOverlap(r.capabilities[card.ID], req.Capabilities) {
			continue
		}
		resp.Agents = append(resp.Agents, *card)
	}
	return resp
}

// capabilityOverlap reports whether any derived capability name appears in wanted.
func capabilityOverlap(caps []protocol.Capability, wanted []string) bool {
	for _, c := range caps {
		for _, w := range wanted {
			if c.Name == w {
				return true
			}
		}
	}
	return false
}

// Stats summarizes the registry: total/online/offline counts and a
// per-type breakdown. Purely derived; no stored state.
type Stats struct {
	TotalAgents int            `json:"total_agents"`
	Online      int            `json:"online"`
	Offline     int            `json:"offline"`
	ByType      map[string]int `json:"by_type"`
}

// GetStats computes current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.clock.Now()
	stats := Stats{
		TotalAgents: len(r.cards),
		ByType:      make(map[string]int),
	}
	for id, card := range r.cards {
		stats.ByType[card.Type]++
		if r.offlineLocked(id, now) {
			stats.Offline++
		} else {
			stats.Online++
		}
	}
	return stats
}

// offlineLocked reports whether agentID is currently considered offline:
// no heartbeat ever recorded, or the last one is older than staleTimeout.
// Caller holds mu (read or write).
func (r *Registry) offlineLocked(agentID string, now time.Time) bool {
	hb, ok := r.heartbeats[agentID]
	if !ok {
		return true
	}
	return now.Sub(hb.LastSeen) > r.staleTimeout
}

// RunSweep runs the periodic liveness sweep until ctx is cancelled. Each
// pass emits an agent:offline notification for every currently-stale agent.
// Notification only: stale agents stay registered and may come back.
// Call in a goroutine; it blocks.
func (r *Registry) RunSweep(ctx context.Context) {
	ticker := r.clock.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("liveness sweep stopped")
			return
		case <-ticker.C():
			r.SweepOnce()
		}
	}
}

// SweepOnce performs a single liveness pass. Exported so tests and the
// simulator can drive the sweep without a timer.
func (r *Registry) SweepOnce() {
	now := r.clock.Now()

	r.mu.RLock()
	var stale []string
	for id := range r.cards {
		if r.offlineLocked(id, now) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	sort.Strings(stale)
	for _, id := range stale {
		r.logger.Warn("agent offline", "agent_id", id)
		r.publish(&notify.Event{
			Kind:      notify.KindAgentOffline,
			Timestamp: now,
			AgentID:   id,
			Reason:    "heartbeat stale",
		})
	}
}

// Shutdown unregisters every agent, invoking each Shutdown hook. Used as
// the registry's process-exit hook.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.cards))
	for id := range r.cards {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	for _, id := range ids {
		r.Unregister(ctx, id)
	}
}

// publish emits a notification if a broadcaster is configured.
func (r *Registry) publish(event *notify.Event) {
	if r.broadcaster != nil {
		r.broadcaster.Publish(notify.TopicRegistry, event)
	}
}
