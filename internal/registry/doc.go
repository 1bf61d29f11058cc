// Package registry tracks which agents exist, whether they are alive, what
// they can do, and which one best matches a given task.
//
// # Overview
//
// The Registry holds three parallel views of every registered agent: its
// published AgentCard, the capability list derived from that card, and its
// most recent Heartbeat. Registration and unregistration update all three
// atomically from the caller's perspective; there is never a heartbeat for
// an unknown card.
//
// # Registration
//
// Register drives the full sequence against an AgentInstance:
//
//  1. Query the agent's card (capability discovery)
//  2. Validate identity fields (id, name, type)
//  3. Invoke the agent's Initialize hook
//  4. Capture an initial heartbeat via Status
//  5. Install card, capabilities, and heartbeat; emit agent:registered
//
// Any failure surfaces as a *RegistrationError carrying the agent ID, and
// leaves no partial state behind. The registry never holds its internal
// lock while awaiting an agent call; only map mutations are synchronized.
//
// # Liveness
//
// An agent with no heartbeat in the last 60 seconds (configurable) is
// considered offline: excluded from task scoring but not removed, since it
// may come back. A periodic sweep emits agent:offline notifications for
// stale agents. The sweep runs off an injectable Clock so tests advance a
// virtual clock instead of sleeping.
//
// # Scoring
//
// FindAgentsForTask ranks online agents by a weighted sum of relevance,
// heartbeat freshness, cost, and load. Weights are adjustable at runtime
// via UpdateScoringWeights (partial merge).
//
// # Lookups
//
// Lookup-style calls (GetAgent, GetAgentInstance, GetAgentStatus) return
// nil for unknown agents rather than an error; only mutating operations
// fail loudly.
package registry
