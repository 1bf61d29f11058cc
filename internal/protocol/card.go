// ABOUTME: AgentCard, Capability, and Heartbeat data shapes published by agents.
// ABOUTME: Cards are immutable per registration; a new registration replaces wholesale.

package protocol

import (
	"fmt"
	"regexp"
	"time"
)

// agentIDPattern constrains agent identifiers to a safe, URL-friendly alphabet.
var agentIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// AgentCard is an agent's self-description: identity, type, capabilities,
// and transport. It is published once at registration and never mutated;
// re-registering replaces the card wholesale.
type AgentCard struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Type        string                `json:"type"`
	Version     string                `json:"version,omitempty"`
	Transport   string                `json:"transport,omitempty"`
	Address     string                `json:"address,omitempty"`
	Capabilities map[string]Capability `json:"capabilities,omitempty"`

	// TimeoutSeconds is the agent's declared per-task timeout bound.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// CostEstimate is an optional hint about per-task cost. Nil means the
	// agent declares nothing about cost.
	CostEstimate *float64 `json:"cost_estimate,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks the card's required identity fields.
// Returns ErrInvalidCard-wrapped errors describing the first failure.
func (c *AgentCard) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidCard)
	}
	if !agentIDPattern.MatchString(c.ID) {
		return fmt.Errorf("%w: id %q does not match %s", ErrInvalidCard, c.ID, agentIDPattern)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCard)
	}
	if c.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidCard)
	}
	return nil
}

// CapabilityList returns the card's capabilities as a slice. The registry
// derives its stored capability list from this at registration time.
func (c *AgentCard) CapabilityList() []Capability {
	if len(c.Capabilities) == 0 {
		return nil
	}
	caps := make([]Capability, 0, len(c.Capabilities))
	for name, cap := range c.Capabilities {
		if cap.Name == "" {
			cap.Name = name
		}
		caps = append(caps, cap)
	}
	return caps
}

// Capability is a named, typed operation an agent can perform.
type Capability struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Inputs      []Parameter `json:"inputs,omitempty"`
	Outputs     []Parameter `json:"outputs,omitempty"`

	// Streaming indicates the capability can emit incremental results.
	Streaming bool `json:"streaming,omitempty"`

	// PushNotifications indicates the agent can push asynchronous updates
	// for this capability instead of requiring polling.
	PushNotifications bool `json:"push_notifications,omitempty"`
}

// Parameter describes one typed input or output of a capability.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// AgentState is the coarse status an agent reports in its heartbeat.
type AgentState string

const (
	AgentIdle    AgentState = "idle"
	AgentRunning AgentState = "running"
	AgentPaused  AgentState = "paused"
	AgentErrored AgentState = "error"
)

// validAgentState reports whether s is one of the declared heartbeat states.
func validAgentState(s AgentState) bool {
	switch s {
	case AgentIdle, AgentRunning, AgentPaused, AgentErrored:
		return true
	}
	return false
}

// Heartbeat is a periodic liveness and status report from an agent.
// The registry keeps only the most recent heartbeat per agent.
type Heartbeat struct {
	AgentID     string     `json:"agent_id"`
	Status      AgentState `json:"status"`
	ActiveTasks int        `json:"active_tasks"`
	LastSeen    time.Time  `json:"last_seen"`
}

// Validate checks the heartbeat's field contract.
func (h *Heartbeat) Validate() error {
	if h.AgentID == "" {
		return fmt.Errorf("heartbeat: missing agent_id")
	}
	if !validAgentState(h.Status) {
		return fmt.Errorf("heartbeat: invalid status %q", h.Status)
	}
	if h.ActiveTasks < 0 {
		return fmt.Errorf("heartbeat: negative active_tasks %d", h.ActiveTasks)
	}
	return nil
}
