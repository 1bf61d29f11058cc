// ABOUTME: Execution is the root aggregate for one multi-turn user/agent interaction.
// ABOUTME: Message correlation IDs are fixed at creation and never reassigned.

package workflow

import "time"

// Execution tracks a single workflow from initial user message to final
// answer. It is mutated exclusively by events routed through the Engine;
// callers see snapshot copies.
type Execution struct {
	// ID is the globally unique workflow identifier.
	ID string `json:"id"`

	// SessionID groups workflows belonging to one chat session.
	SessionID string `json:"session_id,omitempty"`

	// AgentID and AgentAddress identify the bound agent.
	AgentID      string `json:"agent_id"`
	AgentAddress string `json:"agent_address,omitempty"`

	// InitialMessageID is the user message that started the workflow;
	// ResponseMessageID is the assistant message that must receive the
	// eventual answer. Both are fixed at creation — this is what keeps an
	// asynchronous agent response from ever landing in the wrong chat
	// bubble.
	InitialMessageID  string `json:"initial_message_id"`
	ResponseMessageID string `json:"response_message_id"`

	Phase        Phase        `json:"phase"`
	PhaseHistory []Transition `json:"phase_history"`
	PhaseData    PhaseData    `json:"phase_data"`

	Progress Progress `json:"progress"`

	// ActivityID/ActivityStatus link the workflow to an external activity
	// tracker, when one is in use.
	ActivityID     string `json:"activity_id,omitempty"`
	ActivityStatus string `json:"activity_status,omitempty"`

	// EventSequence is the strictly increasing sequence of the last event
	// applied. Consumers use it to detect gaps or duplicates.
	EventSequence uint64 `json:"event_sequence"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error is the terminal error string, set when the workflow ends in
	// the error phase.
	Error string `json:"error,omitempty"`
}

// Transition is one entry in an execution's phase history.
type Transition struct {
	Phase     Phase     `json:"phase"`
	Previous  Phase     `json:"previous"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PhaseData holds the phase-specific payloads accumulated so far. Payloads
// are retained after their phase passes so a UI can still show what the
// plan was once execution has started. Exactly the fields for phases the
// workflow has visited are non-nil.
type PhaseData struct {
	Clarification *ClarificationData `json:"clarification,omitempty"`
	Discovery     *DiscoveryData     `json:"discovery,omitempty"`
	Selection     *SelectionData     `json:"selection,omitempty"`
	Preview       *PreviewData       `json:"preview,omitempty"`
}

// Progress is the workflow's current progress display state.
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total,omitempty"`
	Message    string  `json:"message,omitempty"`
	Percentage float64 `json:"percentage"`
}

// clone returns a snapshot copy safe to hand to callers while events keep
// mutating the original.
func (e *Execution) clone() *Execution {
	c := *e

	c.PhaseHistory = make([]Transition, len(e.PhaseHistory))
	copy(c.PhaseHistory, e.PhaseHistory)

	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}

	if e.PhaseData.Clarification != nil {
		d := *e.PhaseData.Clarification
		c.PhaseData.Clarification = &d
	}
	if e.PhaseData.Discovery != nil {
		d := *e.PhaseData.Discovery
		c.PhaseData.Discovery = &d
	}
	if e.PhaseData.Selection != nil {
		d := *e.PhaseData.Selection
		c.PhaseData.Selection = &d
	}
	if e.PhaseData.Preview != nil {
		d := *e.PhaseData.Preview
		c.PhaseData.Preview = &d
	}

	return &c
}
