// ABOUTME: Workflow events and the phase-specific payloads they carry.
// ABOUTME: Dispatch is purely a function of (current phase, event type).

package workflow

import (
	"time"

	"github.com/2389/circle-core/internal/protocol"
)

// EventType declares what a workflow event describes. Unknown types are
// buffered without changing phase, so new event kinds can be introduced
// without breaking older cores.
type EventType string

const (
	EventClarificationNeeded EventType = "clarification_needed"
	EventDiscoveryResults    EventType = "discovery_results"
	EventAgentSelection      EventType = "agent_selection"
	EventPlanProposed        EventType = "plan_proposed"
	EventExecutionStarted    EventType = "execution_started"
	EventProgress            EventType = "progress"
	EventTaskComplete        EventType = "task_complete"
	EventTaskError           EventType = "task_error"
	EventInterrupt           EventType = "plan_interrupt"
)

// InterruptReason distinguishes why a workflow was interrupted.
type InterruptReason string

const (
	InterruptUserRequested InterruptReason = "user_requested"
	InterruptError         InterruptReason = "error"
)

// Event is one protocol event addressed to a workflow. Sequence is assigned
// by the engine when the event is applied; senders leave it zero.
type Event struct {
	WorkflowID string    `json:"workflow_id"`
	MessageID  string    `json:"message_id,omitempty"`
	Type       EventType `json:"type"`
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`

	Clarification *ClarificationData     `json:"clarification,omitempty"`
	Discovery     *DiscoveryData         `json:"discovery,omitempty"`
	Selection     *SelectionData         `json:"selection,omitempty"`
	Preview       *PreviewData           `json:"preview,omitempty"`
	Progress      *ProgressUpdate        `json:"progress,omitempty"`
	Complete      *protocol.TaskComplete `json:"complete,omitempty"`
	Error         *protocol.TaskError    `json:"error,omitempty"`
	Interrupt     *InterruptData         `json:"interrupt,omitempty"`
}

// ClarificationData is the payload of a clarification round: the questions
// the agent needs answered before it can proceed.
type ClarificationData struct {
	Questions []string `json:"questions"`
}

// DiscoveryData carries the agent candidates found during discovery.
type DiscoveryData struct {
	Candidates []protocol.AgentCard `json:"candidates"`
}

// SelectionData is the prompt shown to the user to pick among options.
type SelectionData struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// PreviewData is the proposed plan awaiting approval.
type PreviewData struct {
	Summary string   `json:"summary"`
	Steps   []string `json:"steps,omitempty"`
}

// ProgressUpdate is presentation metadata: it never causes a phase
// transition. Total of zero means unknown; a nil Percentage is derived
// from Current/Total when possible.
type ProgressUpdate struct {
	Current    int      `json:"current"`
	Total      int      `json:"total,omitempty"`
	Message    string   `json:"message,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
}

// InterruptData explains an interrupt event.
type InterruptData struct {
	Reason InterruptReason `json:"reason"`
	Detail string          `json:"detail,omitempty"`
}
