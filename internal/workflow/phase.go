// ABOUTME: Workflow phases and the forward-only transition rules between them.
// ABOUTME: Clarification may recur; error and interrupted are terminal from anywhere.

package workflow

// Phase is the current stage of a workflow's state machine.
type Phase string

const (
	PhaseInitial       Phase = "initial"
	PhaseClarification Phase = "clarification"
	PhaseDiscovery     Phase = "discovery"
	PhaseSelection     Phase = "selection"
	PhasePreview       Phase = "preview"
	PhaseExecuting     Phase = "executing"
	PhaseCompleted     Phase = "completed"

	// PhaseInterrupted is the terminal state for a user-requested
	// interrupt. Kept distinct from PhaseError so consumers can tell
	// "cancelled by user" from a genuine failure.
	PhaseInterrupted Phase = "interrupted"

	PhaseError Phase = "error"
)

// phaseRank orders the forward progression. Terminal failure states are
// not ranked; they are reachable from any non-terminal phase.
var phaseRank = map[Phase]int{
	PhaseInitial:       0,
	PhaseClarification: 1,
	PhaseDiscovery:     2,
	PhaseSelection:     3,
	PhasePreview:       4,
	PhaseExecuting:     5,
	PhaseCompleted:     6,
}

// Terminal reports whether p accepts no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseError || p == PhaseInterrupted
}

// canTransition reports whether a workflow in phase from may enter to.
// Forward jumps may skip phases but never regress; clarification may repeat
// itself; error and interrupted are reachable from any non-terminal phase.
func canTransition(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if to == PhaseError || to == PhaseInterrupted {
		return true
	}
	if to == PhaseClarification && from == PhaseClarification {
		return true
	}
	fromRank, ok := phaseRank[from]
	if !ok {
		return false
	}
	toRank, ok := phaseRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}
