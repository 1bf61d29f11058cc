// ABOUTME: Engine owns all workflow executions and applies protocol events to them.
// ABOUTME: Events are serialized per workflow; distinct workflows process in parallel.

package workflow

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/circle-core/internal/dedupe"
	"github.com/2389/circle-core/internal/notify"
)

// ErrWorkflowNotFound indicates an event referenced an unknown workflow ID.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrInvalidCreate indicates a create request is missing required fields.
var ErrInvalidCreate = errors.New("invalid workflow create request")

// Defaults for engine tuning, all overridable via Options.
const (
	// DefaultEventBufferCap bounds the per-workflow ring of recent events.
	DefaultEventBufferCap = 100

	// DefaultDedupeTTL is how long a message ID is remembered.
	DefaultDedupeTTL = 5 * time.Minute

	// DefaultDedupeMaxEntries caps the dedupe cache size.
	DefaultDedupeMaxEntries = 10000
)

// Options configures an Engine. Zero values fall back to defaults; a nil
// Broadcaster disables notifications.
type Options struct {
	EventBufferCap   int
	DedupeTTL        time.Duration
	DedupeMaxEntries int
	Broadcaster      *notify.Broadcaster
	Logger           *slog.Logger
}

// Engine routes events to workflow executions. Each workflow's events are
// applied under that workflow's own lock, giving the single-writer
// discipline the state machine needs without serializing unrelated
// workflows against each other.
type Engine struct {
	mu        sync.RWMutex
	workflows map[string]*workflowState

	bufferCap   int
	dedupe      *dedupe.Cache
	broadcaster *notify.Broadcaster
	logger      *slog.Logger
}

// workflowState pairs an execution with its serialization lock and event
// ring.
type workflowState struct {
	mu     sync.Mutex
	exec   *Execution
	events []*Event // bounded ring, oldest first
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	if opts.EventBufferCap <= 0 {
		opts.EventBufferCap = DefaultEventBufferCap
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = DefaultDedupeTTL
	}
	if opts.DedupeMaxEntries <= 0 {
		opts.DedupeMaxEntries = DefaultDedupeMaxEntries
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Engine{
		workflows:   make(map[string]*workflowState),
		bufferCap:   opts.EventBufferCap,
		dedupe:      dedupe.New(opts.DedupeTTL, opts.DedupeMaxEntries),
		broadcaster: opts.Broadcaster,
		logger:      opts.Logger.With("component", "workflow"),
	}
}

// Close releases the engine's background resources.
func (e *Engine) Close() {
	e.dedupe.Close()
}

// CreateRequest binds a new workflow to an agent and the chat messages it
// answers.
type CreateRequest struct {
	SessionID         string
	AgentID           string
	AgentAddress      string
	InitialMessageID  string
	ResponseMessageID string
	ActivityID        string
}

// Create starts a new workflow execution in the initial phase. The message
// correlation IDs are fixed here for the life of the workflow.
func (e *Engine) Create(req CreateRequest) (*Execution, error) {
	if req.AgentID == "" {
		return nil, errors.New("agent_id is required")
	}
	if req.InitialMessageID == "" || req.ResponseMessageID == "" {
		return nil, errors.New("initial and response message IDs are required")
	}

	now := time.Now()
	exec := &Execution{
		ID:                uuid.New().String(),
		SessionID:         req.SessionID,
		AgentID:           req.AgentID,
		AgentAddress:      req.AgentAddress,
		InitialMessageID:  req.InitialMessageID,
		ResponseMessageID: req.ResponseMessageID,
		ActivityID:        req.ActivityID,
		Phase:             PhaseInitial,
		PhaseHistory: []Transition{{
			Phase:     PhaseInitial,
			Previous:  "",
			Reason:    "created",
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	e.mu.Lock()
	e.workflows[exec.ID] = &workflowState{exec: exec}
	e.mu.Unlock()

	e.logger.Info("workflow created",
		"workflow_id", exec.ID,
		"session_id", exec.SessionID,
		"agent_id", exec.AgentID,
	)
	e.publishPhase(exec, "created")

	return exec.clone(), nil
}

// Apply ingests one event. The event is assigned the workflow's next
// sequence number and appended to the audit ring regardless of outcome;
// whether it also mutates the execution depends on the current phase and
// the event type. Returns ErrWorkflowNotFound for a missing or unknown
// workflow ID; everything else is absorbed (forward compatibility).
func (e *Engine) Apply(event *Event) error {
	if event.WorkflowID == "" {
		return ErrWorkflowNotFound
	}

	e.mu.RLock()
	ws, ok := e.workflows[event.WorkflowID]
	e.mu.RUnlock()
	if !ok {
		return ErrWorkflowNotFound
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	// Transport retries can deliver the same message twice; drop exact
	// duplicates before they consume a sequence number.
	if event.MessageID != "" && e.dedupe.Seen(event.WorkflowID+"/"+event.MessageID) {
		e.logger.Debug("duplicate message dropped",
			"workflow_id", event.WorkflowID,
			"message_id", event.MessageID,
		)
		return nil
	}

	exec := ws.exec
	exec.EventSequence++
	event.Sequence = exec.EventSequence
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.bufferEvent(ws, event)

	if exec.Phase.Terminal() {
		// Audit only: a terminal workflow never mutates again.
		e.logger.Debug("event after terminal phase buffered as no-op",
			"workflow_id", exec.ID,
			"phase", exec.Phase,
			"event_type", event.Type,
		)
		return nil
	}

	e.dispatch(ws, event)
	return nil
}

// dispatch updates phase/progress/payload for one event. Caller holds ws.mu.
func (e *Engine) dispatch(ws *workflowState, event *Event) {
	exec := ws.exec

	switch event.Type {
	case EventClarificationNeeded:
		if e.transition(ws, PhaseClarification, "clarification requested") && event.Clarification != nil {
			exec.PhaseData.Clarification = event.Clarification
		}

	case EventDiscoveryResults:
		if e.transition(ws, PhaseDiscovery, "discovery results received") && event.Discovery != nil {
			exec.PhaseData.Discovery = event.Discovery
		}

	case EventAgentSelection:
		if e.transition(ws, PhaseSelection, "selection requested") && event.Selection != nil {
			exec.PhaseData.Selection = event.Selection
		}

	case EventPlanProposed:
		if e.transition(ws, PhasePreview, "plan proposed") && event.Preview != nil {
			exec.PhaseData.Preview = event.Preview
		}

	case EventExecutionStarted:
		e.transition(ws, PhaseExecuting, "execution started")

	case EventProgress:
		if event.Progress != nil {
			e.applyProgress(ws, event.Progress)
		}

	case EventTaskComplete:
		if e.transition(ws, PhaseCompleted, "task complete") {
			now := time.Now()
			exec.CompletedAt = &now
		}

	case EventTaskError:
		msg := "task failed"
		if event.Error != nil && event.Error.Message != "" {
			msg = event.Error.Message
		}
		e.fail(ws, PhaseError, msg)

	case EventInterrupt:
		reason := InterruptUserRequested
		detail := ""
		if event.Interrupt != nil {
			reason = event.Interrupt.Reason
			detail = event.Interrupt.Detail
		}
		if reason == InterruptError {
			if detail == "" {
				detail = "interrupted by error"
			}
			e.fail(ws, PhaseError, detail)
		} else {
			e.fail(ws, PhaseInterrupted, string(InterruptUserRequested))
		}

	default:
		// Unrecognized event types are buffered no-ops.
		e.logger.Debug("unrecognized event type buffered",
			"workflow_id", exec.ID,
			"event_type", event.Type,
		)
	}
}

// transition moves the workflow to phase, appending history and notifying
// observers. A transition the phase graph forbids (a backward jump from a
// late or out-of-order event) is logged and ignored without mutation.
// Caller holds ws.mu.
func (e *Engine) transition(ws *workflowState, to Phase, reason string) bool {
	exec := ws.exec
	if !canTransition(exec.Phase, to) {
		e.logger.Warn("transition rejected",
			"workflow_id", exec.ID,
			"from", exec.Phase,
			"to", to,
		)
		return false
	}

	now := time.Now()
	exec.PhaseHistory = append(exec.PhaseHistory, Transition{
		Phase:     to,
		Previous:  exec.Phase,
		Reason:    reason,
		Timestamp: now,
	})
	exec.Phase = to
	exec.UpdatedAt = now

	e.logger.Info("workflow phase",
		"workflow_id", exec.ID,
		"phase", to,
		"reason", reason,
	)
	e.publishPhase(exec, reason)
	return true
}

// fail moves the workflow to a terminal failure phase and records why.
// Caller holds ws.mu.
func (e *Engine) fail(ws *workflowState, to Phase, detail string) {
	if !e.transition(ws, to, detail) {
		return
	}
	exec := ws.exec
	now := time.Now()
	exec.CompletedAt = &now
	if to == PhaseError {
		exec.Error = detail
	}
}

// applyProgress updates the progress display state. Progress never changes
// phase. Caller holds ws.mu.
func (e *Engine) applyProgress(ws *workflowState, p *ProgressUpdate) {
	exec := ws.exec

	exec.Progress.Current = p.Current
	if p.Total > 0 {
		exec.Progress.Total = p.Total
	}
	if p.Message != "" {
		exec.Progress.Message = p.Message
	}
	switch {
	case p.Percentage != nil:
		exec.Progress.Percentage = *p.Percentage
	case exec.Progress.Total > 0:
		exec.Progress.Percentage = 100 * float64(p.Current) / float64(exec.Progress.Total)
	}
	exec.UpdatedAt = time.Now()

	if e.broadcaster != nil {
		e.broadcaster.Publish(exec.ID, &notify.Event{
			Kind:       notify.KindWorkflowProgress,
			Timestamp:  exec.UpdatedAt,
			WorkflowID: exec.ID,
			Progress: &notify.Progress{
				Current:    exec.Progress.Current,
				Total:      exec.Progress.Total,
				Message:    exec.Progress.Message,
				Percentage: exec.Progress.Percentage,
			},
		})
	}
}

// bufferEvent appends to the bounded audit ring, dropping the oldest event
// once the cap is reached. The ring holds its own copy so the caller
// cannot alter audit entries after Apply returns. Caller holds ws.mu.
func (e *Engine) bufferEvent(ws *workflowState, event *Event) {
	buffered := *event
	if len(ws.events) >= e.bufferCap {
		copy(ws.events, ws.events[1:])
		ws.events[len(ws.events)-1] = &buffered
		return
	}
	ws.events = append(ws.events, &buffered)
}

// Get returns a snapshot of the workflow, or nil if unknown.
func (e *Engine) Get(workflowID string) *Execution {
	e.mu.RLock()
	ws, ok := e.workflows[workflowID]
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.exec.clone()
}

// Events returns a copy of the workflow's buffered events in sequence
// order, or nil if the workflow is unknown.
func (e *Engine) Events(workflowID string) []*Event {
	e.mu.RLock()
	ws, ok := e.workflows[workflowID]
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	events := make([]*Event, len(ws.events))
	copy(events, ws.events)
	return events
}

// ListBySession returns snapshots of all workflows in a session, oldest
// first.
func (e *Engine) ListBySession(sessionID string) []*Execution {
	return e.list(func(exec *Execution) bool {
		return exec.SessionID == sessionID
	})
}

// ListActive returns snapshots of all non-terminal workflows, oldest first.
func (e *Engine) ListActive() []*Execution {
	return e.list(func(exec *Execution) bool {
		return !exec.Phase.Terminal()
	})
}

// list snapshots every workflow matching keep, sorted by creation time.
func (e *Engine) list(keep func(*Execution) bool) []*Execution {
	e.mu.RLock()
	states := make([]*workflowState, 0, len(e.workflows))
	for _, ws := range e.workflows {
		states = append(states, ws)
	}
	e.mu.RUnlock()

	var out []*Execution
	for _, ws := range states {
		ws.mu.Lock()
		if keep(ws.exec) {
			out = append(out, ws.exec.clone())
		}
		ws.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// publishPhase emits a workflow:phase notification if a broadcaster is
// configured.
func (e *Engine) publishPhase(exec *Execution, reason string) {
	if e.broadcaster == nil {
		return
	}
	e.broadcaster.Publish(exec.ID, &notify.Event{
		Kind:       notify.KindWorkflowPhase,
		Timestamp:  exec.UpdatedAt,
		WorkflowID: exec.ID,
		Phase:      string(exec.Phase),
		Reason:     reason,
	})
}
