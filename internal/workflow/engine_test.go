// ABOUTME: Tests for the workflow engine: creation, event ingestion, terminal freeze.
// ABOUTME: Covers the correlation invariant, ring buffer, dedupe, and parallel workflows.

package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/circle-core/internal/notify"
	"github.com/2389/circle-core/internal/protocol"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(Options{})
	t.Cleanup(e.Close)
	return e
}

func createWorkflow(t *testing.T, e *Engine) *Execution {
	t.Helper()
	exec, err := e.Create(CreateRequest{
		SessionID:         "session-1",
		AgentID:           "agent-1",
		AgentAddress:      "inproc://agent-1",
		InitialMessageID:  "user-msg-1",
		ResponseMessageID: "assistant-msg-1",
	})
	require.NoError(t, err)
	return exec
}

func TestCreate(t *testing.T) {
	e := newTestEngine(t)
	exec := createWorkflow(t, e)

	assert.NotEmpty(t, exec.ID)
	assert.Equal(t, PhaseInitial, exec.Phase)
	assert.Equal(t, "user-msg-1", exec.InitialMessageID)
	assert.Equal(t, "assistant-msg-1", exec.ResponseMessageID)
	require.Len(t, exec.PhaseHistory, 1)
	assert.Equal(t, PhaseInitial, exec.PhaseHistory[0].Phase)
}

func TestCreate_RequiredFields(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Create(CreateRequest{InitialMessageID: "a", ResponseMessageID: "b"})
	assert.Error(t, err, "missing agent ID")

	_, err = e.Create(CreateRequest{AgentID: "agent-1", ResponseMessageID: "b"})
	assert.Error(t, err, "missing initial message ID")

	_, err = e.Create(CreateRequest{AgentID: "agent-1", InitialMessageID: "a"})
	assert.Error(t, err, "missing response message ID")
}

func TestApply_UnknownWorkflow(t *testing.T) {
	e := newTestEngine(t)

	err := e.Apply(&Event{WorkflowID: "ghost", Type: EventTaskComplete})
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	err = e.Apply(&Event{Type: EventTaskComplete})
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestScenario_ClarifyPlanCompleteThenLateError(t *testing.T) {
	e := newTestEngine(t)
	exec := createWorkflow(t, e)

	require.NoError(t, e.Apply(&Event{
		WorkflowID:    exec.ID,
		Type:          EventClarificationNeeded,
		Clarification: &ClarificationData{Questions: []string{"which calendar?"}},
	}))
	require.NoError(t, e.Apply(&Event{
		WorkflowID: exec.ID,
		Type:       EventPlanProposed,
		Preview:    &PreviewData{Summary: "book the 3pm slot", Steps: []string{"check availability", "send invite"}},
	}))
	require.NoError(t, e.Apply(&Event{
		WorkflowID: exec.ID,
		Type:       EventTaskComplete,
		Complete:   &protocol.TaskComplete{TaskID: "t-1"},
	}))

	got := e.Get(exec.ID)
	require.NotNil(t, got)
	assert.Equal(t, PhaseCompleted, got.Phase)
	assert.NotNil(t, got.CompletedAt)

	// Payloads from passed phases are retained.
	require.NotNil(t, got.PhaseData.Clarification)
	assert.Equal(t, []string{"which calendar?"}, got.PhaseData.Clarification.Questions)
	require.NotNil(t, got.PhaseData.Preview)
	assert.Equal(t, "book the 3pm slot", got.PhaseData.Preview.Summary)

	// A late error is buffered but leaves the terminal state untouched.
	require.NoError(t, e.Apply(&Event{
		WorkflowID: exec.ID,
		Type:       EventTaskError,
		Error:      &protocol.TaskError{TaskID: "t-1", Message: "too late"},
	}))

	after := e.Get(exec.ID)
	assert.Equal(t, PhaseCompleted, after.Phase)
	assert.Empty(t, after.Error)
	assert.Equal(t, uint64(4), after.EventSequence, "late event still consumes a sequence number")

	events := e.Events(exec.ID)
	require.Len(t, events, 4)
	assert.Equal(t, EventTaskError, events[3].Type)
}

func TestCorrelationInvariant(t *testing.T) {
	e := newTestEngine(t)
	exec := createWorkflow(t, e)

	events := []*Event{
		{WorkflowID: exec.ID, Type: EventClarificationNeeded, Clarification: &ClarificationData{Questions: []string{"q1"}}},
		{WorkflowID: exec.ID, Type: EventClarificationNeeded, Clarification: &ClarificationData{Questions: []string{"q2"}}},
		{WorkflowID: exec.ID, Type: EventDiscoveryResults, Discovery: &DiscoveryData{}},
		{WorkflowID: exec.ID, Type: EventPlanProposed, Preview: &PreviewData{Summary: "plan"}},
		{WorkflowID: exec.ID, Type: EventExecutionStarted},
		{WorkflowID: exec.ID, Type: EventProgress, Progress: &ProgressUpdate{Current: 1, Total: 2}},
		{WorkflowID: exec.ID, Type: EventTaskComplete, Complete: &protocol.TaskComplete{TaskID: "t"}},
	}

	for _, ev := range events {
		require.NoError(t, e.Apply(ev))
		got := e.Get(exec.ID)
		assert.Equal(t, "user-msg-1", got.InitialMessageID)
		assert.Equal(t, "assistant-msg-1", got.ResponseMessageID)
	}
}

func TestClarificationRecurs(t *testing.T) {
	e := newTestEngine(t)
	exec := createWorkflow(t, e)

	for i := 0; i < 3; i++ {
		require.NoError(t, e.Apply(&Event{
			WorkflowID:    exec.ID,
			Type:          EventClarificationNeeded,
			Clarification: &ClarificationData{Questions: []string{fmt.Sprintf("round %d", i)}},
		}))
	}

	got := e.Get(exec.ID)
	assert.Equal(t, PhaseClarification, got.Phase)
	// created + three clarification rounds
	require.Len(t, got.PhaseHistory, 4)
	assert.Equal(t, []string{"round 2"}, got.PhaseData.Clarification.Questions)

	// Once past clarification, it may not come back.
	require.NoError(t, e.Apply(&Event{WorkflowID: exec.ID, Type: EventExecutionStarted}))
	require.NoError(t, e.Apply(&Event{
		WorkflowID:    exec.ID,
		Type:          EventClarificationNeeded,
		Clarification: &ClarificationData{Questions: []string{"too late"}},
	}))

	got = e.Get(exec.ID)
	assert.Equal(t, PhaseExecuting, got.Phase)
	assert.Equal(t, []string{"round 2"}, got.PhaseData.Clarification.Questions,
		"rejected transition must not update phase data")
}

func TestPhaseForwardOnly(t *testing.T) {
	e := newTestEngine(t)
	exec := createWorkflow(t, e)

	require.NoError(t, e.Apply(&Event{WorkflowID: exec.ID, Type: EventExecutionStarted}))

	// A late plan_proposed would be a regression; it must be ignored.
	require.NoError(t, e.Apply(&Event{
		WorkflowID: exec.ID,
		Type:       EventPlanProposed,
		Preview:    &PreviewData{Summary: "stale plan"},
	}))

	got := e.Get(exec.ID)
	assert.Equal(t, PhaseExecuting, got.Phase)

	ranks := map[Phase]int{PhaseInitial: 0, PhaseClarification: 1, PhaseDiscovery: 2, PhaseSelection: 3, PhasePreview: 4, PhaseExecuting: 5, PhaseCompleted: 6}
	prev := -1
	for _, tr := range got.PhaseHistory {
		rank := ranks[tr.Phase]
		assert.GreaterOrEqual(t, rank, prev, "history must never regress")
		prev = rank
	}
}

func TestRejectedTransitionRetainsPhaseData(t *testing.T) {
	e := newTestEngine(t)
	exec := createWorkflow(t, e)

	require.NoError(t, e.Apply(&Event{
		WorkflowID:    exec.ID,
		Type:          EventClarificationNeeded,
		Clarification: &ClarificationData{Questions: []string{"which quarter?"}},
	}))
	require.NoError(t, e.Apply(&Event{
		WorkflowID: exec.ID,
		Type:       EventPlanProposed,
		Preview:    &PreviewData{Summary: "the real plan"},
	}))
	require.NoError(t, e.Apply(&Event{WorkflowID: exec.ID, Type: EventExecutionStarted}))

	// Stale backward events must not touch the retained payloads either.
	require.NoError(t, e.Apply(&Event{
		WorkflowID: exec.ID,
		Type:       EventPlanProposed,
		Preview:    &PreviewData{Summary: "stale duplicate"},
	}))
	require.NoError(t, e.Apply(&Event{
		WorkflowID:    exec.ID,
		Type:          EventClarificationNeeded,
		Clarification: &ClarificationData{Questions: []string{"stale question"}},
	}))

	got := e.Get(exec.ID)
	assert.Equal(t, PhaseExecuting, got.Phase)
	require.NotNil(t, got.PhaseData.Preview)
	assert.Equal(t, "the real plan", got.PhaseData.Preview.Summary)
	require.NotNil(t, got.PhaseData.Clarification)
	assert.Equal(t, []string{"which quarter?"}, got.PhaseData.Clarification.Questions)
}

func TestBufferedEventsDetachedFromCaller(t *testing.T) {
	e := newTestEngine(t)
	exec := createWorkflow(t, e)

	event := &Event{
		WorkflowID: exec.ID,
		Type:       EventPlanProposed,
		Preview:    &PreviewData{Summary: "original"},
	}
	require.NoError(t, e.Apply(event))

	// Mutating the caller's event after Apply must not alter the audit ring.
	event.Type = EventTaskError
	event.Sequence = 999

	buffered := e.Events(exec.ID)
	require.Len(t, buffered, 1)
	assert.Equal(t, EventPlanProposed, buffered[0].Type)
	assert.Equal(t, uint64(1), buffered[0].Sequence)
}

func TestProgressUpdates(t *testing.T) {
	e := newTestEngine(t)
	exec := createWorkflow(t, e)

	require.NoError(t, e.Apply(&Event{WorkflowID: exec.ID, Type: EventExecutionStarted}))
	require.NoError(t, e.Apply(&Event{
		WorkflowID: exec.ID,
		Type:       EventProgress,
		Progress:   &ProgressUpdate{Current: 3, Total: 4, Message: "sending invites"},
	}))

	got := e.Get(exec.ID)
	assert.Equal(t, PhaseExecuting, got.Phase, "progress never transitions phase")
	assert.Equal(t, 3, got.Progress.Current)
	assert.Equal(t, 4, got.Progress.Total)
	assert.Equal(t, "sending invites", got.Progress.Message)
	assert.InDelta(t, 75.0, got.Progress.Percentage, 1e-9)

	// Explicit percentage wins over derived.
	pct := 99.0
	require.NoError(t, e.Apply(&Event{
		WorkflowID: exec.ID,
		Type:       EventProgress,
		Progress:   &ProgressUpdate{Current: 4, Percentage: &pct},
	}))
	assert.InDelta(t, 99.0, e.Get(exec.ID).Progress.Percentage, 1e-9)
}

func TestTaskError(t *testing.T) {
	e := newTestEngine(t)
	exec := createWorkflow(t, e)

	require.NoError(t, e.Apply(&Event{
		WorkflowID: exec.ID,
		Type:       EventTaskError,
		Error:      &protocol.TaskError{TaskID: "t", Message: "agent crashed", Code: "crash"},
	}))

	got := e.Get(exec.ID)
	assert.Equal(t, PhaseError, got.Phase)
	assert.Equal(t, "agent crashed", got.Error)
	assert.NotNil(t, got.CompletedAt)
}

func TestInterrupt(t *testing.T) {
	t.Run("user requested gets its own terminal state", func(t *testing.T) {
		e := newTestEngine(t)
		exec := createWorkflow(t, e)

		require.NoError(t, e.Apply(&Event{
			WorkflowID: exec.ID,
			Type:       EventInterrupt,
			Interrupt:  &InterruptData{Reason: InterruptUserRequested},
		}))

		got := e.Get(exec.ID)
		assert.Equal(t, PhaseInterrupted, got.Phase)
		assert.Empty(t, got.Error)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("interrupt with error reason terminates as error", func(t *testing.T) {
		e := newTestEngine(t)
		exec := createWorkflow(t, e)

		require.NoError(t, e.Apply(&Event{
			WorkflowID: exec.ID,
			Type:       EventInterrupt,
			Interrupt:  &InterruptData{Reason: InterruptError, Detail: "watchdog timeout"},
		}))

		got := e.Get(exec.ID)
		assert.Equal(t, PhaseError, got.Phase)
		assert.Equal(t, "watchdog timeout", got.Error)
	})

	t.Run("interrupt after terminal is a no-op", func(t *testing.T) {
		e := newTestEngine(t)
		exec := createWorkflow(t, e)

		require.NoError(t, e.Apply(&Event{WorkflowID: exec.ID, Type: EventTaskComplete}))
		require.NoError(t, e.Apply(&Event{
			WorkflowID: exec.ID,
			Type:       EventInterrupt,
			Interrupt:  &InterruptData{Reason: InterruptUserRequested},
		}))

		assert.Equal(t, PhaseCompleted, e.Get(exec.ID).Phase)
	})
}

func TestUnknownEventTypeIsForwardCompatibleNoOp(t *testing.T) {
	e := newTestEngine(t)
	exec := createWorkflow(t, e)

	require.NoError(t, e.Apply(&Event{WorkflowID: exec.ID, Type: "hologram_ready"}))

	got := e.Get(exec.ID)
	assert.Equal(t, PhaseInitial, got.Phase)
	assert.Equal(t, uint64(1), got.EventSequence)

	events := e.Events(exec.ID)
	require.Len(t, events, 1)
	assert.Equal(t, EventType("hologram_ready"), events[0].Type)
}

func TestEventSequenceStrictlyIncreasing(t *testing.T) {
	e := newTestEngine(t)
	exec := createWorkflow(t, e)

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Apply(&Event{
			WorkflowID: exec.ID,
			Type:       EventProgress,
			Progress:   &ProgressUpdate{Current: i},
		}))
	}

	events := e.Events(exec.ID)
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Sequence)
	}
}

func TestEventBufferIsBoundedRing(t *testing.T) {
	e := NewEngine(Options{EventBufferCap: 3})
	t.Cleanup(e.Close)
	exec := createWorkflow(t, e)

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Apply(&Event{
			WorkflowID: exec.ID,
			Type:       EventProgress,
			Progress:   &ProgressUpdate{Current: i},
		}))
	}

	events := e.Events(exec.ID)
	require.Len(t, events, 3)
	// Oldest dropped first; sequences 3, 4, 5 remain.
	assert.Equal(t, uint64(3), events[0].Sequence)
	assert.Equal(t, uint64(5), events[2].Sequence)

	// Sequence counter is unaffected by buffer eviction.
	assert.Equal(t, uint64(5), e.Get(exec.ID).EventSequence)
}

func TestDuplicateMessagesDropped(t *testing.T) {
	e := newTestEngine(t)
	exec := createWorkflow(t, e)

	ev := &Event{
		WorkflowID: exec.ID,
		MessageID:  "msg-42",
		Type:       EventExecutionStarted,
	}
	require.NoError(t, e.Apply(ev))

	retry := &Event{
		WorkflowID: exec.ID,
		MessageID:  "msg-42",
		Type:       EventExecutionStarted,
	}
	require.NoError(t, e.Apply(retry))

	got := e.Get(exec.ID)
	assert.Equal(t, uint64(1), got.EventSequence, "duplicate must not consume a sequence number")
	assert.Len(t, e.Events(exec.ID), 1)
}

func TestWorkflowPhaseNotifications(t *testing.T) {
	b := notify.NewBroadcaster(nil)
	defer b.Close()
	e := NewEngine(Options{Broadcaster: b})
	t.Cleanup(e.Close)

	exec := createWorkflow(t, e)
	ch, _ := b.Subscribe(context.Background(), exec.ID)

	require.NoError(t, e.Apply(&Event{WorkflowID: exec.ID, Type: EventExecutionStarted}))

	select {
	case event := <-ch:
		assert.Equal(t, notify.KindWorkflowPhase, event.Kind)
		assert.Equal(t, string(PhaseExecuting), event.Phase)
		assert.Equal(t, exec.ID, event.WorkflowID)
	case <-time.After(time.Second):
		t.Fatal("expected workflow:phase notification")
	}
}

func TestListBySessionAndActive(t *testing.T) {
	e := newTestEngine(t)

	first := createWorkflow(t, e)
	second, err := e.Create(CreateRequest{
		SessionID:         "session-2",
		AgentID:           "agent-2",
		InitialMessageID:  "u2",
		ResponseMessageID: "a2",
	})
	require.NoError(t, err)

	require.NoError(t, e.Apply(&Event{WorkflowID: first.ID, Type: EventTaskComplete}))

	bySession := e.ListBySession("session-1")
	require.Len(t, bySession, 1)
	assert.Equal(t, first.ID, bySession[0].ID)

	active := e.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestDistinctWorkflowsProcessInParallel(t *testing.T) {
	e := newTestEngine(t)

	const workflows = 8
	ids := make([]string, workflows)
	for i := range ids {
		exec, err := e.Create(CreateRequest{
			SessionID:         "session-1",
			AgentID:           "agent-1",
			InitialMessageID:  fmt.Sprintf("u-%d", i),
			ResponseMessageID: fmt.Sprintf("a-%d", i),
		})
		require.NoError(t, err)
		ids[i] = exec.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(workflowID string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = e.Apply(&Event{
					WorkflowID: workflowID,
					Type:       EventProgress,
					Progress:   &ProgressUpdate{Current: j},
				})
			}
			_ = e.Apply(&Event{WorkflowID: workflowID, Type: EventTaskComplete})
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		got := e.Get(id)
		assert.Equal(t, PhaseCompleted, got.Phase)
		assert.Equal(t, uint64(51), got.EventSequence)
	}
}

func TestGetUnknownReturnsNil(t *testing.T) {
	e := newTestEngine(t)
	assert.Nil(t, e.Get("ghost"))
	assert.Nil(t, e.Events("ghost"))
}
