// ABOUTME: Scenario simulator — registers scripted in-process agents and drives a workflow.
// ABOUTME: Usage: circle-sim [-scenario scenario.toml] [-v]

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/circle-core/internal/notify"
	"github.com/2389/circle-core/internal/protocol"
	"github.com/2389/circle-core/internal/registry"
	"github.com/2389/circle-core/internal/workflow"
)

var (
	phaseColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	agentColor = color.New(color.FgGreen).SprintFunc()
	dimColor   = color.New(color.Faint).SprintFunc()
	errColor   = color.New(color.FgRed, color.Bold).SprintFunc()
)

// Scenario is the TOML description of a simulation run.
type Scenario struct {
	SessionID string          `toml:"session_id"`
	Task      string          `toml:"task"`
	Agents    []AgentDef      `toml:"agents"`
	Events    []ScriptedEvent `toml:"events"`
}

// AgentDef declares one scripted agent.
type AgentDef struct {
	ID           string   `toml:"id"`
	Name         string   `toml:"name"`
	Type         string   `toml:"type"`
	Capabilities []string `toml:"capabilities"`
	CostEstimate *float64 `toml:"cost_estimate"`
	ActiveTasks  int      `toml:"active_tasks"`

	// HeartbeatAge backdates the agent's heartbeat, e.g. "70s" to simulate
	// a stale agent.
	HeartbeatAge string `toml:"heartbeat_age"`
}

// ScriptedEvent is one workflow event to feed in order.
type ScriptedEvent struct {
	Type      string   `toml:"type"`
	Questions []string `toml:"questions"`
	Summary   string   `toml:"summary"`
	Steps     []string `toml:"steps"`
	Prompt    string   `toml:"prompt"`
	Options   []string `toml:"options"`
	Current   int      `toml:"current"`
	Total     int      `toml:"total"`
	Message   string   `toml:"message"`
	Error     string   `toml:"error"`
	Reason    string   `toml:"reason"`
}

func main() {
	scenarioPath := flag.String("scenario", "scenario.toml", "Scenario file to run")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if err := run(*scenarioPath, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "circle-sim: %v\n", err)
		os.Exit(1)
	}
}

func run(scenarioPath string, verbose bool) error {
	var scenario Scenario
	if _, err := toml.DecodeFile(scenarioPath, &scenario); err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}
	if len(scenario.Agents) == 0 {
		return fmt.Errorf("scenario declares no agents")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()
	broadcaster := notify.NewBroadcaster(logger)
	defer broadcaster.Close()

	reg := registry.New(registry.Options{Broadcaster: broadcaster, Logger: logger})
	engine := workflow.NewEngine(workflow.Options{Broadcaster: broadcaster, Logger: logger})
	defer engine.Close()
	defer reg.Shutdown(ctx)

	// Register the scripted agents, backdating heartbeats where asked.
	for _, def := range scenario.Agents {
		agent := newScriptedAgent(def)
		if _, err := reg.Register(ctx, agent); err != nil {
			return err
		}
		if def.HeartbeatAge != "" {
			age, err := time.ParseDuration(def.HeartbeatAge)
			if err != nil {
				return fmt.Errorf("agent %s: bad heartbeat_age: %w", def.ID, err)
			}
			err = reg.RecordHeartbeat(&protocol.Heartbeat{
				AgentID:     def.ID,
				Status:      protocol.AgentIdle,
				ActiveTasks: def.ActiveTasks,
				LastSeen:    time.Now().Add(-age),
			})
			if err != nil {
				return err
			}
		}
		fmt.Printf("registered %s %s\n", agentColor(def.ID), dimColor("("+def.Type+")"))
	}

	// Rank agents for the scenario task.
	ranked := reg.FindAgentsForTask(&registry.TaskDescriptor{Description: scenario.Task})
	if len(ranked) == 0 {
		return fmt.Errorf("no online agent matches the task")
	}

	fmt.Printf("\ntask: %q\n", scenario.Task)
	for i, s := range ranked {
		fmt.Printf("  %d. %s score=%.3f %s\n",
			i+1, agentColor(s.Card.ID), s.Score,
			dimColor(fmt.Sprintf("(relevance=%.1f freshness=%.2f cost=%.1f load=%.1f)",
				s.Relevance, s.Freshness, s.Cost, s.Load)))
	}

	chosen := ranked[0]
	exec, err := engine.Create(workflow.CreateRequest{
		SessionID:         scenario.SessionID,
		AgentID:           chosen.Card.ID,
		InitialMessageID:  uuid.New().String(),
		ResponseMessageID: uuid.New().String(),
	})
	if err != nil {
		return err
	}
	fmt.Printf("\nworkflow %s bound to %s\n\n", dimColor(exec.ID), agentColor(chosen.Card.ID))

	// Feed the scripted events and trace what the machine does with them.
	for _, scripted := range scenario.Events {
		event := buildEvent(exec.ID, scripted)
		if err := engine.Apply(event); err != nil {
			return fmt.Errorf("applying %s: %w", scripted.Type, err)
		}

		state := engine.Get(exec.ID)
		line := fmt.Sprintf("seq %-3d %-22s -> %s", state.EventSequence, scripted.Type, phaseColor(string(state.Phase)))
		if state.Phase == workflow.PhaseError {
			line += " " + errColor(state.Error)
		}
		if state.Progress.Message != "" {
			line += " " + dimColor(fmt.Sprintf("[%s %.0f%%]", state.Progress.Message, state.Progress.Percentage))
		}
		fmt.Println(line)
	}

	final := engine.Get(exec.ID)
	fmt.Printf("\nfinal phase: %s after %d events, %d transitions\n",
		phaseColor(string(final.Phase)), final.EventSequence, len(final.PhaseHistory))
	return nil
}

// buildEvent converts a scripted event into a workflow event.
func buildEvent(workflowID string, s ScriptedEvent) *workflow.Event {
	event := &workflow.Event{
		WorkflowID: workflowID,
		MessageID:  uuid.New().String(),
		Type:       workflow.EventType(s.Type),
		Timestamp:  time.Now(),
	}

	switch event.Type {
	case workflow.EventClarificationNeeded:
		event.Clarification = &workflow.ClarificationData{Questions: s.Questions}
	case workflow.EventAgentSelection:
		event.Selection = &workflow.SelectionData{Prompt: s.Prompt, Options: s.Options}
	case workflow.EventPlanProposed:
		event.Preview = &workflow.PreviewData{Summary: s.Summary, Steps: s.Steps}
	case workflow.EventProgress:
		event.Progress = &workflow.ProgressUpdate{Current: s.Current, Total: s.Total, Message: s.Message}
	case workflow.EventTaskError:
		event.Error = &protocol.TaskError{TaskID: workflowID, Message: s.Error}
	case workflow.EventInterrupt:
		event.Interrupt = &workflow.InterruptData{Reason: workflow.InterruptReason(s.Reason)}
	}
	return event
}

// scriptedAgent is an in-process AgentInstance driven by a scenario definition.
type scriptedAgent struct {
	card *protocol.AgentCard
	hb   *protocol.Heartbeat
}

func newScriptedAgent(def AgentDef) *scriptedAgent {
	caps := make(map[string]protocol.Capability, len(def.Capabilities))
	for _, name := range def.Capabilities {
		caps[name] = protocol.Capability{Name: name}
	}

	name := def.Name
	if name == "" {
		name = def.ID
	}
	agentType := def.Type
	if agentType == "" {
		agentType = "worker"
	}

	return &scriptedAgent{
		card: &protocol.AgentCard{
			ID:           def.ID,
			Name:         name,
			Type:         agentType,
			Version:      "0.0.0-sim",
			Transport:    "inproc",
			Capabilities: caps,
			CostEstimate: def.CostEstimate,
		},
		hb: &protocol.Heartbeat{
			AgentID:     def.ID,
			Status:      protocol.AgentIdle,
			ActiveTasks: def.ActiveTasks,
		},
	}
}

func (a *scriptedAgent) Card(ctx context.Context) (*protocol.AgentCard, error) {
	return a.card, nil
}

func (a *scriptedAgent) Initialize(ctx context.Context) error { return nil }
func (a *scriptedAgent) Shutdown(ctx context.Context) error   { return nil }

func (a *scriptedAgent) DelegateTask(ctx context.Context, task *protocol.TaskDelegation) error {
	return nil
}

func (a *scriptedAgent) CancelTask(ctx context.Context, taskID string) error { return nil }

func (a *scriptedAgent) Status(ctx context.Context) (*protocol.Heartbeat, error) {
	hb := *a.hb
	hb.LastSeen = time.Now()
	return &hb, nil
}

func (a *scriptedAgent) HandleMessage(ctx context.Context, msg *protocol.Message) error {
	return nil
}
