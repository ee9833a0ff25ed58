package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/models"
	"github.com/synssins/homebox-companion/internal/providers"
	"github.com/synssins/homebox-companion/internal/store"
)

// State is the orchestrator's per-session generation state.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingModel    State = "awaiting_model"
	StateAwaitingApproval State = "awaiting_approval"
	StateExecutingTool    State = "executing_tool"
	StateDone             State = "done"
	StateError            State = "error"
)

// EventKind identifies one streamed orchestrator event.
type EventKind string

const (
	EventMessageDelta      EventKind = "message_delta"
	EventToolCallRequested EventKind = "tool_call_requested"
	EventApprovalRequired  EventKind = "approval_required"
	EventToolResult        EventKind = "tool_result"
	EventError             EventKind = "error"
	EventDone              EventKind = "done"
)

// Event is one entry of the stream a generation emits, in order.
type Event struct {
	Kind      EventKind               `json:"kind"`
	SessionID string                  `json:"session_id"`
	Content   string                  `json:"content,omitempty"`
	Call      *models.ToolCall        `json:"call,omitempty"`
	Approval  *models.PendingApproval `json:"approval,omitempty"`
	Result    *ToolResult             `json:"result,omitempty"`
}

type decision struct {
	approvalID string
}

// conversation is the per-session loop state. Exactly one generation
// runs per conversation at a time.
type conversation struct {
	session   *Session
	state     State
	cancel    context.CancelFunc
	decisions chan decision
}

// Orchestrator drives the conversation loop: model completion, tool
// dispatch through the executor, approval gating and event streaming.
type Orchestrator struct {
	chatter  providers.Chatter
	executor *Executor
	store    *store.Store
	window   int
	ttl      time.Duration
	maxTurns int

	mu    sync.Mutex
	convs map[string]*conversation
}

// NewOrchestrator creates a chat orchestrator. The store may be nil,
// in which case history lives only in memory.
func NewOrchestrator(chatter providers.Chatter, executor *Executor, st *store.Store, window int, ttl time.Duration) *Orchestrator {
	return &Orchestrator{
		chatter:  chatter,
		executor: executor,
		store:    st,
		window:   window,
		ttl:      ttl,
		maxTurns: 8,
		convs:    make(map[string]*conversation),
	}
}

func (o *Orchestrator) conversation(sessionID string) *conversation {
	o.mu.Lock()
	defer o.mu.Unlock()
	conv, ok := o.convs[sessionID]
	if !ok {
		session := NewSession(sessionID)
		if o.store != nil {
			if history, err := o.store.LoadChatMessages(context.Background(), sessionID); err != nil {
				slog.Warn("Failed to load chat history", "session_id", sessionID, "err", err)
			} else if len(history) > 0 {
				session = NewSessionWithHistory(sessionID, history)
			}
		}
		conv = &conversation{
			session:   session,
			state:     StateIdle,
			decisions: make(chan decision, 16),
		}
		o.convs[sessionID] = conv
	}
	return conv
}

// SessionState returns the current generation state for a session.
func (o *Orchestrator) SessionState(sessionID string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if conv, ok := o.convs[sessionID]; ok {
		return conv.state
	}
	return StateIdle
}

// History returns a session's full message history.
func (o *Orchestrator) History(sessionID string) []models.ChatMessage {
	return o.conversation(sessionID).session.Messages()
}

func (o *Orchestrator) setState(conv *conversation, state State) {
	o.mu.Lock()
	conv.state = state
	o.mu.Unlock()
}

// SendMessage appends a user message and starts one generation loop,
// returning the ordered event stream. A second SendMessage on the same
// session while a generation is in flight fails with Busy.
func (o *Orchestrator) SendMessage(ctx context.Context, sessionID, text string) (<-chan Event, error) {
	if text == "" {
		return nil, apperrors.Invalid("message text is empty")
	}
	conv := o.conversation(sessionID)

	o.mu.Lock()
	switch conv.state {
	case StateIdle, StateDone, StateError:
	default:
		o.mu.Unlock()
		return nil, apperrors.Busy(sessionID)
	}
	conv.state = StateAwaitingModel
	genCtx, cancel := context.WithCancel(ctx)
	conv.cancel = cancel
	o.mu.Unlock()

	o.appendMessage(conv, models.ChatMessage{Role: models.RoleUser, Content: text})

	events := make(chan Event, 64)
	go o.run(genCtx, conv, events)
	return events, nil
}

// ResolveApproval resolves a pending approval and, when the session's
// generation is waiting on it, wakes that branch up. Resolution is
// exactly-once.
func (o *Orchestrator) ResolveApproval(approvalID string, approved bool) (*models.PendingApproval, error) {
	approval, err := o.executor.Resolve(approvalID, approved)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	conv, ok := o.convs[approval.SessionID]
	o.mu.Unlock()
	if ok {
		select {
		case conv.decisions <- decision{approvalID: approvalID}:
		default:
		}
	}
	return approval, nil
}

// Cancel marks a session's in-flight generation cancelled and expires
// its outstanding approvals. Cancellation is cooperative: it takes
// effect at the next suspension point and never rolls back an
// already-executed tool call.
func (o *Orchestrator) Cancel(sessionID string) error {
	o.mu.Lock()
	conv, ok := o.convs[sessionID]
	var cancel context.CancelFunc
	if ok {
		cancel = conv.cancel
	}
	o.mu.Unlock()

	if !ok || cancel == nil {
		return apperrors.Conflict("no generation in flight for session " + sessionID)
	}
	o.executor.ExpireSession(sessionID)
	cancel()
	return nil
}

func (o *Orchestrator) appendMessage(conv *conversation, msg models.ChatMessage) {
	if err := conv.session.AddMessage(msg); err != nil {
		slog.Error("Dropping malformed chat message", "session_id", conv.session.ID, "err", err)
		return
	}
	if o.store != nil {
		if err := o.store.AppendChatMessage(context.Background(), conv.session.ID, msg); err != nil {
			slog.Warn("Failed to persist chat message", "session_id", conv.session.ID, "err", err)
		}
	}
}

func emit(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// run is the generation loop. It suspends at exactly two points:
// waiting for the model and waiting for approval resolution.
func (o *Orchestrator) run(ctx context.Context, conv *conversation, events chan<- Event) {
	defer close(events)
	sessionID := conv.session.ID

	for turn := 0; turn < o.maxTurns; turn++ {
		o.setState(conv, StateAwaitingModel)

		completion, err := o.chatter.Complete(ctx, conv.session.History(o.window), o.executor.Registry().Definitions())
		if err != nil {
			slog.Error("Model completion failed", "session_id", sessionID, "turn", turn, "err", err)
			o.setState(conv, StateError)
			emit(ctx, events, Event{Kind: EventError, SessionID: sessionID, Content: err.Error()})
			return
		}

		if completion.Content != "" {
			emit(ctx, events, Event{Kind: EventMessageDelta, SessionID: sessionID, Content: completion.Content})
		}
		o.appendMessage(conv, models.ChatMessage{
			Role:      models.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		if len(completion.ToolCalls) == 0 {
			o.setState(conv, StateIdle)
			emit(ctx, events, Event{Kind: EventDone, SessionID: sessionID, Content: completion.Content})
			return
		}

		for i := range completion.ToolCalls {
			call := completion.ToolCalls[i]
			emit(ctx, events, Event{Kind: EventToolCallRequested, SessionID: sessionID, Call: &call})

			if !o.runCall(ctx, conv, events, call) {
				return
			}
		}
	}

	slog.Warn("Generation reached max turns", "session_id", sessionID, "max_turns", o.maxTurns)
	o.setState(conv, StateError)
	emit(ctx, events, Event{Kind: EventError, SessionID: sessionID, Content: "generation exceeded maximum tool-calling turns"})
}

// runCall executes one tool call, gating mutating tools behind
// approval. It returns false when the generation must stop.
func (o *Orchestrator) runCall(ctx context.Context, conv *conversation, events chan<- Event, call models.ToolCall) bool {
	sessionID := conv.session.ID

	tool, err := o.executor.Registry().Get(call.Name)
	if err == nil && tool.Permission() == PermissionMutating {
		approval := o.executor.RequireApproval(sessionID, call)
		if approval.State == models.ApprovalPending {
			o.setState(conv, StateAwaitingApproval)
			emit(ctx, events, Event{Kind: EventApprovalRequired, SessionID: sessionID, Call: &call, Approval: approval})

			if !o.waitForApproval(ctx, conv, approval.ID) {
				// Cancelled while waiting. The branch still gets a terminal
				// tool message so history stays consistent.
				o.recordToolOutcome(ctx, conv, events, call, &ToolResult{CallID: call.ID, OK: false, Error: "cancelled before approval"})
				o.setState(conv, StateError)
				emit(ctx, events, Event{Kind: EventError, SessionID: sessionID, Content: "generation cancelled"})
				return false
			}
		}

		resolved, err := o.executor.GetApproval(approval.ID)
		if err != nil || resolved.State != models.ApprovalApproved {
			state := models.ApprovalExpired
			if err == nil {
				state = resolved.State
			}
			// Declined or expired actions still append a tool message so
			// the call/result pairing invariant holds.
			o.recordToolOutcome(ctx, conv, events, call, &ToolResult{CallID: call.ID, OK: false, Error: "tool call " + string(state) + " by user"})
			return true
		}
	}

	o.setState(conv, StateExecutingTool)
	result, err := o.executor.Execute(ctx, call)
	if err != nil {
		result = &ToolResult{CallID: call.ID, OK: false, Error: err.Error()}
	}
	o.recordToolOutcome(ctx, conv, events, call, result)
	return true
}

func (o *Orchestrator) recordToolOutcome(ctx context.Context, conv *conversation, events chan<- Event, call models.ToolCall, result *ToolResult) {
	o.appendMessage(conv, models.ChatMessage{
		Role:       models.RoleTool,
		Content:    result.Content(),
		ToolCallID: call.ID,
	})
	emit(ctx, events, Event{Kind: EventToolResult, SessionID: conv.session.ID, Call: &call, Result: result})
}

// waitForApproval suspends until the approval is resolved, its TTL
// lapses, or the generation is cancelled. Returns false only on
// cancellation.
func (o *Orchestrator) waitForApproval(ctx context.Context, conv *conversation, approvalID string) bool {
	timer := time.NewTimer(o.ttl)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case d := <-conv.decisions:
			if d.approvalID == approvalID {
				return true
			}
			// A decision for another approval; keep waiting.
		case <-timer.C:
			o.executor.Expire(approvalID)
			return true
		}
	}
}
