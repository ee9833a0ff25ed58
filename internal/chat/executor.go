package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/models"
)

// approvalNamespace seeds deterministic approval IDs. Deriving the ID
// from the tool-call ID means retransmits of the same call map to the
// same approval instead of piling up duplicates.
var approvalNamespace = uuid.MustParse("8f3c1d0a-5b77-4c1e-9a42-6de20c6e8b11")

// ApprovalID returns the deterministic approval ID for a tool call.
func ApprovalID(callID string) string {
	return uuid.NewSHA1(approvalNamespace, []byte(callID)).String()
}

// ToolResult is the outcome of one tool execution, correlated to the
// originating call.
type ToolResult struct {
	CallID  string `json:"call_id"`
	OK      bool   `json:"ok"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Content renders the result as the text body of a tool message.
func (r ToolResult) Content() string {
	if !r.OK {
		return "Error: " + r.Error
	}
	b, err := json.Marshal(r.Payload)
	if err != nil {
		return "Error: unserializable tool result"
	}
	return string(b)
}

// Executor runs tools against the catalog, enforcing the permission
// policy: read-only tools execute immediately, mutating tools only
// with an approved PendingApproval.
type Executor struct {
	registry *Registry
	ttl      time.Duration

	mu        sync.Mutex
	approvals map[string]*models.PendingApproval
}

// NewExecutor creates an executor over a tool registry. ttl bounds how
// long a pending approval stays resolvable.
func NewExecutor(registry *Registry, ttl time.Duration) *Executor {
	return &Executor{
		registry:  registry,
		ttl:       ttl,
		approvals: make(map[string]*models.PendingApproval),
	}
}

// Registry returns the underlying tool registry.
func (e *Executor) Registry() *Registry { return e.registry }

// RequireApproval creates (or returns the existing) PendingApproval
// for a mutating tool call.
func (e *Executor) RequireApproval(sessionID string, call models.ToolCall) *models.PendingApproval {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := ApprovalID(call.ID)
	if existing, ok := e.approvals[id]; ok {
		return existing
	}
	approval := &models.PendingApproval{
		ID:        id,
		SessionID: sessionID,
		Call:      call,
		State:     models.ApprovalPending,
		CreatedAt: time.Now(),
	}
	e.approvals[id] = approval
	return approval
}

// GetApproval returns an approval by ID, expiring it first if its TTL
// has lapsed.
func (e *Executor) GetApproval(id string) (*models.PendingApproval, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	approval, ok := e.approvals[id]
	if !ok {
		return nil, apperrors.NotFound("approval", id)
	}
	e.expireLocked(approval)
	return approval, nil
}

// Resolve marks an approval approved or rejected. Resolution is
// exactly-once: resolving an already-resolved approval returns
// Conflict and leaves its terminal state unchanged.
func (e *Executor) Resolve(id string, approved bool) (*models.PendingApproval, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	approval, ok := e.approvals[id]
	if !ok {
		return nil, apperrors.NotFound("approval", id)
	}
	e.expireLocked(approval)
	if approval.State != models.ApprovalPending {
		return nil, apperrors.Conflict("approval " + id + " already " + string(approval.State))
	}

	now := time.Now()
	approval.ResolvedAt = &now
	if approved {
		approval.State = models.ApprovalApproved
	} else {
		approval.State = models.ApprovalRejected
	}
	return approval, nil
}

// Expire force-expires one approval if it is still pending.
func (e *Executor) Expire(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if approval, ok := e.approvals[id]; ok && approval.State == models.ApprovalPending {
		now := time.Now()
		approval.State = models.ApprovalExpired
		approval.ResolvedAt = &now
	}
}

// ExpireSession expires all outstanding pending approvals for a
// session, used on cancellation.
func (e *Executor) ExpireSession(sessionID string) []*models.PendingApproval {
	e.mu.Lock()
	defer e.mu.Unlock()

	var expired []*models.PendingApproval
	now := time.Now()
	for _, approval := range e.approvals {
		if approval.SessionID == sessionID && approval.State == models.ApprovalPending {
			approval.State = models.ApprovalExpired
			approval.ResolvedAt = &now
			expired = append(expired, approval)
		}
	}
	return expired
}

func (e *Executor) expireLocked(approval *models.PendingApproval) {
	if approval.State == models.ApprovalPending && time.Since(approval.CreatedAt) > e.ttl {
		now := time.Now()
		approval.State = models.ApprovalExpired
		approval.ResolvedAt = &now
	}
}

// Execute runs a tool call under the permission policy. A mutating
// call without an approved approval yields a typed AwaitingApproval
// outcome, never a side effect. Tool runtime failures come back as an
// unsuccessful ToolResult, not an error: the model should see them.
func (e *Executor) Execute(ctx context.Context, call models.ToolCall) (*ToolResult, error) {
	tool, err := e.registry.Get(call.Name)
	if err != nil {
		return &ToolResult{CallID: call.ID, OK: false, Error: "unknown tool: " + call.Name}, nil
	}

	if tool.Permission() == PermissionMutating {
		e.mu.Lock()
		approval, ok := e.approvals[ApprovalID(call.ID)]
		if ok {
			e.expireLocked(approval)
		}
		e.mu.Unlock()

		if !ok || approval.State == models.ApprovalPending {
			return nil, apperrors.AwaitingApproval(call.ID)
		}
		if approval.State != models.ApprovalApproved {
			return nil, apperrors.Conflict("approval for call " + call.ID + " is " + string(approval.State))
		}
	}

	payload, err := tool.Execute(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		return &ToolResult{CallID: call.ID, OK: false, Error: err.Error()}, nil
	}
	return &ToolResult{CallID: call.ID, OK: true, Payload: payload}, nil
}
