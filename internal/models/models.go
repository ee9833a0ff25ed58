package models

import "time"

// ImageStatus is the lifecycle state of one captured image.
// Transitions are monotonic forward except the failed -> processing
// retry path.
type ImageStatus string

const (
	ImagePending    ImageStatus = "pending"
	ImageProcessing ImageStatus = "processing"
	ImageCompleted  ImageStatus = "completed"
	ImageFailed     ImageStatus = "failed"
	ImagePushed     ImageStatus = "pushed"
)

// SessionStatus is the aggregate status of a capture session, derived
// from the statuses of its images plus the push/abandon flags.
type SessionStatus string

const (
	SessionCreated    SessionStatus = "created"
	SessionProcessing SessionStatus = "processing"
	SessionReady      SessionStatus = "ready"
	SessionMixed      SessionStatus = "mixed"
	SessionPushing    SessionStatus = "pushing"
	SessionPushed     SessionStatus = "pushed"
	SessionPartial    SessionStatus = "partial"
	SessionAbandoned  SessionStatus = "abandoned"
)

// TargetConfig identifies where a session's items get pushed.
type TargetConfig struct {
	HomeboxURL string `json:"homebox_url"`
	LocationID string `json:"location_id,omitempty"`
}

// ProcessingSettings selects how images in a session are analyzed.
type ProcessingSettings struct {
	Provider          string `json:"provider"`
	Model             string `json:"model"`
	EnrichmentEnabled bool   `json:"enrichment_enabled"`
	AttachPhoto       bool   `json:"attach_photo"`
}

// SessionStats counts images per status.
type SessionStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Pushed     int `json:"pushed"`
}

// Total returns the number of images in the session.
func (s SessionStats) Total() int {
	return s.Pending + s.Processing + s.Completed + s.Failed + s.Pushed
}

// CaptureSession is a user-initiated batch of images destined for one
// catalog push. Owned exclusively by the store; mutated only through
// pipeline operations.
type CaptureSession struct {
	ID              string             `json:"id"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Target          TargetConfig       `json:"target"`
	Settings        ProcessingSettings `json:"settings"`
	Status          SessionStatus      `json:"status"`
	Stats           SessionStats       `json:"stats"`
	PushAttemptedAt *time.Time         `json:"push_attempted_at,omitempty"`
}

// ImageRecord tracks the processing outcome of one captured image.
type ImageRecord struct {
	ID            string            `json:"id"`
	SessionID     string            `json:"session_id"`
	Status        ImageStatus       `json:"status"`
	Attempts      int               `json:"attempts"`
	LastError     string            `json:"last_error,omitempty"`
	ImagePath     string            `json:"image_path"`
	Result        *ExtractionResult `json:"result,omitempty"`
	CatalogItemID string            `json:"catalog_item_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ItemFields holds the structured inventory data extracted from one
// image. Replaced wholesale only by a fresh extraction; the pipeline
// never patches individual fields (user edits do).
type ItemFields struct {
	Name         string `json:"name" yaml:"name"`
	Manufacturer string `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	ModelNumber  string `json:"model_number,omitempty" yaml:"model_number,omitempty"`
	SerialNumber string `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	Quantity     int    `json:"quantity" yaml:"quantity"`
	MACAddress   string `json:"mac_address,omitempty" yaml:"mac_address,omitempty"`
	FCCID        string `json:"fcc_id,omitempty" yaml:"fcc_id,omitempty"`
	Notes        string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// ConfidenceScores carries per-field confidence plus an overall score,
// all in [0, 1].
type ConfidenceScores struct {
	Fields  map[string]float64 `json:"fields,omitempty"`
	Overall float64            `json:"overall"`
}

// Enrichment holds supplementary product data fetched after initial
// extraction.
type Enrichment struct {
	Enriched    bool     `json:"enriched"`
	Source      string   `json:"source,omitempty"`
	Description string   `json:"description,omitempty"`
	Features    []string `json:"features,omitempty"`
	Price       float64  `json:"price,omitempty"`
	ReleaseYear int      `json:"release_year,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// EditInfo tracks user edits to the extracted fields.
type EditInfo struct {
	Edited        bool       `json:"edited"`
	EditedAt      *time.Time `json:"edited_at,omitempty"`
	ChangedFields []string   `json:"changed_fields,omitempty"`
}

// ExtractionResult is the structured output of AI analysis of one
// image. Created once per successful extraction; Enrichment and Edit
// may be updated later.
type ExtractionResult struct {
	ExtractedAt time.Time        `json:"extracted_at"`
	Provider    string           `json:"provider"`
	Model       string           `json:"model"`
	Fields      ItemFields       `json:"fields"`
	Confidence  ConfidenceScores `json:"confidence"`
	Enrichment  Enrichment       `json:"enrichment"`
	Edit        EditInfo         `json:"edit"`
	RawResponse string           `json:"raw_response,omitempty"`
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured request from the model to invoke a named
// capability. The ID is unique within a session.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatMessage is one turn of a conversation. ToolCalls appears only on
// assistant messages; ToolCallID only on tool messages, referencing the
// call it answers.
type ChatMessage struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ApprovalState is the resolution state of a pending approval.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
	ApprovalExpired  ApprovalState = "expired"
)

// PendingApproval gates a mutating tool call behind explicit human
// confirmation. Resolved exactly once; a second resolution is a
// Conflict, never a silent overwrite.
type PendingApproval struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	Call       ToolCall      `json:"call"`
	State      ApprovalState `json:"state"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}
