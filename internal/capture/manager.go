package capture

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/catalog"
	"github.com/synssins/homebox-companion/internal/config"
	"github.com/synssins/homebox-companion/internal/enrich"
	"github.com/synssins/homebox-companion/internal/models"
	"github.com/synssins/homebox-companion/internal/providers"
	"github.com/synssins/homebox-companion/internal/store"
)

// Pusher is the slice of the catalog client the pipeline needs.
type Pusher interface {
	CreateItem(ctx context.Context, item catalog.ItemInput) (string, error)
	UploadAttachment(ctx context.Context, itemID, filename string, data []byte) error
}

// Manager drives the capture pipeline: image lifecycle transitions,
// extraction, enrichment and the catalog push. All mutations of one
// session's aggregate status go through a per-session mutex so
// concurrent image completions cannot race on the recompute.
type Manager struct {
	store     *store.Store
	extractor providers.Extractor
	enricher  enrich.Enricher
	pusher    Pusher
	cfg       *config.Config

	// sem bounds concurrent extractions across all sessions.
	sem chan struct{}

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// sessionState holds the per-session serialization lock and the
// out-of-band flags that feed the aggregate status.
type sessionState struct {
	mu      sync.Mutex
	pushing bool
}

// New creates a pipeline manager. The enricher may be nil when
// enrichment is disabled globally.
func New(st *store.Store, extractor providers.Extractor, enricher enrich.Enricher, pusher Pusher, cfg *config.Config) *Manager {
	return &Manager{
		store:     st,
		extractor: extractor,
		enricher:  enricher,
		pusher:    pusher,
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.Workers),
		sessions:  make(map[string]*sessionState),
	}
}

func (m *Manager) state(sessionID string) *sessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &sessionState{}
		m.sessions[sessionID] = s
	}
	return s
}

func newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// CreateSession creates a new capture session with zeroed stats.
func (m *Manager) CreateSession(ctx context.Context, target models.TargetConfig, settings models.ProcessingSettings) (*models.CaptureSession, error) {
	if settings.Provider == "" {
		settings.Provider = m.cfg.Provider
	}
	if settings.Model == "" {
		settings.Model = m.cfg.Model
	}

	now := time.Now()
	session := &models.CaptureSession{
		ID:        newID(),
		CreatedAt: now,
		UpdatedAt: now,
		Target:    target,
		Settings:  settings,
		Status:    models.SessionCreated,
	}
	if err := m.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	slog.Info("Capture session created", "session_id", session.ID, "provider", settings.Provider)
	return session, nil
}

// GetSession returns a session by ID.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*models.CaptureSession, error) {
	return m.store.GetSession(ctx, sessionID)
}

// ListSessions returns all sessions.
func (m *Manager) ListSessions(ctx context.Context) ([]*models.CaptureSession, error) {
	return m.store.ListSessions(ctx)
}

// ListImages returns a session's image records.
func (m *Manager) ListImages(ctx context.Context, sessionID string) ([]*models.ImageRecord, error) {
	if _, err := m.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return m.store.ListImages(ctx, sessionID)
}

// GetImage returns one image record.
func (m *Manager) GetImage(ctx context.Context, imageID string) (*models.ImageRecord, error) {
	return m.store.GetImage(ctx, imageID)
}

// AddImage stores the image bytes and creates a pending record.
// An absent or abandoned session is reported as not found.
func (m *Manager) AddImage(ctx context.Context, sessionID string, image []byte) (*models.ImageRecord, error) {
	if len(image) == 0 {
		return nil, apperrors.Invalid("image data is empty")
	}

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionAbandoned {
		return nil, apperrors.NotFound("session", sessionID)
	}

	id := newID()
	imagePath := filepath.Join(m.cfg.DataDir, "uploads", id+".jpg")
	if err := os.WriteFile(imagePath, image, 0644); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	now := time.Now()
	rec := &models.ImageRecord{
		ID:        id,
		SessionID: sessionID,
		Status:    models.ImagePending,
		ImagePath: imagePath,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.SaveImage(ctx, rec); err != nil {
		return nil, err
	}
	if err := m.recompute(ctx, sessionID); err != nil {
		return nil, err
	}
	slog.Info("Image added", "session_id", sessionID, "image_id", id, "bytes", len(image))
	return rec, nil
}

// EnqueueImage processes an image on a background goroutine, bounded
// by the worker pool.
func (m *Manager) EnqueueImage(imageID string) {
	go func() {
		if err := m.ProcessImage(context.Background(), imageID); err != nil {
			slog.Error("Background image processing failed", "image_id", imageID, "err", err)
		}
	}()
}

// ProcessImage runs extraction for one image: pending -> processing ->
// completed or failed, with bounded retries for transient failures.
// The owning session's aggregate status is recomputed and persisted
// after every transition.
func (m *Manager) ProcessImage(ctx context.Context, imageID string) error {
	rec, err := m.store.GetImage(ctx, imageID)
	if err != nil {
		return err
	}
	session, err := m.store.GetSession(ctx, rec.SessionID)
	if err != nil {
		return err
	}
	if session.Status == models.SessionAbandoned {
		return apperrors.NotFound("session", rec.SessionID)
	}
	if rec.Status != models.ImagePending && rec.Status != models.ImageFailed {
		return apperrors.Conflict(fmt.Sprintf("image %s is %s, not processable", imageID, rec.Status))
	}

	if err := m.transition(ctx, rec, models.ImageProcessing, ""); err != nil {
		return err
	}

	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	image, err := os.ReadFile(rec.ImagePath)
	if err != nil {
		return m.transition(ctx, rec, models.ImageFailed, fmt.Sprintf("image file unreadable: %v", err))
	}

	result, err := m.extract(ctx, session, rec, image)
	if err != nil {
		slog.Warn("Extraction failed", "image_id", rec.ID, "attempts", rec.Attempts, "err", err)
		return m.transition(ctx, rec, models.ImageFailed, err.Error())
	}

	if session.Settings.EnrichmentEnabled && m.enricher != nil {
		// Enrichment is best-effort; a failure never fails the image.
		enrichment, err := m.enricher.Enrich(ctx, result.Fields)
		if err != nil {
			slog.Warn("Enrichment failed", "image_id", rec.ID, "err", err)
		} else {
			result.Enrichment = *enrichment
		}
	}

	rec.Result = result
	return m.transition(ctx, rec, models.ImageCompleted, "")
}

// extract calls the extraction provider with bounded retry and
// exponential backoff. Only transient failures are retried.
func (m *Manager) extract(ctx context.Context, session *models.CaptureSession, rec *models.ImageRecord, image []byte) (*models.ExtractionResult, error) {
	opts := providers.DetectOptions{Model: session.Settings.Model}

	var lastErr error
	for rec.Attempts < m.cfg.MaxAttempts {
		rec.Attempts++

		items, err := m.extractor.Detect(ctx, image, opts)
		if err == nil {
			if len(items) == 0 {
				return nil, apperrors.Invalid("no items detected in image")
			}
			item := items[0]
			if len(items) > 1 {
				slog.Info("Multiple items detected, keeping first", "image_id", rec.ID, "count", len(items))
			}
			return &models.ExtractionResult{
				ExtractedAt: time.Now(),
				Provider:    session.Settings.Provider,
				Model:       session.Settings.Model,
				Fields:      item.Fields,
				Confidence:  item.Confidence,
				RawResponse: item.Raw,
			}, nil
		}

		lastErr = err
		if !apperrors.Retryable(err) {
			return nil, err
		}
		if rec.Attempts >= m.cfg.MaxAttempts {
			break
		}

		backoff := m.cfg.BackoffBase << (rec.Attempts - 1)
		slog.Info("Retrying extraction", "image_id", rec.ID, "attempt", rec.Attempts, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil, apperrors.Unavailable("extraction cancelled: " + ctx.Err().Error())
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

// transition persists an image status change and recomputes the owning
// session's aggregate.
func (m *Manager) transition(ctx context.Context, rec *models.ImageRecord, status models.ImageStatus, lastError string) error {
	rec.Status = status
	rec.LastError = lastError
	rec.UpdatedAt = time.Now()
	if err := m.store.SaveImage(ctx, rec); err != nil {
		return err
	}
	return m.recompute(ctx, rec.SessionID)
}

// EditResult applies user edits to the extracted fields of a completed
// or failed image and records the edit.
func (m *Manager) EditResult(ctx context.Context, imageID string, changes map[string]string) (*models.ImageRecord, error) {
	rec, err := m.store.GetImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.ImageCompleted && rec.Status != models.ImageFailed {
		return nil, apperrors.Conflict(fmt.Sprintf("image %s is %s, not editable", imageID, rec.Status))
	}
	if rec.Result == nil {
		return nil, apperrors.Invalid("image has no extraction result to edit")
	}
	if len(changes) == 0 {
		return nil, apperrors.Invalid("no field changes provided")
	}

	changed := make([]string, 0, len(changes))
	for field, value := range changes {
		if err := applyFieldChange(&rec.Result.Fields, field, value); err != nil {
			return nil, err
		}
		changed = append(changed, field)
	}

	now := time.Now()
	rec.Result.Edit.Edited = true
	rec.Result.Edit.EditedAt = &now
	rec.Result.Edit.ChangedFields = append(rec.Result.Edit.ChangedFields, changed...)
	rec.UpdatedAt = now

	if err := m.store.SaveImage(ctx, rec); err != nil {
		return nil, err
	}
	slog.Info("Extraction result edited", "image_id", imageID, "fields", changed)
	return rec, nil
}

func applyFieldChange(fields *models.ItemFields, field, value string) error {
	switch field {
	case "name":
		fields.Name = value
	case "manufacturer":
		fields.Manufacturer = value
	case "model_number":
		fields.ModelNumber = value
	case "serial_number":
		fields.SerialNumber = value
	case "quantity":
		n := 0
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
			return apperrors.Invalid("quantity must be a positive integer")
		}
		fields.Quantity = n
	case "mac_address":
		fields.MACAddress = value
	case "fcc_id":
		fields.FCCID = value
	case "notes":
		fields.Notes = value
	default:
		return apperrors.Invalid("unknown field: " + field)
	}
	return nil
}

// PushSession pushes every completed image's item to the catalog.
// Push is idempotent per record: an already-pushed image is skipped,
// never re-submitted, so retrying a push cannot create duplicates.
func (m *Manager) PushSession(ctx context.Context, sessionID string) (*models.CaptureSession, error) {
	state := m.state(sessionID)
	state.mu.Lock()
	if state.pushing {
		state.mu.Unlock()
		return nil, apperrors.Conflict("push already in progress for session " + sessionID)
	}
	state.pushing = true
	state.mu.Unlock()
	endPush := func() {
		state.mu.Lock()
		state.pushing = false
		state.mu.Unlock()
	}
	defer endPush()

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionAbandoned {
		return nil, apperrors.Conflict("session is abandoned")
	}

	now := time.Now()
	session.PushAttemptedAt = &now
	session.Status = models.SessionPushing
	session.UpdatedAt = now
	if err := m.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	records, err := m.store.ListImages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if rec.Status != models.ImageCompleted || rec.Result == nil {
			continue
		}
		if err := m.pushRecord(ctx, session, rec); err != nil {
			slog.Warn("Image push failed", "image_id", rec.ID, "err", err)
		}
	}

	// Clear the pushing flag before the final recompute so the derived
	// status reflects the push outcome, not the in-progress state.
	endPush()
	if err := m.recompute(ctx, sessionID); err != nil {
		return nil, err
	}
	return m.store.GetSession(ctx, sessionID)
}

func (m *Manager) pushRecord(ctx context.Context, session *models.CaptureSession, rec *models.ImageRecord) error {
	fields := rec.Result.Fields
	input := catalog.ItemInput{
		Name:         fields.Name,
		Description:  rec.Result.Enrichment.Description,
		Quantity:     fields.Quantity,
		LocationID:   session.Target.LocationID,
		Manufacturer: fields.Manufacturer,
		ModelNumber:  fields.ModelNumber,
		SerialNumber: fields.SerialNumber,
		Notes:        buildNotes(fields),
	}

	itemID, err := m.pusher.CreateItem(ctx, input)
	if err != nil {
		if apperrors.Is(err, apperrors.KindInvalid) {
			// The catalog rejected the item permanently; no point retrying.
			return m.transition(ctx, rec, models.ImageFailed, err.Error())
		}
		// Transient: leave the record completed so a later push retries it.
		return err
	}

	rec.CatalogItemID = itemID
	if session.Settings.AttachPhoto {
		if data, readErr := os.ReadFile(rec.ImagePath); readErr == nil {
			if upErr := m.pusher.UploadAttachment(ctx, itemID, filepath.Base(rec.ImagePath), data); upErr != nil {
				slog.Warn("Photo attachment failed", "image_id", rec.ID, "item_id", itemID, "err", upErr)
			}
		}
	}

	slog.Info("Item pushed to catalog", "image_id", rec.ID, "item_id", itemID)
	return m.transition(ctx, rec, models.ImagePushed, "")
}

func buildNotes(fields models.ItemFields) string {
	notes := fields.Notes
	if fields.MACAddress != "" {
		notes += "\nMAC: " + fields.MACAddress
	}
	if fields.FCCID != "" {
		notes += "\nFCC ID: " + fields.FCCID
	}
	return notes
}

// AbandonSession marks a session abandoned. The status is terminal; no
// further mutation is accepted.
func (m *Manager) AbandonSession(ctx context.Context, sessionID string) (*models.CaptureSession, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionAbandoned {
		return nil, apperrors.Conflict("session already abandoned")
	}

	session.Status = models.SessionAbandoned
	session.UpdatedAt = time.Now()
	if err := m.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	slog.Info("Session abandoned", "session_id", sessionID)
	return session, nil
}

// DeleteSession removes a session, its image records and the stored
// image files. Refused while a push is in flight.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	state := m.state(sessionID)
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.pushing {
		return apperrors.Conflict("push in progress")
	}

	records, err := m.store.ListImages(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	for _, rec := range records {
		if rec.ImagePath == "" {
			continue
		}
		if err := os.Remove(rec.ImagePath); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove image file", "image_id", rec.ID, "path", rec.ImagePath, "err", err)
		}
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	slog.Info("Session deleted", "session_id", sessionID)
	return nil
}

// recompute recalculates a session's stats and aggregate status from
// its image records. Serialized per session.
func (m *Manager) recompute(ctx context.Context, sessionID string) error {
	state := m.state(sessionID)
	state.mu.Lock()
	defer state.mu.Unlock()

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status == models.SessionAbandoned {
		return nil
	}

	records, err := m.store.ListImages(ctx, sessionID)
	if err != nil {
		return err
	}

	session.Stats = ComputeStats(records)
	session.Status = DeriveStatus(session.Stats, session.PushAttemptedAt != nil, state.pushing, false)
	session.UpdatedAt = time.Now()
	return m.store.SaveSession(ctx, session)
}

// Recover reconciles aggregate statuses on startup. The store has
// already reset interrupted images to pending; sessions left in
// pushing by a crash get their status rederived here.
func (m *Manager) Recover(ctx context.Context) error {
	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return err
	}
	for _, session := range sessions {
		if session.Status == models.SessionAbandoned {
			continue
		}
		if err := m.recompute(ctx, session.ID); err != nil {
			slog.Warn("Failed to recompute session on recovery", "session_id", session.ID, "err", err)
		}
	}
	return nil
}
