// Package queue holds the in-memory work queue and its state machine.
//
// The Manager is the sole owner and mutator of queue items. Callers receive
// deep copies; every status change goes through a transition-validated Mark
// method. Preview and output artifacts live in the store, and the manager
// releases their keys exactly once when an item is removed or reset.
package queue

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corvid/pixmill/internal/domain"
	"github.com/corvid/pixmill/internal/metrics"
	"github.com/corvid/pixmill/internal/pipeline"
	"github.com/corvid/pixmill/internal/storage"
)

// =============================================================================
// Manager
// =============================================================================

// Manager is the in-memory queue of conversion work.
type Manager struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.QueueItem
	order []uuid.UUID // insertion order, parallel to items

	store    storage.Store
	previews pipeline.PreviewRenderer
	logger   *slog.Logger
}

// NewManager creates an empty queue manager.
func NewManager(store storage.Store, previews pipeline.PreviewRenderer, logger *slog.Logger) *Manager {
	return &Manager{
		items:    make(map[uuid.UUID]*domain.QueueItem),
		order:    make([]uuid.UUID, 0),
		store:    store,
		previews: previews,
		logger:   logger,
	}
}

// =============================================================================
// Intake and Removal
// =============================================================================

// Enqueue adds a new item to the queue in the Idle state.
//
// The content type is detected from the filename and data when the caller
// does not supply one; non-image content is rejected with EINVALID. Preview
// rendering is best-effort: a failure leaves PreviewKey empty and the item
// still enters the queue.
func (m *Manager) Enqueue(ctx context.Context, data []byte, name, contentType string) (domain.QueueItem, error) {
	const op = "queue.enqueue"

	if len(data) == 0 {
		return domain.QueueItem{}, domain.Invalid(op, "source data is empty")
	}

	detected := storage.DetectContentType(name, data, contentType)
	if !storage.IsAllowedImageType(detected) {
		return domain.QueueItem{}, domain.Errorf(domain.EINVALID, op,
			"unsupported content type %q for %q", detected, name)
	}

	item := &domain.QueueItem{
		ID:           uuid.New(),
		SourceBytes:  data,
		OriginalName: name,
		OriginalSize: int64(len(data)),
		MIMEType:     detected,
		Status:       domain.StatusIdle,
		CreatedAt:    time.Now(),
	}

	if previewBytes, _, _, err := m.previews.RenderPreview(bytes.NewReader(data)); err != nil {
		m.logger.Warn("preview rendering failed",
			"item_id", item.ID,
			"name", name,
			"error", err,
		)
	} else {
		key := storage.PreviewKey(item.ID)
		if err := m.store.Put(ctx, key, bytes.NewReader(previewBytes), storage.PutOptions{
			ContentType: "image/jpeg",
		}); err != nil {
			m.logger.Warn("preview upload failed", "item_id", item.ID, "error", err)
		} else {
			item.PreviewKey = key
		}
	}

	m.mu.Lock()
	m.items[item.ID] = item
	m.order = append(m.order, item.ID)
	depth := len(m.items)
	out := item.Clone()
	m.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))

	m.logger.Debug("enqueued item",
		"item_id", item.ID,
		"name", name,
		"content_type", detected,
		"size", item.OriginalSize,
	)

	return out, nil
}

// Dequeue removes an item from the queue and releases its store keys.
// Removing an unknown ID is a no-op.
func (m *Manager) Dequeue(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	item, ok := m.items[id]
	if ok {
		delete(m.items, id)
		for i, oid := range m.order {
			if oid == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	depth := len(m.items)
	m.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))

	if !ok {
		return nil
	}

	m.releaseKeys(ctx, item)
	m.logger.Debug("dequeued item", "item_id", id)

	return nil
}

// Clear removes every item from the queue, releasing all store keys.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	removed := make([]*domain.QueueItem, 0, len(m.items))
	for _, id := range m.order {
		removed = append(removed, m.items[id])
	}
	m.items = make(map[uuid.UUID]*domain.QueueItem)
	m.order = m.order[:0]
	m.mu.Unlock()

	metrics.QueueDepth.Set(0)

	for _, item := range removed {
		m.releaseKeys(ctx, item)
	}

	m.logger.Debug("cleared queue", "removed", len(removed))
}

// =============================================================================
// State Transitions
// =============================================================================

// MarkProcessing moves an item into the Processing state.
// Valid from Idle and Error; a retry clears the previous error message.
func (m *Manager) MarkProcessing(id uuid.UUID) error {
	const op = "queue.mark_processing"

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return domain.NotFound(op, "queue item", id.String())
	}
	if !item.Status.CanTransitionTo(domain.StatusProcessing) {
		return domain.Conflict(op, transitionMessage(item.Status, domain.StatusProcessing))
	}

	item.Status = domain.StatusProcessing
	item.ErrorMessage = ""

	return nil
}

// MarkComplete moves a Processing item to Complete and attaches its result.
func (m *Manager) MarkComplete(id uuid.UUID, result *domain.ProcessedResult) error {
	const op = "queue.mark_complete"

	if result == nil {
		return domain.Invalid(op, "result is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return domain.NotFound(op, "queue item", id.String())
	}
	if !item.Status.CanTransitionTo(domain.StatusComplete) {
		return domain.Conflict(op, transitionMessage(item.Status, domain.StatusComplete))
	}

	item.Status = domain.StatusComplete
	item.Result = result
	item.ErrorMessage = ""

	return nil
}

// MarkError moves a Processing item to Error with a message for display.
func (m *Manager) MarkError(id uuid.UUID, message string) error {
	const op = "queue.mark_error"

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return domain.NotFound(op, "queue item", id.String())
	}
	if !item.Status.CanTransitionTo(domain.StatusError) {
		return domain.Conflict(op, transitionMessage(item.Status, domain.StatusError))
	}

	item.Status = domain.StatusError
	item.ErrorMessage = message
	item.Result = nil

	return nil
}

// Requeue reverts a Processing item to Idle. Used when a batch run is
// canceled before the item's conversion started.
func (m *Manager) Requeue(id uuid.UUID) error {
	const op = "queue.requeue"

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return domain.NotFound(op, "queue item", id.String())
	}
	if item.Status != domain.StatusProcessing {
		return domain.Conflict(op, transitionMessage(item.Status, domain.StatusIdle))
	}

	item.Status = domain.StatusIdle

	return nil
}

// Reset returns a Complete item to Idle so it can be processed again.
// The previous output artifact is released.
func (m *Manager) Reset(ctx context.Context, id uuid.UUID) error {
	const op = "queue.reset"

	m.mu.Lock()
	item, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return domain.NotFound(op, "queue item", id.String())
	}
	if item.Status != domain.StatusComplete || !item.Status.CanTransitionTo(domain.StatusIdle) {
		from := item.Status
		m.mu.Unlock()
		return domain.Conflict(op, transitionMessage(from, domain.StatusIdle))
	}

	var outputKey string
	if item.Result != nil {
		outputKey = item.Result.OutputKey
	}
	item.Status = domain.StatusIdle
	item.Result = nil
	item.ErrorMessage = ""
	m.mu.Unlock()

	if outputKey != "" {
		if err := m.store.Delete(ctx, outputKey); err != nil {
			m.logger.Warn("failed to release output artifact", "item_id", id, "key", outputKey, "error", err)
		}
	}

	m.logger.Debug("reset item", "item_id", id)

	return nil
}

// =============================================================================
// Queries
// =============================================================================

// Item returns a copy of the item with the given ID.
func (m *Manager) Item(id uuid.UUID) (domain.QueueItem, error) {
	const op = "queue.item"

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return domain.QueueItem{}, domain.NotFound(op, "queue item", id.String())
	}

	return item.Clone(), nil
}

// Items returns copies of all items in insertion order.
func (m *Manager) Items() []domain.QueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.QueueItem, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id].Clone())
	}
	return out
}

// Len returns the number of items in the queue.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// SelectPending returns copies of the items eligible for a batch run, in
// insertion order. Idle and Error items are pending; Complete items stay
// out until explicitly reset.
func (m *Manager) SelectPending() []domain.QueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.QueueItem, 0, len(m.order))
	for _, id := range m.order {
		if m.items[id].Status.Pending() {
			out = append(out, m.items[id].Clone())
		}
	}
	return out
}

// CompletedEntries returns copies of all Complete items in insertion order.
// These are the entries eligible for archive packaging.
func (m *Manager) CompletedEntries() []domain.QueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.QueueItem, 0, len(m.order))
	for _, id := range m.order {
		if m.items[id].Status == domain.StatusComplete {
			out = append(out, m.items[id].Clone())
		}
	}
	return out
}

// =============================================================================
// Internal Helpers
// =============================================================================

// releaseKeys deletes an item's preview and output artifacts from the store.
// Delete is idempotent, and the keys are cleared so a second release attempt
// has nothing to act on.
func (m *Manager) releaseKeys(ctx context.Context, item *domain.QueueItem) {
	if item.PreviewKey != "" {
		if err := m.store.Delete(ctx, item.PreviewKey); err != nil {
			m.logger.Warn("failed to release preview artifact", "item_id", item.ID, "key", item.PreviewKey, "error", err)
		}
		item.PreviewKey = ""
	}
	if item.Result != nil && item.Result.OutputKey != "" {
		if err := m.store.Delete(ctx, item.Result.OutputKey); err != nil {
			m.logger.Warn("failed to release output artifact", "item_id", item.ID, "key", item.Result.OutputKey, "error", err)
		}
		item.Result.OutputKey = ""
	}
}

func transitionMessage(from, to domain.Status) string {
	return "cannot transition item from " + string(from) + " to " + string(to)
}
