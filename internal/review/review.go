// Package review holds the manual review queue: content the engine could
// not accept, fix, or regenerate waits here for a human decision.
package review

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when no queue item exists for the content id.
var ErrNotFound = errors.New("review item not found")

// Status is the workflow state of a queued item.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known workflow state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Item is one piece of content awaiting manual review. Attempts counts how
// many times the engine escalated the same content id.
type Item struct {
	ContentID  string    `json:"content_id"`
	VerdictID  string    `json:"verdict_id"`
	Content    string    `json:"content"`
	Reason     string    `json:"reason"`
	Score      float64   `json:"score"`
	Attempts   int       `json:"attempts"`
	Status     Status    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Queue is the review queue contract. Enqueue is idempotent per content id:
// re-escalating queued content bumps its attempt counter and refreshes the
// verdict details instead of creating a duplicate entry.
type Queue interface {
	Enqueue(ctx context.Context, item Item) (*Item, error)
	// UpdateStatus moves an item to a new workflow state. Non-empty notes
	// replace the item's reviewer notes; empty notes leave them untouched.
	UpdateStatus(ctx context.Context, contentID string, status Status, notes string) error
	ListPending(ctx context.Context) ([]Item, error)
	Remove(ctx context.Context, contentID string) error
}

// MemoryQueue is an in-process Queue for tests and single-run CLI use.
type MemoryQueue struct {
	mu    sync.Mutex
	items map[string]*Item
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{items: make(map[string]*Item)}
}

// Enqueue adds the item, or bumps the attempt counter of an existing entry
// for the same content id. A re-escalated item returns to pending regardless
// of its previous status.
func (q *MemoryQueue) Enqueue(ctx context.Context, item Item) (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := q.items[item.ContentID]; ok {
		existing.Attempts++
		existing.VerdictID = item.VerdictID
		existing.Content = item.Content
		existing.Reason = item.Reason
		existing.Score = item.Score
		existing.Status = StatusPending
		existing.UpdatedAt = now
		copied := *existing
		return &copied, nil
	}

	item.Attempts = 1
	item.Status = StatusPending
	item.EnqueuedAt = now
	item.UpdatedAt = now
	q.items[item.ContentID] = &item
	copied := item
	return &copied, nil
}

// UpdateStatus moves an item to a new workflow state.
func (q *MemoryQueue) UpdateStatus(ctx context.Context, contentID string, status Status, notes string) error {
	if !status.Valid() {
		return errors.New("unknown review status: " + string(status))
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[contentID]
	if !ok {
		return ErrNotFound
	}
	item.Status = status
	if notes != "" {
		item.Notes = notes
	}
	item.UpdatedAt = time.Now().UTC()
	return nil
}

// ListPending returns pending items oldest first.
func (q *MemoryQueue) ListPending(ctx context.Context) ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []Item
	for _, item := range q.items {
		if item.Status == StatusPending {
			pending = append(pending, *item)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].EnqueuedAt.Before(pending[j].EnqueuedAt)
	})
	return pending, nil
}

// Remove deletes an item outright.
func (q *MemoryQueue) Remove(ctx context.Context, contentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.items[contentID]; !ok {
		return ErrNotFound
	}
	delete(q.items, contentID)
	return nil
}
