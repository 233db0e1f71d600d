// Package notifyclient keeps a local view of a user's notifications in sync
// with the server. Pushes and polls both write into the same Projection and
// merge by notification id, so their order never matters.
package notifyclient

import (
	"bytes"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultWindow = 20
	// seen ids are remembered well past the window so a redelivered push
	// of a trimmed notification is not counted twice.
	seenFactor = 5
)

// Notification is the wire form served by the notification API.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	EventID   uuid.UUID  `json:"eventId"`
	Type      string     `json:"type"`
	Severity  string     `json:"severity"`
	Icon      string     `json:"icon"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Link      *string    `json:"link,omitempty"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

// Page is the response of the list endpoint.
type Page struct {
	Items       []Notification `json:"items"`
	UnreadCount int            `json:"unreadCount"`
}

// Snapshot is a copy of the projection state.
type Snapshot struct {
	Items       []Notification
	UnreadCount int
}

// Projection is a capped, newest-first window of notifications plus the
// unread count. It is safe for concurrent use.
type Projection struct {
	mu     sync.Mutex
	window int
	items  []Notification
	unread int

	seen     map[uuid.UUID]struct{}
	seenFIFO []uuid.UUID
}

// NewProjection creates a projection keeping at most window items.
func NewProjection(window int) *Projection {
	if window <= 0 {
		window = DefaultWindow
	}

	return &Projection{
		window: window,
		seen:   make(map[uuid.UUID]struct{}),
	}
}

// ApplyPush merges a pushed notification. A notification not seen before
// counts as unread unless it already arrives read.
func (p *Projection) ApplyPush(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.seen[n.ID]; !ok && !n.Read {
		p.unread++
	}
	p.merge(n)
	p.trim()
}

// ApplyPage merges a polled page. The server count is authoritative and
// replaces the local one.
func (p *Projection) ApplyPage(page Page) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, n := range page.Items {
		p.merge(n)
	}
	p.unread = max(page.UnreadCount, 0)
	p.trim()
}

// SetUnreadCount replaces the unread count with the server's.
func (p *Projection) SetUnreadCount(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unread = max(n, 0)
}

// MarkRead flags id as read. Marking an already read or unknown
// notification changes nothing.
func (p *Projection) MarkRead(id uuid.UUID, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := slices.IndexFunc(p.items, func(n Notification) bool { return n.ID == id })
	if i < 0 || p.items[i].Read {
		return
	}

	p.items[i].Read = true
	p.items[i].ReadAt = &at
	p.unread = max(p.unread-1, 0)
}

// MarkAllRead flags every item read and zeroes the count.
func (p *Projection) MarkAllRead(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.items {
		if !p.items[i].Read {
			p.items[i].Read = true
			p.items[i].ReadAt = &at
		}
	}
	p.unread = 0
}

// Snapshot returns a copy of the current state.
func (p *Projection) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Snapshot{
		Items:       slices.Clone(p.items),
		UnreadCount: p.unread,
	}
}

// merge inserts or updates n. Read is sticky: a stale unread copy never
// flips a read item back.
func (p *Projection) merge(n Notification) {
	p.remember(n.ID)

	i := slices.IndexFunc(p.items, func(existing Notification) bool { return existing.ID == n.ID })
	if i < 0 {
		p.items = append(p.items, n)
		return
	}

	if p.items[i].Read && !n.Read {
		n.Read = true
		n.ReadAt = p.items[i].ReadAt
	}
	p.items[i] = n
}

func (p *Projection) trim() {
	slices.SortStableFunc(p.items, func(a, b Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return bytes.Compare(b.ID[:], a.ID[:])
	})

	if len(p.items) > p.window {
		p.items = p.items[:p.window]
	}
}

func (p *Projection) remember(id uuid.UUID) {
	if _, ok := p.seen[id]; ok {
		return
	}

	p.seen[id] = struct{}{}
	p.seenFIFO = append(p.seenFIFO, id)

	if limit := p.window * seenFactor; len(p.seenFIFO) > limit {
		drop := len(p.seenFIFO) - limit
		for _, old := range p.seenFIFO[:drop] {
			delete(p.seen, old)
		}
		p.seenFIFO = slices.Delete(p.seenFIFO, 0, drop)
	}
}
