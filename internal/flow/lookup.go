package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gsPatrick/api-camilamoura/internal/board"
	"github.com/gsPatrick/api-camilamoura/internal/models"
)

const maxRecentTickets = 1000

type recentEntry struct {
	ticket    models.Ticket
	expiresAt time.Time
}

// recentTickets remembers tickets created here so that follow-up messages
// reach them before the board search index catches up.
type recentTickets struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]recentEntry
}

func newRecentTickets(ttl time.Duration, now func() time.Time) *recentTickets {
	return &recentTickets{ttl: ttl, now: now, entries: make(map[string]recentEntry)}
}

func (r *recentTickets) get(phone string) (*models.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[phone]
	if !ok {
		return nil, false
	}
	if !r.now().Before(e.expiresAt) {
		delete(r.entries, phone)
		return nil, false
	}
	t := e.ticket
	return &t, true
}

func (r *recentTickets) put(phone string, t *models.Ticket) {
	if r.ttl <= 0 || t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if len(r.entries) >= maxRecentTickets {
		for k, e := range r.entries {
			if !now.Before(e.expiresAt) {
				delete(r.entries, k)
			}
		}
	}
	r.entries[phone] = recentEntry{ticket: *t, expiresAt: now.Add(r.ttl)}
}

// findTicket returns the client's open ticket, or nil. Search failures count as no match.
func (o *Orchestrator) findTicket(ctx context.Context, phone string) *models.Ticket {
	if t, ok := o.recent.get(phone); ok {
		return t
	}
	if o.board == nil {
		return nil
	}
	cards, err := o.board.Search(ctx, phone)
	if err != nil {
		slog.Warn("Orchestrator.findTicket: board search failed", "phone", phone, "error", err)
		return nil
	}
	return board.MatchPhone(phone, cards)
}
