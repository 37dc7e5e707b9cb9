package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

// DefaultEventTimeout bounds the processing of one inbound event.
const DefaultEventTimeout = 2 * time.Minute

// EventHandler processes one inbound event.
type EventHandler func(ctx context.Context, ev models.InboundEvent) error

// InboundLedger records transport message ids so redeliveries are dropped.
type InboundLedger interface {
	// RecordInbound returns true the first time messageID is seen.
	RecordInbound(messageID, phone string) (bool, error)
	MarkProcessed(messageID string) error
}

// Dispatcher feeds inbound events to a handler. Events for the same phone
// run one at a time in arrival order; distinct phones run concurrently.
type Dispatcher struct {
	handler EventHandler
	ledger  InboundLedger
	timeout time.Duration
	locks   *phoneLocks

	mu         sync.Mutex
	running    bool
	workCtx    context.Context
	workCancel context.CancelFunc
	loopCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil ledger disables redelivery dedup.
func NewDispatcher(handler EventHandler, ledger InboundLedger) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		ledger:  ledger,
		timeout: DefaultEventTimeout,
		locks:   newPhoneLocks(),
	}
}

// SetTimeout overrides the per-event processing timeout.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeout = timeout
}

// Start begins consuming events until the channel closes or Stop is called.
func (d *Dispatcher) Start(ctx context.Context, events <-chan models.InboundEvent) {
	d.mu.Lock()
	d.workCtx, d.workCancel = context.WithCancel(ctx)
	loopCtx, loopCancel := context.WithCancel(ctx)
	d.loopCancel = loopCancel
	d.running = true
	d.wg.Add(1)
	d.mu.Unlock()

	slog.Info("Dispatcher starting event processing")
	go func() {
		defer d.wg.Done()
		defer slog.Info("Dispatcher stopped event processing")
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					slog.Debug("Dispatcher events channel closed")
					return
				}
				if err := d.Submit(ev); err != nil {
					slog.Warn("Dispatcher dropped event", "phone", ev.Phone, "error", err)
				}
			case <-loopCtx.Done():
				return
			}
		}
	}()
}

// Submit schedules one event for processing.
func (d *Dispatcher) Submit(ev models.InboundEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return ErrNotStarted
	}
	d.wg.Add(1)
	// Take the phone's place in line before returning so arrival order holds.
	release := d.locks.enqueue(ev.Phone)
	go d.process(d.workCtx, d.timeout, ev, release)
	return nil
}

// Stop stops accepting events, waits for in-flight work and cancels the context.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.loopCancel()
	d.mu.Unlock()

	d.wg.Wait()
	d.workCancel()
	slog.Info("Dispatcher stopped")
}

func (d *Dispatcher) process(ctx context.Context, timeout time.Duration, ev models.InboundEvent, wait func() func()) {
	defer d.wg.Done()
	unlock := wait()
	defer unlock()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dispatcher recovered from handler panic", "phone", ev.Phone, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if d.ledger != nil {
		isNew, err := d.ledger.RecordInbound(ev.ID, ev.Phone)
		if err != nil {
			slog.Error("Dispatcher failed to record inbound event", "id", ev.ID, "error", err)
		} else if !isNew {
			slog.Info("Dispatcher dropping redelivered event", "id", ev.ID, "phone", ev.Phone)
			return
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := d.handler(ctx, ev); err != nil {
		slog.Error("Dispatcher handler failed", "phone", ev.Phone, "id", ev.ID, "error", err)
	}
	if d.ledger != nil {
		if err := d.ledger.MarkProcessed(ev.ID); err != nil {
			slog.Warn("Dispatcher failed to mark event processed", "id", ev.ID, "error", err)
		}
	}
}

// phoneLocks is a keyed FIFO lock. Each phone's entry is a chain of
// channels; a waiter blocks on its predecessor's channel.
type phoneLocks struct {
	mu    sync.Mutex
	tails map[string]*phoneTicket
}

type phoneTicket struct {
	done chan struct{}
}

func newPhoneLocks() *phoneLocks {
	return &phoneLocks{tails: make(map[string]*phoneTicket)}
}

// enqueue reserves the next slot for phone. The returned wait function blocks
// until the slot is reached and returns the unlock function.
func (p *phoneLocks) enqueue(phone string) func() func() {
	p.mu.Lock()
	prev := p.tails[phone]
	mine := &phoneTicket{done: make(chan struct{})}
	p.tails[phone] = mine
	p.mu.Unlock()

	return func() func() {
		if prev != nil {
			<-prev.done
		}
		return func() {
			p.mu.Lock()
			if p.tails[phone] == mine {
				delete(p.tails, phone)
			}
			p.mu.Unlock()
			close(mine.done)
		}
	}
}

// size reports how many phones currently hold or await the lock.
func (p *phoneLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tails)
}
