// Package ingest is the entry point for raw notifications: it filters by
// originator, extracts the receipt, forwards it and records the outcome.
package ingest

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fundsync-dev/fundsync/internal/extract"
	"github.com/fundsync-dev/fundsync/internal/forward"
	"github.com/fundsync-dev/fundsync/internal/history"
	"github.com/fundsync-dev/fundsync/internal/id"
	"github.com/fundsync-dev/fundsync/internal/model"
	"github.com/fundsync-dev/fundsync/internal/sources"
)

// Forwarder is the part of forward.Forwarder the pipeline drives.
type Forwarder interface {
	IsAuthenticated() bool
	SubmitPayment(p model.Payment, message string) bool
	SetCallback(cb forward.Callback)
}

// Store is the part of history.Store the pipeline drives.
type Store interface {
	Append(ev model.PaymentEvent) error
	Snapshot() history.Snapshot
}

// Subscriber is notified of every event added to the history. It is called
// from whichever goroutine recorded the event.
type Subscriber func(model.PaymentEvent)

// Result says what Ingest did with a notification.
type Result int

const (
	// Ignored means the originator is not an allowed payment app.
	Ignored Result = iota
	// NoMatch means the text is not a receipt with an amount.
	NoMatch
	// Forwarding means a submission started; its outcome is recorded when it
	// completes.
	Forwarding
	// Recorded means the receipt was stored without a forward.
	Recorded
)

func (r Result) String() string {
	switch r {
	case Ignored:
		return "ignored"
	case NoMatch:
		return "no-match"
	case Forwarding:
		return "forwarding"
	case Recorded:
		return "recorded"
	default:
		return "unknown"
	}
}

// Config wires a Pipeline. Store is required; the rest have defaults. A nil
// Forwarder records every receipt locally.
type Config struct {
	Sources   *sources.Registry
	Extractor *extract.Extractor
	Forwarder Forwarder
	Store     Store
	Clock     *id.Clock
	Message   string
	Logger    *slog.Logger
}

// Pipeline connects the extractor, forwarder and history.
type Pipeline struct {
	sources   *sources.Registry
	extractor *extract.Extractor
	forwarder Forwarder
	store     Store
	clock     *id.Clock
	message   string
	logger    *slog.Logger

	// recordMu keeps stamp order equal to append order.
	recordMu sync.Mutex

	mu      sync.RWMutex
	subs    map[int]Subscriber
	nextSub int
}

// New creates a Pipeline and registers it as the forwarder's callback.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		sources:   cfg.Sources,
		extractor: cfg.Extractor,
		forwarder: cfg.Forwarder,
		store:     cfg.Store,
		clock:     cfg.Clock,
		message:   cfg.Message,
		logger:    cfg.Logger,
		subs:      make(map[int]Subscriber),
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.sources == nil {
		p.sources = sources.DefaultRegistry()
	}
	if p.extractor == nil {
		p.extractor = extract.New(p.logger)
	}
	if p.clock == nil {
		p.clock = id.NewClock()
	}
	if p.message == "" {
		p.message = forward.DefaultMessage
	}

	// Keep event keys unique across restarts.
	if events := p.store.Snapshot().Events; len(events) > 0 {
		p.clock.Observe(events[0].Timestamp)
	}

	if p.forwarder != nil {
		p.forwarder.SetCallback(func(o model.Outcome) { p.record(o) })
	}
	return p
}

// Ingest handles one notification from originator.
func (p *Pipeline) Ingest(originator, text string) Result {
	src, ok := p.sources.Get(originator)
	if !ok {
		return Ignored
	}

	payment, ok := p.extractor.Extract(text)
	if !ok {
		p.logger.Debug("notification is not a receipt", "source", src.Name)
		return NoMatch
	}
	p.logger.Info("payment received", "source", src.Name, "amount", payment.FormattedAmount(), "sender", payment.Sender)

	if p.forwarder != nil && p.forwarder.IsAuthenticated() {
		if p.forwarder.SubmitPayment(payment, p.message) {
			return Forwarding
		}
		// Credentials went away or the forwarder shut down in between.
	} else {
		p.logger.Warn("not authenticated, recording payment without forwarding")
	}

	p.record(model.Local(payment))
	return Recorded
}

// AddManual records a payment entered by hand. It is not forwarded. A blank
// sender is recorded as model.UnknownSender.
func (p *Pipeline) AddManual(amount decimal.Decimal, sender string) model.PaymentEvent {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		sender = model.UnknownSender
	}
	return p.record(model.Local(model.Payment{Amount: amount, Sender: sender}))
}

// Subscribe registers s for every recorded event. The returned function
// removes the registration.
func (p *Pipeline) Subscribe(s Subscriber) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := p.nextSub
	p.nextSub++
	p.subs[key] = s

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subs, key)
		})
	}
}

func (p *Pipeline) record(o model.Outcome) model.PaymentEvent {
	p.recordMu.Lock()
	ev := o.Event(p.clock.Next())
	err := p.store.Append(ev)
	p.recordMu.Unlock()
	if err != nil {
		p.logger.Error("failed to persist event", "error", err)
	}

	p.mu.RLock()
	subs := make([]Subscriber, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.RUnlock()

	for _, s := range subs {
		s(ev)
	}
	return ev
}
