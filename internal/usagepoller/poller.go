package usagepoller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zsprackett/usage-bar/internal/usage"
)

// State is the scheduler's lifecycle state.
type State int

const (
	Idle State = iota
	Waiting
	Polling
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Polling:
		return "polling"
	default:
		return "idle"
	}
}

type EventKind string

const (
	EventUpdated EventKind = "updated"
	EventFailed  EventKind = "failed"
)

// Event is the outcome of one poll. Exactly one of Record (Updated) or Err
// (Failed) is meaningful.
type Event struct {
	Kind     EventKind
	Record   usage.Record
	Err      *usage.Error
	PollID   string
	At       time.Time
	Duration time.Duration
	Manual   bool
}

// State converts the event into the current-usage variant it establishes.
func (e Event) State() usage.State {
	if e.Kind == EventFailed {
		return usage.StateErr(e.Err)
	}
	return usage.StateOK(e.Record)
}

// Handler receives events on the poller's loop goroutine, one at a time.
// A Handler must not call Stop.
type Handler func(Event)

// FetchFunc performs one invoke-and-parse cycle.
type FetchFunc func(ctx context.Context) (usage.Record, error)

type subscription struct {
	id int
	fn Handler
}

type Poller struct {
	fetch  FetchFunc
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	gen      uint64
	current  usage.State
	interval time.Duration
	subs     []subscription
	nextID   int

	stop       chan struct{}
	refreshCh  chan struct{}
	intervalCh chan time.Duration
	wg         sync.WaitGroup
}

func New(fetch FetchFunc, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		fetch:    fetch,
		logger:   logger,
		current:  usage.StateUnknown(),
		interval: interval,
	}
}

// Subscribe registers h for future events and returns a function that removes it.
func (p *Poller) Subscribe(h Handler) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs = append(p.subs, subscription{id: id, fn: h})
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.subs {
			if s.id == id {
				p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

// Current returns the last delivered outcome, or the unknown state.
func (p *Poller) Current() usage.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Poller) Status() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// Start arms the timer and polls immediately. Starting a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Idle {
		return
	}
	p.gen++
	p.state = Waiting
	p.stop = make(chan struct{})
	p.refreshCh = make(chan struct{}, 1)
	p.intervalCh = make(chan time.Duration, 1)

	p.wg.Add(1)
	go p.run(p.gen, p.interval, p.stop, p.refreshCh, p.intervalCh)
}

// Stop cancels the timer and any in-flight poll. No Handler runs after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state == Idle {
		p.mu.Unlock()
		return
	}
	p.state = Idle
	close(p.stop)
	p.mu.Unlock()
	p.wg.Wait()
}

// Refresh requests an immediate poll and pushes the next timer fire one
// full interval out. It returns false when the request was coalesced into
// a poll already in flight, or the poller is not running.
func (p *Poller) Refresh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Waiting {
		return false
	}
	select {
	case p.refreshCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// SetInterval changes the polling period. A running timer is re-armed;
// the current state is kept.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if d == p.interval {
		return
	}
	p.interval = d
	if p.state == Idle {
		return
	}
	select {
	case <-p.intervalCh:
	default:
	}
	p.intervalCh <- d
}

func (p *Poller) run(gen uint64, interval time.Duration, stop <-chan struct{}, refresh <-chan struct{}, intervals <-chan time.Duration) {
	defer p.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	results := make(chan Event, 1)
	polling := false
	begin := func(manual bool) {
		if polling {
			return
		}
		if !p.setState(gen, Polling) {
			return
		}
		polling = true
		go p.poll(ctx, manual, results)
	}

	begin(false)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			begin(false)
		case <-refresh:
			if !polling {
				ticker.Reset(interval)
				begin(true)
			}
		case d := <-intervals:
			interval = d
			ticker.Reset(interval)
		case ev := <-results:
			polling = false
			select {
			case <-stop:
				return
			default:
			}
			p.deliver(gen, ev)
		}
	}
}

func (p *Poller) setState(gen uint64, s State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || p.state == Idle {
		return false
	}
	p.state = s
	return true
}

func (p *Poller) poll(ctx context.Context, manual bool, results chan<- Event) {
	ev := Event{PollID: uuid.NewString(), Manual: manual}
	start := time.Now()
	rec, err := p.fetch(ctx)
	ev.At = time.Now()
	ev.Duration = ev.At.Sub(start)
	if err != nil {
		ev.Kind = EventFailed
		ev.Err = usage.AsError(err)
	} else {
		ev.Kind = EventUpdated
		ev.Record = rec
	}
	results <- ev
}

func (p *Poller) deliver(gen uint64, ev Event) {
	p.mu.Lock()
	if gen != p.gen || p.state == Idle {
		p.mu.Unlock()
		return
	}
	p.current = ev.State()
	p.state = Waiting
	subs := make([]subscription, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	if ev.Kind == EventFailed {
		p.logger.Warn("usage poll failed",
			"poll", ev.PollID,
			"kind", string(ev.Err.Kind),
			"err", ev.Err.Error(),
			"duration", ev.Duration,
		)
	} else {
		p.logger.Debug("usage poll ok",
			"poll", ev.PollID,
			"session", ev.Record.Session.String(),
			"weekly", ev.Record.Weekly.String(),
			"duration", ev.Duration,
		)
	}

	for _, s := range subs {
		s.fn(ev)
	}
}
