package events

import (
	"time"

	"github.com/zsprackett/usage-bar/internal/config"
	"github.com/zsprackett/usage-bar/internal/render"
	"github.com/zsprackett/usage-bar/internal/usage"
	"github.com/zsprackett/usage-bar/internal/usagepoller"
)

const (
	TypeSnapshot = "snapshot"
	TypeUsage    = "usage"
	TypeSettings = "settings"
)

// Event is a real-time update pushed to web clients.
type Event struct {
	Type     string           `json:"type"`
	PollID   string           `json:"poll_id,omitempty"`
	At       time.Time        `json:"at"`
	State    usage.State      `json:"state"`
	Render   render.Spec      `json:"render"`
	Settings *config.Settings `json:"settings,omitempty"`
}

// New builds an event of type typ for the given state rendered in mode.
func New(typ string, state usage.State, mode config.DisplayMode) Event {
	return Event{
		Type:   typ,
		At:     time.Now(),
		State:  state,
		Render: render.Decide(state, mode),
	}
}

// FromPoll builds the usage event for one poll outcome.
func FromPoll(ev usagepoller.Event, mode config.DisplayMode) Event {
	e := New(TypeUsage, ev.State(), mode)
	e.PollID = ev.PollID
	e.At = ev.At
	return e
}

// Broadcaster sends events to connected web clients.
// A nil Broadcaster is safe to use -- Broadcast becomes a no-op.
type Broadcaster interface {
	Broadcast(e Event)
}

// Forward returns a usagepoller.Handler that renders each poll with the
// store's current display mode and hands it to b. A nil b drops events.
func Forward(b Broadcaster, store *config.Store) usagepoller.Handler {
	return func(ev usagepoller.Event) {
		if b == nil {
			return
		}
		b.Broadcast(FromPoll(ev, store.Settings().DisplayMode))
	}
}
