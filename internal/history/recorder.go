// Package history persists poll outcomes so the UI and web API can show trends.
package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zsprackett/usage-bar/internal/db"
	"github.com/zsprackett/usage-bar/internal/usagepoller"
)

// DefaultRetention is how long rows are kept before pruning.
const DefaultRetention = 30 * 24 * time.Hour

const pruneEvery = time.Hour

// Store is the subset of *db.DB the recorder writes to.
type Store interface {
	InsertSnapshot(*db.Snapshot) error
	InsertPollError(*db.PollError) error
	SetMeta(key, value string) error
	Touch() error
	Prune(before time.Time) (int64, error)
}

type Recorder struct {
	store     Store
	logger    *slog.Logger
	retention time.Duration

	mu        sync.Mutex
	lastPrune time.Time
	now       func() time.Time
}

func NewRecorder(store Store, retention time.Duration, logger *slog.Logger) *Recorder {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Recorder{
		store:     store,
		logger:    logger,
		retention: retention,
		now:       time.Now,
	}
}

// Handle is a usagepoller.Handler. Write failures are logged, never returned.
func (r *Recorder) Handle(ev usagepoller.Event) {
	var err error
	if ev.Kind == usagepoller.EventFailed {
		err = r.store.InsertPollError(&db.PollError{
			PollID:   ev.PollID,
			At:       ev.At,
			Duration: ev.Duration,
			Kind:     ev.Err.Kind,
			Message:  ev.Err.Message,
			ExitCode: ev.Err.ExitCode,
		})
	} else {
		err = r.store.InsertSnapshot(&db.Snapshot{
			PollID:   ev.PollID,
			At:       ev.At,
			Duration: ev.Duration,
			Record:   ev.Record,
		})
	}
	if err != nil {
		r.logger.Error("history: record poll", "poll", ev.PollID, "err", err)
		return
	}
	if err := r.store.SetMeta("last_poll_id", ev.PollID); err != nil {
		r.logger.Warn("history: set last poll", "err", err)
	}
	if err := r.store.Touch(); err != nil {
		r.logger.Warn("history: touch", "err", err)
	}
	r.maybePrune()
}

func (r *Recorder) maybePrune() {
	r.mu.Lock()
	now := r.now()
	if now.Sub(r.lastPrune) < pruneEvery {
		r.mu.Unlock()
		return
	}
	r.lastPrune = now
	r.mu.Unlock()

	n, err := r.store.Prune(now.Add(-r.retention))
	if err != nil {
		r.logger.Warn("history: prune", "err", err)
		return
	}
	if n > 0 {
		r.logger.Info("history: pruned old rows", "rows", n)
	}
}
