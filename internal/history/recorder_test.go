package history_test

import (
	"testing"
	"time"

	"github.com/zsprackett/usage-bar/internal/applog"
	"github.com/zsprackett/usage-bar/internal/db"
	"github.com/zsprackett/usage-bar/internal/history"
	"github.com/zsprackett/usage-bar/internal/usage"
	"github.com/zsprackett/usage-bar/internal/usagepoller"
)

func openDB(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestRecorder_WritesOutcomes(t *testing.T) {
	store := openDB(t)
	rec := history.NewRecorder(store, 0, applog.Discard())
	now := time.Now().Truncate(time.Millisecond)

	rec.Handle(usagepoller.Event{
		Kind:   usagepoller.EventUpdated,
		PollID: "ok-1",
		At:     now,
		Record: usage.Record{Session: usage.KnownPercent(42), Weekly: usage.KnownPercent(7)},
	})
	rec.Handle(usagepoller.Event{
		Kind:   usagepoller.EventFailed,
		PollID: "fail-1",
		At:     now.Add(time.Second),
		Err:    usage.Timeout(30 * time.Second),
	})

	latest, err := store.LatestSnapshot()
	if err != nil || latest == nil {
		t.Fatalf("latest: %+v, %v", latest, err)
	}
	if latest.PollID != "ok-1" || latest.Record.Session.Value != 42 {
		t.Errorf("snapshot: %+v", latest)
	}

	errs, _ := store.RecentErrors(10)
	if len(errs) != 1 || errs[0].Kind != usage.KindTimeout || errs[0].PollID != "fail-1" {
		t.Errorf("errors: %+v", errs)
	}

	if id, _ := store.GetMeta("last_poll_id"); id != "fail-1" {
		t.Errorf("last poll id: %q", id)
	}
	if store.LastModified() == 0 {
		t.Error("recording a poll should stamp last modified")
	}
}

func TestRecorder_PrunesOldRows(t *testing.T) {
	store := openDB(t)
	old := time.Now().Add(-48 * time.Hour)
	store.InsertSnapshot(&db.Snapshot{PollID: "ancient", At: old})

	rec := history.NewRecorder(store, 24*time.Hour, applog.Discard())
	rec.Handle(usagepoller.Event{Kind: usagepoller.EventUpdated, PollID: "fresh", At: time.Now()})

	all, _ := store.Snapshots(time.Time{}, 10)
	if len(all) != 1 || all[0].PollID != "fresh" {
		t.Errorf("expected only the fresh snapshot, got %+v", all)
	}
}
