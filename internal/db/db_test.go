package db_test

import (
	"testing"
	"time"

	"github.com/zsprackett/usage-bar/internal/db"
	"github.com/zsprackett/usage-bar/internal/usage"
)

func openTest(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return store
}

func TestMigrate(t *testing.T) {
	store := openTest(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := openTest(t)

	latest, err := store.LatestSnapshot()
	if err != nil || latest != nil {
		t.Fatalf("empty db: got %+v, %v", latest, err)
	}

	now := time.Now().Truncate(time.Millisecond)
	s := &db.Snapshot{
		PollID:   "poll-1",
		At:       now,
		Duration: 1500 * time.Millisecond,
		Record: usage.Record{
			Session:       usage.KnownPercent(42.5),
			Weekly:        usage.UnknownPercent("--%"),
			SessionResets: "3h",
		},
	}
	if err := store.InsertSnapshot(s); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if s.ID == 0 {
		t.Error("insert should set the id")
	}

	got, err := store.LatestSnapshot()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.PollID != "poll-1" || !got.At.Equal(now) || got.Duration != s.Duration {
		t.Errorf("got %+v", got)
	}
	if got.Record != s.Record {
		t.Errorf("record: got %+v want %+v", got.Record, s.Record)
	}
}

func TestSnapshotsWindow(t *testing.T) {
	store := openTest(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		store.InsertSnapshot(&db.Snapshot{
			PollID: string(rune('a' + i)),
			At:     base.Add(time.Duration(i) * time.Minute),
			Record: usage.Record{Session: usage.KnownPercent(float64(i * 10))},
		})
	}

	all, err := store.Snapshots(base, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 || all[0].PollID != "a" || all[4].PollID != "e" {
		t.Fatalf("expected 5 oldest-first snapshots, got %+v", all)
	}

	last2, _ := store.Snapshots(base, 2)
	if len(last2) != 2 || last2[0].PollID != "d" || last2[1].PollID != "e" {
		t.Errorf("limit should keep the newest: %+v", last2)
	}

	recent, _ := store.Snapshots(base.Add(3*time.Minute), 100)
	if len(recent) != 2 {
		t.Errorf("since filter: got %d", len(recent))
	}
}

func TestPollErrors(t *testing.T) {
	store := openTest(t)
	now := time.Now()
	store.InsertPollError(&db.PollError{PollID: "p1", At: now.Add(-time.Minute), Kind: usage.KindTimeout, Message: "slow"})
	store.InsertPollError(&db.PollError{PollID: "p2", At: now, Kind: usage.KindInvocationFailed, Message: "exit", ExitCode: 2})

	errs, err := store.RecentErrors(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	if errs[0].PollID != "p2" || errs[0].ExitCode != 2 || errs[0].Kind != usage.KindInvocationFailed {
		t.Errorf("newest first: got %+v", errs[0])
	}
}

func TestSummarizeAndPrune(t *testing.T) {
	store := openTest(t)
	now := time.Now()
	old := now.Add(-48 * time.Hour)
	store.InsertSnapshot(&db.Snapshot{PollID: "old", At: old})
	store.InsertSnapshot(&db.Snapshot{PollID: "new", At: now})
	store.InsertPollError(&db.PollError{PollID: "e", At: now, Kind: usage.KindTimeout})

	sum, err := store.Summarize(now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if sum.OK != 1 || sum.Failed != 1 {
		t.Errorf("summary: %+v", sum)
	}

	n, err := store.Prune(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}
	all, _ := store.Snapshots(time.Time{}, 10)
	if len(all) != 1 || all[0].PollID != "new" {
		t.Errorf("after prune: %+v", all)
	}
}

func TestMetadata(t *testing.T) {
	store := openTest(t)
	if v, err := store.GetMeta("missing"); err != nil || v != "" {
		t.Errorf("missing key: %q, %v", v, err)
	}
	store.SetMeta("last_poll_id", "abc")
	if v, _ := store.GetMeta("last_poll_id"); v != "abc" {
		t.Errorf("got %q", v)
	}
	if store.LastModified() != 0 {
		t.Error("last modified should start at zero")
	}
	store.Touch()
	if store.LastModified() == 0 {
		t.Error("touch should set last modified")
	}
}
