package inspect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/conorfennell/tunequeue/internal/clock"
	"github.com/conorfennell/tunequeue/internal/config"
	"github.com/conorfennell/tunequeue/internal/domain"
	"github.com/conorfennell/tunequeue/internal/purge"
	"github.com/conorfennell/tunequeue/internal/queue"
	"github.com/conorfennell/tunequeue/internal/remote"
	"github.com/conorfennell/tunequeue/internal/scheduler"
	"github.com/conorfennell/tunequeue/internal/storage"
	tqsync "github.com/conorfennell/tunequeue/internal/sync"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.DB, *clock.Fixed) {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clk := clock.NewFixed(time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC))
	settings := config.Settings{
		UserID:                "u1",
		PlaylistID:            "p1",
		Genres:                []string{"irish"},
		DelinquencyWindowDays: 21,
	}
	rs := remote.NewMemoryStore(clk.Now)
	purger := purge.New(db, clk, nil)
	engine := tqsync.New(db, rs, purger, clk, "u1", "p1", settings.Genres, nil)
	sched := scheduler.New(scheduler.FixedModel{Days: 1}, nil)
	builder := queue.NewBuilder(db, clk, sched, settings.DelinquencyWindowDays, nil)

	ts := httptest.NewServer(NewServer(db, engine, builder, clk, settings, nil))
	t.Cleanup(ts.Close)
	return ts, db, clk
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestAnnotationCountEndpoints(t *testing.T) {
	ts, db, clk := newTestServer(t)
	now := clk.Now()

	if err := db.UpsertTune(domain.Tune{ID: "t1", Genre: "irish", Title: "Seen"}, now); err != nil {
		t.Fatalf("Failed to upsert tune: %v", err)
	}
	if err := db.UpsertTune(domain.Tune{ID: "t2", Genre: "bluegrass", Title: "Orphan"}, now); err != nil {
		t.Fatalf("Failed to upsert tune: %v", err)
	}
	if err := db.UpsertNote(domain.Note{ID: "n1", TuneID: "t1", Content: "a"}, now); err != nil {
		t.Fatalf("Failed to upsert note: %v", err)
	}
	if err := db.UpsertNote(domain.Note{ID: "n2", TuneID: "t2", Content: "b"}, now); err != nil {
		t.Fatalf("Failed to upsert note: %v", err)
	}

	var counts storage.AnnotationCounts
	getJSON(t, ts.URL+"/annotations/counts", &counts)
	if counts.Notes != 2 {
		t.Errorf("Expected 2 notes, but got %d", counts.Notes)
	}

	getJSON(t, ts.URL+"/annotations/counts?tune_id=t1", &counts)
	if counts.Notes != 1 {
		t.Errorf("Expected 1 note for t1, but got %d", counts.Notes)
	}

	var orphans storage.OrphanCounts
	getJSON(t, ts.URL+"/annotations/orphaned", &orphans)
	if orphans.OrphanedNotes != 1 {
		t.Errorf("Expected the bluegrass note to count as orphaned, but got %d", orphans.OrphanedNotes)
	}
}

func TestTuneByGenreEndpoint(t *testing.T) {
	ts, db, clk := newTestServer(t)

	if err := db.UpsertTune(domain.Tune{ID: "t1", Genre: "irish", Title: "Found"}, clk.Now()); err != nil {
		t.Fatalf("Failed to upsert tune: %v", err)
	}

	var res struct {
		ID string `json:"id"`
	}
	getJSON(t, ts.URL+"/tunes/by-genre/irish", &res)
	if res.ID != "t1" {
		t.Errorf("Expected t1, but got %q", res.ID)
	}

	getJSON(t, ts.URL+"/tunes/by-genre/jazz", &res)
	if res.ID != "" {
		t.Errorf("Expected an empty id for an uncached genre, but got %q", res.ID)
	}
}

func TestScheduleAndSeedEndpoints(t *testing.T) {
	ts, db, clk := newTestServer(t)
	now := clk.Now()

	if err := db.UpsertTune(domain.Tune{ID: "t1", Genre: "irish", Title: "Scheduled"}, now); err != nil {
		t.Fatalf("Failed to upsert tune: %v", err)
	}

	t.Run("Seed adds explicit repertoire entries", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{
			"playlist_id": "p1",
			"tune_ids":    []string{"t1"},
		})
		resp, err := http.Post(ts.URL+"/seed/review", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("POST failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("Expected 204, but got %d", resp.StatusCode)
		}

		entries, err := db.ListRepertoire("p1")
		if err != nil {
			t.Fatalf("Failed to list repertoire: %v", err)
		}
		if len(entries) != 1 || !entries[0].Explicit {
			t.Errorf("Expected one explicit entry, but got %+v", entries)
		}
	})

	t.Run("Queue endpoint reflects the seeded tune", func(t *testing.T) {
		var items []domain.QueueItem
		getJSON(t, fmt.Sprintf("%s/queue?playlist_id=p1", ts.URL), &items)
		if len(items) != 1 || items[0].TuneID != "t1" {
			t.Errorf("Expected the seeded tune in the queue, but got %+v", items)
		}
	})

	t.Run("Schedule override moves the due date", func(t *testing.T) {
		scheduled := now.AddDate(0, 0, 7)
		body, _ := json.Marshal(map[string]any{
			"playlist_id": "p1",
			"updates":     []map[string]any{{"tune_id": "t1", "scheduled": scheduled}},
		})
		resp, err := http.Post(ts.URL+"/schedule", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("POST failed: %v", err)
		}
		defer resp.Body.Close()
		var res struct {
			Updated int `json:"updated"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		if res.Updated != 1 {
			t.Errorf("Expected 1 updated row, but got %d", res.Updated)
		}

		entries, err := db.ListRepertoire("p1")
		if err != nil {
			t.Fatalf("Failed to list repertoire: %v", err)
		}
		if entries[0].Scheduled == nil || !entries[0].Scheduled.Equal(scheduled) {
			t.Errorf("Expected the override to persist, but got %v", entries[0].Scheduled)
		}
	})

	t.Run("Override past today drops the tune from a fresh build", func(t *testing.T) {
		clk.Advance(25 * time.Hour)
		var items []domain.QueueItem
		getJSON(t, fmt.Sprintf("%s/queue?playlist_id=p1", ts.URL), &items)
		if len(items) != 0 {
			t.Errorf("Expected an empty queue with t1 scheduled in 7 days, but got %+v", items)
		}
	})
}

func TestQueueEndpointRebuildsAfterMidnight(t *testing.T) {
	ts, db, clk := newTestServer(t)
	now := clk.Now()

	if err := db.UpsertTune(domain.Tune{ID: "t1", Genre: "irish", Title: "Rollover"}, now); err != nil {
		t.Fatalf("Failed to upsert tune: %v", err)
	}
	scheduled := now
	entry := domain.RepertoireEntry{PlaylistID: "p1", TuneID: "t1", Scheduled: &scheduled, Explicit: true}
	if err := db.UpsertRepertoireEntry(entry, now); err != nil {
		t.Fatalf("Failed to add repertoire entry: %v", err)
	}

	var items []domain.QueueItem
	getJSON(t, ts.URL+"/queue", &items)
	if len(items) != 1 || items[0].Bucket != domain.BucketDueToday {
		t.Fatalf("Expected t1 due today, but got %+v", items)
	}

	// The server keeps running past midnight. The next read must see
	// yesterday's unpracticed tune re-bucketed as lapsed, not a stale
	// copy of yesterday's queue.
	clk.Advance(25 * time.Hour)
	getJSON(t, ts.URL+"/queue", &items)
	if len(items) != 1 || items[0].Bucket != domain.BucketRecentlyLapsed {
		t.Errorf("Expected t1 to lapse after the day rolled over, but got %+v", items)
	}
}

func TestSyncEndpoints(t *testing.T) {
	ts, db, clk := newTestServer(t)

	if err := db.UpsertTune(domain.Tune{ID: "t1", Genre: "irish", Title: "Pushed"}, clk.Now()); err != nil {
		t.Fatalf("Failed to upsert tune: %v", err)
	}

	var status struct {
		State               string `json:"state"`
		InitialSyncComplete bool   `json:"initial_sync_complete"`
		PendingMutations    int    `json:"pending_mutations"`
	}
	getJSON(t, ts.URL+"/sync/status", &status)
	if status.InitialSyncComplete {
		t.Error("Expected initial sync to be incomplete before any pull")
	}
	if status.PendingMutations != 1 {
		t.Errorf("Expected 1 pending mutation, but got %d", status.PendingMutations)
	}

	resp, err := http.Post(ts.URL+"/sync/up", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, but got %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/sync/down", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, but got %d", resp.StatusCode)
	}

	getJSON(t, ts.URL+"/sync/status", &status)
	if !status.InitialSyncComplete {
		t.Error("Expected initial sync to be complete after a pull")
	}
	if status.PendingMutations != 0 {
		t.Errorf("Expected the outbox to drain, but %d remain", status.PendingMutations)
	}
}
