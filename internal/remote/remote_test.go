package remote

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

func TestMemoryStoreFetchVisibility(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	now := base
	store := NewMemoryStore(func() time.Time { return now })

	rows := []Row{
		{Kind: domain.KindTune, ID: "t1", Genre: "irish"},
		{Kind: domain.KindTune, ID: "t2", Genre: "bluegrass"},
		{Kind: domain.KindTune, ID: "t3", Genre: "bluegrass", OwnerID: "u1"},
		{Kind: domain.KindTune, ID: "t4", Genre: "bluegrass", OwnerID: "u2"},
	}
	for _, row := range rows {
		if err := store.Upsert(ctx, row); err != nil {
			t.Fatalf("Failed to upsert %s: %v", row.ID, err)
		}
	}

	res, err := store.Fetch(ctx, Query{Genres: []string{"irish"}, OwnerID: "u1"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	got := map[string]bool{}
	for _, row := range res.Rows {
		got[row.ID] = true
	}
	if len(got) != 2 || !got["t1"] || !got["t3"] {
		t.Errorf("Expected exactly t1 (genre) and t3 (owned), but got %v", got)
	}

	t.Run("Since filters already-seen rows", func(t *testing.T) {
		now = base.Add(time.Minute)
		if err := store.Upsert(ctx, Row{Kind: domain.KindTune, ID: "t5", Genre: "irish"}); err != nil {
			t.Fatalf("Failed to upsert: %v", err)
		}

		res, err := store.Fetch(ctx, Query{Genres: []string{"irish"}, OwnerID: "u1", Since: base})
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if len(res.Rows) != 1 || res.Rows[0].ID != "t5" {
			t.Errorf("Expected only the newer row, but got %+v", res.Rows)
		}
		if !res.Watermark.Equal(base.Add(time.Minute)) {
			t.Errorf("Expected the watermark to advance to the newest row, but got %v", res.Watermark)
		}
	})
}

func TestClientServerRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return base })
	ts := httptest.NewServer(NewServer(store, nil))
	defer ts.Close()

	client := NewClient(ts.URL, nil)

	payload, _ := json.Marshal(domain.Tune{ID: "t1", Genre: "irish", Title: "Over The Wire"})
	row := Row{Kind: domain.KindTune, ID: "t1", Genre: "irish", Payload: payload}
	if err := client.Upsert(ctx, row); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	res, err := client.Fetch(ctx, Query{Genres: []string{"irish"}})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0].ID != "t1" {
		t.Fatalf("Expected the upserted row back, but got %+v", res.Rows)
	}
	var tune domain.Tune
	if err := json.Unmarshal(res.Rows[0].Payload, &tune); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if tune.Title != "Over The Wire" {
		t.Errorf("Expected the payload to survive the round trip, but got %q", tune.Title)
	}
	if !res.Watermark.Equal(base) {
		t.Errorf("Expected watermark %v, but got %v", base, res.Watermark)
	}

	t.Run("Delete removes the row", func(t *testing.T) {
		if err := client.Delete(ctx, domain.KindTune, "t1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if store.Len() != 0 {
			t.Errorf("Expected the store to be empty, but holds %d rows", store.Len())
		}
	})

	t.Run("Upsert without kind is rejected", func(t *testing.T) {
		err := client.Upsert(ctx, Row{ID: "t9"})
		if err == nil {
			t.Errorf("Expected an error for a row without a kind")
		}
	})
}
