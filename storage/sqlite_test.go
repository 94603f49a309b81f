package storage

import (
	"path/filepath"
	"testing"
	"time"

	"immopipe/models"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestKVRoundTrip(t *testing.T) {
	store := testStore(t)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	var missing payload
	found, err := store.GetValue("nope", &missing)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("missing key reported as found")
	}

	if err := store.SetValue("k", payload{Name: "x", Count: 3}); err != nil {
		t.Fatal(err)
	}
	var got payload
	found, err = store.GetValue("k", &got)
	if err != nil || !found {
		t.Fatalf("GetValue: found=%v err=%v", found, err)
	}
	if got.Name != "x" || got.Count != 3 {
		t.Errorf("round trip = %+v", got)
	}

	// Overwrite replaces the value.
	if err := store.SetValue("k", payload{Name: "y", Count: 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetValue("k", &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "y" {
		t.Errorf("after overwrite = %+v", got)
	}
}

func TestStateRoundTrip(t *testing.T) {
	store := testStore(t)

	state, err := store.GetState()
	if err != nil {
		t.Fatal(err)
	}
	if len(state.SeenListings) != 0 {
		t.Errorf("fresh state = %+v", state)
	}

	state.SeenListings = []string{"immowelt_a", "immoscout24_b"}
	state.LastRun = "2024-03-01T12:00:00Z"
	if err := store.SetState(state); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.GetState()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.SeenListings) != 2 || loaded.LastRun != state.LastRun {
		t.Errorf("loaded state = %+v", loaded)
	}
}

func TestRunRecords(t *testing.T) {
	store := testStore(t)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &models.ScrapeRun{
		ID:        "run-1",
		StartedAt: started,
		Status:    models.RunStatusRunning,
	}
	if err := store.CreateRun(run); err != nil {
		t.Fatal(err)
	}

	finished := started.Add(90 * time.Second)
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.ListingsFound = 12
	run.ListingsSaved = 10
	run.ErrorsCount = 2
	if err := store.UpdateRun(run); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.GetRun("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil {
		t.Fatal("run not found")
	}
	if loaded.Status != models.RunStatusCompleted || loaded.ListingsSaved != 10 {
		t.Errorf("loaded run = %+v", loaded)
	}
	if loaded.FinishedAt == nil {
		t.Error("finished_at not persisted")
	}

	if unknown, err := store.GetRun("missing"); err != nil || unknown != nil {
		t.Errorf("GetRun(missing) = %v, %v", unknown, err)
	}

	runs, err := store.RecentRuns(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Errorf("RecentRuns = %+v", runs)
	}
}
