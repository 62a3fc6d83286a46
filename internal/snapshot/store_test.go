package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"strmsync/internal/logging"
)

func newTestSnapshot(at time.Time, movieIDs ...int) *Snapshot {
	snap := New(at, "provider-a", "layout-1")
	for _, id := range movieIDs {
		snap.Movies[id] = Entry{ID: id, Name: "movie", Checksum: "sum", Files: []string{"Movies/m/m.strm"}}
	}
	snap.Series[100] = Entry{ID: 100, Name: "show", EpisodeCount: 10, LastModified: at.Add(-time.Hour).UTC()}
	snap.Complete = true
	return snap
}

func TestSaveAndLoadLatestRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), 3, logging.NewNop())
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Save(newTestSnapshot(base, 1)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(newTestSnapshot(base.Add(time.Minute), 1, 2)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err := store.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	if len(snap.Movies) != 2 {
		t.Fatalf("expected newest snapshot with 2 movies, got %d", len(snap.Movies))
	}
	if got := snap.Series[100].EpisodeCount; got != 10 {
		t.Fatalf("series entry not preserved: %d", got)
	}
	if !snap.Compatible("provider-a", "layout-1") {
		t.Fatal("expected snapshot to be compatible")
	}
	if snap.Compatible("provider-b", "layout-1") || snap.Compatible("provider-a", "layout-2") {
		t.Fatal("expected identity or layout mismatch to be incompatible")
	}
}

func TestLoadLatestEmptyDirectory(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing"), 0, nil)
	snap, err := store.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if snap != nil {
		t.Fatal("expected no snapshot")
	}
}

func TestLoadLatestSkipsCorruptAndIncompleteFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 5, logging.NewNop())
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Save(newTestSnapshot(base, 1)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	write := func(at time.Time, body string) {
		t.Helper()
		name := filePrefix + at.UTC().Format(timeLayout) + fileSuffix
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write(base.Add(1*time.Minute), `{"version":1,"complete":false,"movies":{}}`)
	write(base.Add(2*time.Minute), `{"version":1,"complete":tr`)
	write(base.Add(3*time.Minute), `{"version":99,"complete":true}`)
	write(base.Add(4*time.Minute), ``)

	snap, err := store.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if snap == nil {
		t.Fatal("expected fallback to the valid snapshot")
	}
	if _, ok := snap.Movies[1]; !ok {
		t.Fatalf("unexpected snapshot contents: %+v", snap.Movies)
	}
}

func TestSaveRefusesIncompleteSnapshot(t *testing.T) {
	store := NewStore(t.TempDir(), 3, logging.NewNop())
	snap := New(time.Now(), "p", "c")
	if err := store.Save(snap); err == nil {
		t.Fatal("expected error for incomplete snapshot")
	}
}

func TestSavePrunesToRetention(t *testing.T) {
	store := NewStore(t.TempDir(), 3, logging.NewNop())
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := range 5 {
		if err := store.Save(newTestSnapshot(base.Add(time.Duration(i)*time.Minute), i)); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}
	files, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 retained snapshots, got %d: %v", len(files), files)
	}
	want := filePrefix + base.Add(4*time.Minute).Format(timeLayout) + fileSuffix
	if files[len(files)-1] != want {
		t.Fatalf("expected newest file %s, got %s", want, files[len(files)-1])
	}
}

func TestClearAllRemovesSnapshots(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 3, logging.NewNop())
	if err := store.Save(newTestSnapshot(time.Now(), 1)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := store.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	snap, err := store.LoadLatest()
	if err != nil || snap != nil {
		t.Fatalf("expected no snapshot after clear, got %v %v", snap, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("unrelated file removed: %v", err)
	}
}
