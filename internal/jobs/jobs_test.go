package jobs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alnah/go-scribe/internal/jobs"
)

// ---------------------------------------------------------------------------
// TestMemoryStore - In-memory persistence
// ---------------------------------------------------------------------------

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("put then get round trips", func(t *testing.T) {
		t.Parallel()
		st := jobs.NewMemoryStore()
		job := jobs.Job{ID: "a", SourcePath: "/x.mp3", Status: jobs.StatusQueued}

		if err := st.Put(ctx, job); err != nil {
			t.Fatalf("Put() unexpected error: %v", err)
		}
		got, err := st.Get(ctx, "a")
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if got.SourcePath != "/x.mp3" || got.Status != jobs.StatusQueued {
			t.Errorf("Get() = %+v", got)
		}
	})

	t.Run("put replaces an existing job", func(t *testing.T) {
		t.Parallel()
		st := jobs.NewMemoryStore()
		_ = st.Put(ctx, jobs.Job{ID: "a", Status: jobs.StatusQueued})
		_ = st.Put(ctx, jobs.Job{ID: "a", Status: jobs.StatusDone})

		got, err := st.Get(ctx, "a")
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if got.Status != jobs.StatusDone {
			t.Errorf("Status = %q, want done", got.Status)
		}
	})

	t.Run("get of unknown id returns ErrNotFound", func(t *testing.T) {
		t.Parallel()
		st := jobs.NewMemoryStore()
		if _, err := st.Get(ctx, "missing"); !errors.Is(err, jobs.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete removes a job and tolerates missing ids", func(t *testing.T) {
		t.Parallel()
		st := jobs.NewMemoryStore()
		_ = st.Put(ctx, jobs.Job{ID: "a"})

		if err := st.Delete(ctx, "a"); err != nil {
			t.Fatalf("Delete() unexpected error: %v", err)
		}
		if _, err := st.Get(ctx, "a"); !errors.Is(err, jobs.ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}
		if err := st.Delete(ctx, "never-existed"); err != nil {
			t.Errorf("Delete() of missing id error = %v, want nil", err)
		}
	})

	t.Run("GetByHash returns the newest matching job", func(t *testing.T) {
		t.Parallel()
		st := jobs.NewMemoryStore()
		base := time.Now()
		_ = st.Put(ctx, jobs.Job{ID: "old", SourceHash: "h1", CreatedAt: base})
		_ = st.Put(ctx, jobs.Job{ID: "new", SourceHash: "h1", CreatedAt: base.Add(time.Minute)})
		_ = st.Put(ctx, jobs.Job{ID: "other", SourceHash: "h2", CreatedAt: base.Add(time.Hour)})

		got, err := st.GetByHash(ctx, "h1")
		if err != nil {
			t.Fatalf("GetByHash() unexpected error: %v", err)
		}
		if got.ID != "new" {
			t.Errorf("GetByHash() = %q, want %q", got.ID, "new")
		}

		if _, err := st.GetByHash(ctx, "h3"); !errors.Is(err, jobs.ErrNotFound) {
			t.Errorf("GetByHash() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list orders newest first", func(t *testing.T) {
		t.Parallel()
		st := jobs.NewMemoryStore()
		base := time.Now()
		_ = st.Put(ctx, jobs.Job{ID: "first", CreatedAt: base})
		_ = st.Put(ctx, jobs.Job{ID: "second", CreatedAt: base.Add(time.Minute)})

		got, err := st.List(ctx)
		if err != nil {
			t.Fatalf("List() unexpected error: %v", err)
		}
		if len(got) != 2 || got[0].ID != "second" || got[1].ID != "first" {
			t.Errorf("List() = %+v, want newest first", got)
		}
	})
}

// ---------------------------------------------------------------------------
// TestHashFile - Content-addressed dedup key
// ---------------------------------------------------------------------------

func TestHashFile(t *testing.T) {
	t.Parallel()

	writeFile := func(t *testing.T, dir, name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		return path
	}

	t.Run("identical content hashes identically across paths", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		a := writeFile(t, dir, "a.mp3", "same bytes")
		b := writeFile(t, dir, "b.mp3", "same bytes")

		ha, err := jobs.HashFile(a)
		if err != nil {
			t.Fatalf("HashFile() unexpected error: %v", err)
		}
		hb, err := jobs.HashFile(b)
		if err != nil {
			t.Fatalf("HashFile() unexpected error: %v", err)
		}
		if ha != hb {
			t.Errorf("hashes differ: %s vs %s", ha, hb)
		}
		if len(ha) != 64 {
			t.Errorf("hash length = %d, want 64 hex chars", len(ha))
		}
	})

	t.Run("different content hashes differently", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		a := writeFile(t, dir, "a.mp3", "content one")
		b := writeFile(t, dir, "b.mp3", "content two")

		ha, _ := jobs.HashFile(a)
		hb, _ := jobs.HashFile(b)
		if ha == hb {
			t.Error("distinct content produced identical hashes")
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		t.Parallel()
		if _, err := jobs.HashFile("/nonexistent.mp3"); err == nil {
			t.Error("HashFile() expected error for missing file")
		}
	})
}
