package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/subtrack/subtrack/server/internal/config"
)

var sample = map[string]string{
	"alice": "permanent",
	"bob":   "2024-03-10 12:00:00",
}

func roundTrip(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	if err := b.Save(ctx, sample); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(sample) {
		t.Fatalf("Load: got %d records, want %d", len(got), len(sample))
	}
	for k, v := range sample {
		if got[k] != v {
			t.Errorf("record %q: got %q, want %q", k, got[k], v)
		}
	}

	// A later Save replaces the set wholesale.
	if err := b.Save(ctx, map[string]string{"carol": "permanent"}); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err = b.Load(ctx)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if len(got) != 1 || got["carol"] != "permanent" {
		t.Errorf("after replace: got %v", got)
	}
}

func TestMemory_RoundTrip(t *testing.T) {
	roundTrip(t, NewMemory())
}

func TestMemory_LoadReturnsCopy(t *testing.T) {
	m := NewMemory()
	if err := m.Save(context.Background(), sample); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := m.Load(context.Background())
	got["mallory"] = "permanent"

	again, _ := m.Load(context.Background())
	if _, ok := again["mallory"]; ok {
		t.Error("mutation of loaded map leaked into backend")
	}
}

func TestFile_RoundTrip(t *testing.T) {
	for _, comp := range []string{"none", "s2", "zstd"} {
		t.Run(comp, func(t *testing.T) {
			f, err := NewFile(filepath.Join(t.TempDir(), "uids.json"), comp)
			if err != nil {
				t.Fatalf("NewFile: %v", err)
			}
			defer f.Close()
			roundTrip(t, f)
		})
	}
}

func TestFile_InitialisesEmptySet(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "uids.json")
	f, err := NewFile(p, "")
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("snapshot file not created: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("initial content: got %q, want {}", data)
	}
	got, err := f.Load(context.Background())
	if err != nil || len(got) != 0 {
		t.Errorf("Load: got (%v, %v), want empty", got, err)
	}
}

func TestFile_KeepsExistingSet(t *testing.T) {
	p := filepath.Join(t.TempDir(), "uids.json")
	if err := os.WriteFile(p, []byte(`{"legacy":"permanent"}`), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f, err := NewFile(p, "none")
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	got, err := f.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got["legacy"] != "permanent" {
		t.Errorf("legacy record lost: %v", got)
	}
}

func TestFile_PlainFormatIsJSONObject(t *testing.T) {
	p := filepath.Join(t.TempDir(), "uids.json")
	f, err := NewFile(p, "none")
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := f.Save(context.Background(), map[string]string{"x": "permanent"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(p)
	if string(data) != `{"x":"permanent"}` {
		t.Errorf("content: got %s", data)
	}
	if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestFile_CorruptSnapshot(t *testing.T) {
	p := filepath.Join(t.TempDir(), "uids.json")
	if err := os.WriteFile(p, []byte("not json"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f, err := NewFile(p, "none")
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if _, err := f.Load(context.Background()); err == nil {
		t.Fatal("Load: expected decode error")
	}
}

func TestFile_CompressionMismatch(t *testing.T) {
	p := filepath.Join(t.TempDir(), "uids.json")
	if err := os.WriteFile(p, []byte(`{"x":"permanent"}`), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f, err := NewFile(p, "zstd")
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	defer f.Close()
	if _, err := f.Load(context.Background()); err == nil {
		t.Fatal("Load: expected decompress error for plain file read as zstd")
	}
}

func TestFile_SaveHonoursCancelledContext(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "uids.json"), "")
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.Save(ctx, sample); err == nil {
		t.Fatal("Save: expected error for cancelled context")
	}
}

func TestNewFile_Errors(t *testing.T) {
	if _, err := NewFile("", "none"); err == nil {
		t.Error("empty path: expected error")
	}
	if _, err := NewFile(filepath.Join(t.TempDir(), "x.json"), "lz4"); err == nil {
		t.Error("unknown compression: expected error")
	}
}

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, config.StorageConfig{Backend: config.BackendMemory})
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := b.(*Memory); !ok {
		t.Errorf("memory backend: got %T", b)
	}

	p := filepath.Join(t.TempDir(), "uids.json")
	b, err = Open(ctx, config.StorageConfig{Backend: config.BackendFile, File: config.FileConfig{Path: p}})
	if err != nil {
		t.Fatalf("Open file: %v", err)
	}
	if f, ok := b.(*File); !ok || f.Path() != p {
		t.Errorf("file backend: got %T", b)
	}

	if _, err := Open(ctx, config.StorageConfig{Backend: "s3"}); err == nil {
		t.Error("unknown backend: expected error")
	}

	t.Setenv("SUBTRACK_TEST_EMPTY_URL", "")
	_, err = Open(ctx, config.StorageConfig{
		Backend:  config.BackendPostgres,
		Postgres: config.PostgresConfig{URLEnv: "SUBTRACK_TEST_EMPTY_URL"},
	})
	if err == nil {
		t.Error("postgres without url: expected error")
	}
}

func TestValkey_RoundTrip(t *testing.T) {
	addr := os.Getenv("SUBTRACK_TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("SUBTRACK_TEST_VALKEY_ADDR not set")
	}
	v, err := NewValkey(context.Background(), addr, "subtrack:test:"+t.Name(), "")
	if err != nil {
		t.Fatalf("NewValkey: %v", err)
	}
	defer v.Close()
	roundTrip(t, v)

	if err := v.Save(context.Background(), map[string]string{}); err != nil {
		t.Fatalf("Save empty: %v", err)
	}
	got, err := v.Load(context.Background())
	if err != nil || len(got) != 0 {
		t.Errorf("Load after empty save: got (%v, %v)", got, err)
	}
}

func TestPostgres_RoundTrip(t *testing.T) {
	url := os.Getenv("SUBTRACK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SUBTRACK_TEST_DATABASE_URL not set")
	}
	if err := Migrate(url); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	p, err := NewPostgres(context.Background(), url)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()
	roundTrip(t, p)
}
