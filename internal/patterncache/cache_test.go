package patterncache

import (
	"path/filepath"
	"testing"
)

func openTestCache(t *testing.T, engine string) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "patterns.db"), engine)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutGet(t *testing.T) {
	c := openTestCache(t, "engine-v1")

	if _, ok := c.Get(`^[\p{Emoji}]+$`); ok {
		t.Fatal("Get on empty cache returned a hit")
	}

	c.Put(`^[\p{Emoji}]+$`, `^[\x{1F300}-\x{1FAFF}]+$`)

	got, ok := c.Get(`^[\p{Emoji}]+$`)
	if !ok {
		t.Fatal("Get after Put missed")
	}
	if got != `^[\x{1F300}-\x{1FAFF}]+$` {
		t.Errorf("Get = %q, want stored translation", got)
	}
}

func TestGet_EngineVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.db")

	c1, err := Open(path, "engine-v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c1.Put("src", "translated-v1")
	c1.Close()

	c2, err := Open(path, "engine-v2")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	if _, ok := c2.Get("src"); ok {
		t.Error("Get returned a hit for an entry written by another engine version")
	}

	// The overwrite replaces the stale entry for the new engine.
	c2.Put("src", "translated-v2")
	got, ok := c2.Get("src")
	if !ok || got != "translated-v2" {
		t.Errorf("Get after overwrite = %q, %v; want translated-v2, true", got, ok)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.db")

	c1, err := Open(path, "engine-v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c1.Put("src", "translated")
	c1.Close()

	c2, err := Open(path, "engine-v1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	got, ok := c2.Get("src")
	if !ok || got != "translated" {
		t.Errorf("Get after reopen = %q, %v; want translated, true", got, ok)
	}
}

func TestNilCacheIsAlwaysMiss(t *testing.T) {
	var c *Cache

	c.Put("src", "translated") // must not panic
	if _, ok := c.Get("src"); ok {
		t.Error("nil cache returned a hit")
	}
	if err := c.Close(); err != nil {
		t.Errorf("nil cache Close: %v", err)
	}
}

func TestOpen_BadPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "patterns.db"), "engine-v1"); err == nil {
		t.Error("Open succeeded on a path whose directory does not exist")
	}
}
