package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestResolveInDir(t *testing.T) {
	dir := t.TempDir()

	got, err := ResolveInDir(dir, "feature_importance.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(got) != dir {
		t.Errorf("expected file inside %s, got %s", dir, got)
	}

	if _, err := ResolveInDir(dir, "../etc/passwd"); err == nil {
		t.Error("expected traversal to be rejected")
	}
}

func TestContentTypeFor(t *testing.T) {
	if ct := ContentTypeFor("chart.PNG"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	if ct := ContentTypeFor("blob"); ct != "application/octet-stream" {
		t.Errorf("expected octet-stream fallback, got %s", ct)
	}
}

func TestASCIIFilename(t *testing.T) {
	got := ASCIIFilename(`análise "estatística".png`)
	if got != "analise _estatistica_.png" {
		t.Errorf("unexpected filename %q", got)
	}
}

func TestArtifactKey(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	key := ArtifactKey("Feature Importance", "out.PNG", now)
	if !strings.HasPrefix(key, "analysis/feature-importance/2024/05/01/") {
		t.Errorf("unexpected key prefix %q", key)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Errorf("expected lowercase extension, got %q", key)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	old := filepath.Join(dir, "old.png")
	fresh := filepath.Join(dir, "fresh.png")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chtimes(old, now.Add(-2*time.Hour), now.Add(-2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	n, err := PurgeOlderThan(dir, time.Hour, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file should remain: %v", err)
	}

	if n, err := PurgeOlderThan(filepath.Join(dir, "missing"), time.Hour, now); err != nil || n != 0 {
		t.Errorf("missing dir: got %d, %v", n, err)
	}
}
