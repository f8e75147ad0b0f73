package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStaticIceServersWatcherLoadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.json")
	body := `[{"urls":["turn:example.com:3478"],"username":"op","credential":"secret"}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	w, err := NewStaticIceServersWatcher(path)
	if err != nil {
		t.Fatalf("NewStaticIceServersWatcher: %v", err)
	}

	servers := w.Current()
	if len(servers) != 1 || servers[0].Username != "op" {
		t.Fatalf("unexpected servers: %+v", servers)
	}
}

func TestStaticIceServersWatcherRejectsMissingFile(t *testing.T) {
	if _, err := NewStaticIceServersWatcher(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
