package hostid

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMintsAndPersists(t *testing.T) {
	dir := t.TempDir()

	first, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first.ID == "" {
		t.Fatal("empty machine id")
	}
	if first.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	second, err := Load(dir)
	if err != nil {
		t.Fatalf("Load again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("identity not stable: %q then %q", first.ID, second.ID)
	}
}

func TestLoadRecoversFromCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "machine-id.json"), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	id, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if id.ID == "" {
		t.Error("no identity minted over corrupt file")
	}
}

func TestInfo(t *testing.T) {
	info := Info()
	if info["os"] == "" || info["arch"] == "" {
		t.Errorf("incomplete machine info: %v", info)
	}
}
