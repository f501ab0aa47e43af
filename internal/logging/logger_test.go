package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeWithoutConfigIsSilent(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	// Production mode: no logs directory should be created.
	if _, err := os.Stat(filepath.Join(ws, ".flow", "logs")); !os.IsNotExist(err) {
		t.Fatalf("logs dir should not exist without debug_mode")
	}

	// Writes through a no-op logger must not panic.
	Quota("reserved for %s", "u_1")
	Get(CategoryStore).Error("ignored: %v", os.ErrClosed)
}

func TestInitializeDebugModeWritesFiles(t *testing.T) {
	ws := t.TempDir()
	flowDir := filepath.Join(ws, ".flow")
	if err := os.MkdirAll(flowDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg := `{"logging":{"debug_mode":true,"level":"debug"}}`
	if err := os.WriteFile(filepath.Join(flowDir, "config.json"), []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	Breakdown("orchestrator started")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(flowDir, "logs"))
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected at least one log file")
	}
}
