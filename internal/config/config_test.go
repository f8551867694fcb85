package config_test

import (
	"strings"
	"testing"

	"github.com/jwulff/stenod/internal/config"
)

const validYAML = `
server:
  socket_path: /tmp/stenod.sock
  db_path: /tmp/stenod.db
  log_level: info
recognizer:
  default_locale: en-US
coordinator:
  trigger_count: 10
`

func TestLoadFromReaderValid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.SocketPath != "/tmp/stenod.sock" {
		t.Errorf("socket_path: got %q", cfg.Server.SocketPath)
	}
	if cfg.Coordinator.TriggerCount != 10 {
		t.Errorf("trigger_count: got %d, want 10", cfg.Coordinator.TriggerCount)
	}
}

func TestLoadFromReaderRejectsUnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`server:
  bogus_field: true
`))
	if err == nil {
		t.Fatal("expected an error for an unknown field, got nil")
	}
}

func TestLoadFromReaderRejectsInvalidLogLevel(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`server:
  log_level: bananas
`))
	if err == nil {
		t.Fatal("expected an error for an invalid log level, got nil")
	}
}

func TestLoadFromReaderRejectsNegativeThresholds(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`coordinator:
  trigger_count: -1
  min_segments_for_time_trigger: -1
`))
	if err == nil {
		t.Fatal("expected an error for negative thresholds, got nil")
	}
	if !strings.Contains(err.Error(), "trigger_count") || !strings.Contains(err.Error(), "min_segments_for_time_trigger") {
		t.Errorf("expected both field errors joined, got: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/stenod.yaml")
	if err == nil {
		t.Fatal("expected an error for a missing file, got nil")
	}
}
