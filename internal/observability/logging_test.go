package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerWritesJSONWithTimestamp(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, zerolog.InfoLevel)

	logger.Info().Str("session_id", "sess-1").Msg("turn started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if entry["message"] != "turn started" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", entry["session_id"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected a timestamp field")
	}
}

func TestNewLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, zerolog.WarnLevel)

	logger.Info().Msg("should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info message to be filtered, got %q", buf.String())
	}

	logger.Warn().Msg("should appear")
	if buf.Len() == 0 {
		t.Fatal("expected warn message to be written")
	}
}

func TestNewLoggerDefaultsToStderrWhenWriterIsNil(t *testing.T) {
	logger := NewLogger(nil, zerolog.InfoLevel)
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("GetLevel() = %v, want info", logger.GetLevel())
	}
}

func TestComponentTagsChildLogger(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&buf, zerolog.InfoLevel)
	child := Component(base, "tool")

	child.Info().Msg("dispatching bash")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if entry["component"] != "tool" {
		t.Errorf("component = %v, want tool", entry["component"])
	}
}
