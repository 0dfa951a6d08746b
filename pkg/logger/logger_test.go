package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_BasicLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "text", Output: &buf})

	log.Debug("dbg", String("k", "v"))
	log.Info("info", Int("n", 42))
	log.Warn("warn", Bool("ok", true))
	log.Error("err", Error(nil))

	out := buf.String()
	// Expect all levels present (debug is the lowest configured)
	for _, s := range []string{"DBG dbg", "k=v", "INF info", "n=42", "WRN warn", "ok=true", "ERR err", "error=nil"} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected output to contain %q, got: %s", s, out)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Debug("hidden-debug")
	log.Info("hidden-info")
	log.Warn("shown-warn")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug/info to be filtered, got: %s", out)
	}
	if !strings.Contains(out, "shown-warn") {
		t.Fatalf("expected warn message, got: %s", out)
	}
	if log.Enabled(InfoLevel) || !log.Enabled(ErrorLevel) {
		t.Errorf("unexpected Enabled results for warn level")
	}
}

func TestLogger_WithComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "info", Output: &buf})
	comp := base.WithComponent("network.listener")

	comp.Info("started")

	out := buf.String()
	if !strings.Contains(out, "component=network.listener") {
		t.Fatalf("expected component field in output, got: %s", out)
	}
	if !strings.Contains(out, "INF started") {
		t.Fatalf("expected info message in output, got: %s", out)
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf}).WithComponent("protocol")

	log.Info("record decoded", Uint32("record_type", 1), Hex32("field", 0xDEADBEEF))

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "record decoded" {
		t.Errorf("unexpected message: %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("unexpected level: %v", entry["level"])
	}
	if entry["component"] != "protocol" {
		t.Errorf("unexpected component: %v", entry["component"])
	}
	if entry["record_type"] != float64(1) {
		t.Errorf("unexpected record_type: %v", entry["record_type"])
	}
	if entry["field"] != "0xDEADBEEF" {
		t.Errorf("unexpected field: %v", entry["field"])
	}
}
