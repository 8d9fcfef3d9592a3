package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInit_Levels(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Debug: true, Output: &buf})
	Debug("debug visible")
	if !strings.Contains(buf.String(), "debug visible") {
		t.Error("debug level should pass when Debug is set")
	}

	buf.Reset()
	Init(Options{Quiet: true, Output: &buf})
	Info("hidden")
	Error("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("quiet mode should suppress info")
	}
	if !strings.Contains(out, "shown") {
		t.Error("quiet mode should keep errors")
	}
}

func TestInit_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{JSON: true, Output: &buf})
	Info("structured", "key", "value")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "structured" || record["key"] != "value" {
		t.Errorf("unexpected record: %v", record)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Output: &buf})
	With("component", "test").Info("tagged")
	if !strings.Contains(buf.String(), "component=test") {
		t.Errorf("attributes missing from output: %s", buf.String())
	}
}
