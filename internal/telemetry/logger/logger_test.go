package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	l.Info("namespace loaded", "namespace", "module:rss", "keys", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "namespace loaded" {
		t.Fatalf("msg = %v, want %q", entry["msg"], "namespace loaded")
	}
	if entry["namespace"] != "module:rss" {
		t.Fatalf("namespace = %v", entry["namespace"])
	}
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	l.Debug("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("debug message was logged: %s", buf.String())
	}

	SetLevel("debug")
	defer SetLevel("info")
	l.Debug("now visible")
	if buf.Len() == 0 {
		t.Fatal("debug message missing after SetLevel(debug)")
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "text", Output: &buf})

	l.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("text output = %q", buf.String())
	}
}

func TestWith_AddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	l.With("namespace", "module:arxiv").Info("cleared")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["namespace"] != "module:arxiv" {
		t.Fatalf("namespace = %v", entry["namespace"])
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("via context")
	if buf.Len() == 0 {
		t.Fatal("logger from context produced no output")
	}

	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext without logger returned nil")
	}
}
