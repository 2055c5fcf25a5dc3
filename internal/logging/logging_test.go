package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger")
	}
}

func TestSpanNestingSharesTrace(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New("debug", &buf))
	ctx = WithRequestID(ctx, "req-1")

	ctx, parent := StartSpan(ctx, "catalog.save", slog.String("op", "create"))
	_, child := StartSpan(ctx, "gate.evaluate")
	child.End()
	parent.Fail(errors.New("store down"))
	parent.End()

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}

	childEntry, parentEntry := entries[0], entries[1]
	if childEntry["trace_id"] != "req-1" || parentEntry["trace_id"] != "req-1" {
		t.Fatalf("expected request id to seed the trace: %v / %v", childEntry, parentEntry)
	}
	if childEntry["parent_span_id"] != parentEntry["span_id"] {
		t.Fatalf("child span not linked to parent: %v", childEntry)
	}
	if childEntry["msg"] != "span completed" || parentEntry["msg"] != "span failed" {
		t.Fatalf("unexpected messages: %v / %v", childEntry["msg"], parentEntry["msg"])
	}
	if parentEntry["error"] != "store down" || parentEntry["op"] != "create" {
		t.Fatalf("expected error and attrs on failed span: %v", parentEntry)
	}
}

func TestSpanEndSuppressedBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New("info", &buf))

	_, span := StartSpan(ctx, "quiet")
	span.End()

	if buf.Len() != 0 {
		t.Fatalf("expected no output at info level, got %s", buf.String())
	}
}
