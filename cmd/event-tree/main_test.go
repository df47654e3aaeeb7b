package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stupiduntilnot/docchat/internal/db"
)

func testDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	database, err := db.OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.InitSchema(database); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return database, path
}

// seedServerTree inserts a server run and returns the root event id.
//
//	process.started (server)       id=1
//	├── catalog.loaded             id=2
//	├── request.started            id=3
//	│   ├── config.loaded          id=4
//	│   ├── document.fetched       id=5
//	│   ├── document.chunked       id=6
//	│   ├── model.invoked          id=7
//	│   ├── call_log.written       id=8
//	│   └── request.completed      id=9
//	└── process.stopped            id=10
func seedServerTree(t *testing.T, database *sql.DB) int64 {
	t.Helper()
	rootID, _ := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{"role": "server", "pid": 100})
	db.LogEvent(database, &rootID, db.EventCatalogLoaded, nil)
	reqID, _ := db.LogEvent(database, &rootID, db.EventRequestStarted, map[string]any{"user_id": "u1", "type": "document"})
	db.LogEvent(database, &reqID, db.EventConfigLoaded, map[string]any{"model_id": "M1"})
	db.LogEvent(database, &reqID, db.EventDocumentFetched, map[string]any{"key": "report.pdf", "bytes": 2048})
	db.LogEvent(database, &reqID, db.EventDocumentChunked, map[string]any{"key": "report.pdf", "chunks": 1})
	db.LogEvent(database, &reqID, db.EventModelInvoked, map[string]any{"branch": "document"})
	db.LogEvent(database, &reqID, db.EventCallLogWritten, nil)
	db.LogEvent(database, &reqID, db.EventRequestCompleted, map[string]any{"branch": "document", "elapsed_ms": 1820})
	db.LogEvent(database, &rootID, db.EventProcessStopped, map[string]any{"pid": 100})
	return rootID
}

func runCapture(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := run(args, &buf); err != nil {
		t.Fatalf("run %v: %v", args, err)
	}
	return buf.String()
}

func TestQuerySubtree(t *testing.T) {
	database, _ := testDB(t)
	rootID := seedServerTree(t, database)

	events, err := querySubtree(database, rootID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 10 {
		t.Errorf("expected 10 events, got %d", len(events))
	}

	events, err = querySubtree(database, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 7 {
		t.Errorf("expected 7 events in request subtree, got %d", len(events))
	}
}

func TestBuildTree(t *testing.T) {
	database, _ := testDB(t)
	rootID := seedServerTree(t, database)

	events, _ := querySubtree(database, rootID)
	root := buildTree(events, rootID)
	if root == nil {
		t.Fatal("root is nil")
	}
	if len(root.Children) != 3 {
		t.Fatalf("expected 3 root children, got %d", len(root.Children))
	}
	req := root.Children[1]
	if req.EventType != db.EventRequestStarted || len(req.Children) != 6 {
		t.Errorf("unexpected request node: %s with %d children", req.EventType, len(req.Children))
	}
}

func TestFormatEvent(t *testing.T) {
	ev := &Event{
		ID:        42,
		Timestamp: 1739781001,
		EventType: "request.started",
		Payload:   sql.NullString{String: `{"user_id":"u1","chunks":3}`, Valid: true},
	}
	line := formatEvent(ev, false)
	for _, want := range []string{"[42]", "request.started", "user_id=u1", "chunks=3"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %s", want, line)
		}
	}
	if strings.Contains(formatEvent(ev, true), "user_id") {
		t.Error("expected no payload")
	}
	ev.Payload = sql.NullString{}
	if !strings.Contains(formatEvent(ev, false), "request.started") {
		t.Error("expected event type for null payload")
	}
}

func TestFormatValue(t *testing.T) {
	if v := formatValue(float64(42)); v != "42" {
		t.Errorf("expected 42, got %s", v)
	}
	if v := formatValue(strings.Repeat("a", 100)); !strings.Contains(v, "...") {
		t.Errorf("expected truncation: %s", v)
	}
}

func TestRun_DefaultServerRoot(t *testing.T) {
	database, path := testDB(t)
	seedServerTree(t, database)

	output := runCapture(t, "--db", path)
	for _, want := range []string{
		"process.started", "catalog.loaded", "request.started", "document.chunked",
		"call_log.written", "request.completed", "process.stopped",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if !strings.Contains(output, "├──") {
		t.Errorf("expected tree characters:\n%s", output)
	}
}

func TestRun_PicksLatestServer(t *testing.T) {
	database, path := testDB(t)
	seedServerTree(t, database)
	secondID := seedServerTree(t, database)
	db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{"role": "cli"})

	output := runCapture(t, "--db", path, "-L", "1")
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if !strings.HasPrefix(lines[0], "[11]") || secondID != 11 {
		t.Errorf("expected latest server root [11], got %s", lines[0])
	}
	if len(lines) != 2 || !strings.Contains(lines[1], "[...]") {
		t.Errorf("expected root plus truncation marker:\n%s", output)
	}
}

func TestRun_DepthLimit(t *testing.T) {
	database, path := testDB(t)
	seedServerTree(t, database)

	output := runCapture(t, "--db", path, "-L", "2")
	if strings.Contains(output, "document.chunked") {
		t.Errorf("document.chunked should be hidden at -L 2:\n%s", output)
	}
	if !strings.Contains(output, "[...]") {
		t.Errorf("expected [...] for truncated nodes:\n%s", output)
	}
}

func TestRun_Subtree(t *testing.T) {
	database, path := testDB(t)
	seedServerTree(t, database)

	output := runCapture(t, "--db", path, "--id", "3")
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if !strings.Contains(lines[0], "request.started") {
		t.Errorf("expected request.started as root:\n%s", output)
	}
	if strings.Contains(output, "catalog.loaded") {
		t.Errorf("catalog.loaded should not appear in request subtree:\n%s", output)
	}
}

func TestRun_JSON(t *testing.T) {
	database, path := testDB(t)
	seedServerTree(t, database)

	var je jsonEvent
	if err := json.Unmarshal([]byte(runCapture(t, "--db", path, "-json")), &je); err != nil {
		t.Fatal(err)
	}
	if je.EventType != db.EventProcessStarted || len(je.Children) != 3 {
		t.Errorf("unexpected json root: %s with %d children", je.EventType, len(je.Children))
	}

	var limited jsonEvent
	if err := json.Unmarshal([]byte(runCapture(t, "--db", path, "-json", "-L", "2", "-no-payload")), &limited); err != nil {
		t.Fatal(err)
	}
	for _, child := range limited.Children {
		if len(child.Children) > 0 || child.Payload != nil {
			t.Errorf("expected leaf children without payload at -L 2: %+v", child)
		}
	}
}

func TestRun_NoServerRoot(t *testing.T) {
	_, path := testDB(t)
	var buf bytes.Buffer
	if err := run([]string{"--db", path}, &buf); err == nil {
		t.Fatal("expected error for empty database")
	}
}
