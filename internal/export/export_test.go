package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cdtdelta/spyconsole/internal/console"
	"github.com/cdtdelta/spyconsole/internal/model"
)

func sampleEvents() []*model.Event {
	return []*model.Event{
		{ID: "2", Timestamp: "2025-03-01T14:00:05Z", Description: "Unauthorized access, door 3", Type: model.Auto, Severity: "info"},
		{ID: "1", Timestamp: "2025-03-01T14:00:00Z", Description: "guard, \"red hat\"", Type: model.Manual},
		{ID: "0", Timestamp: "garbage", Description: "boot", Type: model.Auto},
	}
}

func readAll(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("reading csv back: %v", err)
	}
	return rows
}

func TestWriteEvents(t *testing.T) {
	var buf bytes.Buffer
	opts := console.Options{Location: time.UTC, Layout: "2006-01-02 15:04:05"}
	if err := WriteEvents(&buf, sampleEvents(), opts); err != nil {
		t.Fatalf("WriteEvents failed: %v", err)
	}

	rows := readAll(t, buf.Bytes())
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != "id,timestamp,time,type,tier,severity,description" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][2] != "2025-03-01 14:00:05" {
		t.Errorf("expected formatted time, got %q", rows[1][2])
	}
	if rows[1][4] != "critical" {
		t.Errorf("expected critical tier, got %q", rows[1][4])
	}
	if rows[2][4] != "user" || rows[2][6] != "guard, \"red hat\"" {
		t.Errorf("expected quoted manual row to round-trip, got %v", rows[2])
	}
	if rows[3][2] != "garbage" {
		t.Errorf("expected unparseable timestamp verbatim, got %q", rows[3][2])
	}
}

func TestWriteEventsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEvents(&buf, nil, console.Options{}); err != nil {
		t.Fatal(err)
	}
	if rows := readAll(t, buf.Bytes()); len(rows) != 1 {
		t.Errorf("expected header only, got %d rows", len(rows))
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.csv")
	if err := WriteFile(path, sampleEvents(), console.Options{Location: time.UTC}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if rows := readAll(t, data); len(rows) != 4 {
		t.Errorf("expected 4 rows, got %d", len(rows))
	}

	if err := WriteFile(filepath.Join(t.TempDir(), "missing", "x.csv"), nil, console.Options{}); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestWriteTimeframes(t *testing.T) {
	created := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	frames := []*model.Timeframe{
		{ID: "a", Start: 10, End: 25.5, Note: "perimeter sweep", CreatedAt: created},
		{ID: "b", Start: 100, End: 100.25},
	}
	var buf bytes.Buffer
	if err := WriteTimeframes(&buf, frames); err != nil {
		t.Fatalf("WriteTimeframes failed: %v", err)
	}
	rows := readAll(t, buf.Bytes())
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if got := strings.Join(rows[1], "|"); got != "a|10.00|25.50|15.50|perimeter sweep|2025-03-01T14:00:00Z" {
		t.Errorf("unexpected row: %s", got)
	}
	if rows[2][5] != "" {
		t.Errorf("expected empty created_at for zero time, got %q", rows[2][5])
	}
}
