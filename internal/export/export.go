// Package export writes the console view and committed timeframes as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cdtdelta/spyconsole/internal/console"
	"github.com/cdtdelta/spyconsole/internal/model"
)

// Column order of the event export. The time column is the console
// rendering; timestamp is the raw backend value.
var eventHeader = []string{
	"id", "timestamp", "time", "type", "tier", "severity", "description",
}

var timeframeHeader = []string{
	"id", "start_sec", "end_sec", "duration_sec", "note", "created_at",
}

// WriteEvents writes events in the order given, one row per event.
func WriteEvents(w io.Writer, events []*model.Event, opts console.Options) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(eventHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, e := range events {
		row := []string{
			e.ID.String(),
			e.Timestamp,
			opts.FormatTimestamp(e),
			string(e.Type),
			string(console.Classify(e)),
			e.Severity,
			e.Description,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteFile creates path and writes events to it.
func WriteFile(path string, events []*model.Event, opts console.Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := WriteEvents(f, events, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTimeframes writes committed timeframes.
func WriteTimeframes(w io.Writer, frames []*model.Timeframe) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(timeframeHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, tf := range frames {
		created := ""
		if !tf.CreatedAt.IsZero() {
			created = tf.CreatedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			tf.ID,
			formatSeconds(tf.Start),
			formatSeconds(tf.End),
			formatSeconds(tf.End - tf.Start),
			tf.Note,
			created,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 2, 64)
}
