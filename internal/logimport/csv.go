package logimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cdtdelta/spyconsole/internal/model"
)

// headerAliases maps lowercase CSV header names to event fields. Columns the
// console derives on export (time, tier) are not listed and are ignored.
var headerAliases = map[string]string{
	"id":          "id",
	"event_id":    "id",
	"timestamp":   "timestamp",
	"datetime":    "timestamp",
	"occurred_at": "timestamp",
	"description": "description",
	"desc":        "description",
	"message":     "description",
	"type":        "type",
	"event_type":  "type",
	"severity":    "severity",
	"level":       "severity",
}

// columnMap maps an event field to its column index.
type columnMap map[string]int

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(newNullStripper(r))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader
}

// readCSVHeader reads the header row. A description column is required;
// everything else is optional.
func readCSVHeader(reader *csv.Reader) (columnMap, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := columnMap{}
	for i, col := range header {
		col = strings.TrimSpace(strings.ToLower(strings.TrimPrefix(col, "\ufeff")))
		field, ok := headerAliases[col]
		if !ok {
			continue
		}
		// First one wins.
		if _, seen := cols[field]; !seen {
			cols[field] = i
		}
	}
	if _, ok := cols["description"]; !ok {
		return nil, fmt.Errorf("no description column in header (found: %s)", strings.Join(header, ", "))
	}
	return cols, nil
}

func decodeCSV(r io.Reader, keep func(*model.Event, bool)) error {
	reader := newCSVReader(r)
	cols, err := readCSVHeader(reader)
	if err != nil {
		return err
	}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			keep(nil, false)
			continue
		}
		keep(cols.event(row).normalize())
	}
}

func (c columnMap) event(row []string) rawEvent {
	get := func(field string) string {
		i, ok := c[field]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	return rawEvent{
		ID:          model.ID(strings.TrimSpace(get("id"))),
		Timestamp:   get("timestamp"),
		Description: get("description"),
		Type:        get("type"),
		Severity:    get("severity"),
	}
}

// nullStripper drops NUL bytes, which encoding/csv rejects.
type nullStripper struct {
	r io.Reader
}

func newNullStripper(r io.Reader) io.Reader {
	return &nullStripper{r: r}
}

func (ns *nullStripper) Read(p []byte) (int, error) {
	n, err := ns.r.Read(p)
	out := p[:0]
	for _, b := range p[:n] {
		if b != 0 {
			out = append(out, b)
		}
	}
	return len(out), err
}
