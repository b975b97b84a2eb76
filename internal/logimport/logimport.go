// Package logimport reads robot event logs from disk: the spy_logs.json and
// events.json arrays the robot server writes, JSONL dumps with one event
// per line, and console CSV exports.
package logimport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cdtdelta/spyconsole/internal/model"
)

// ReadResult contains the outcome of an import operation.
type ReadResult struct {
	Events   []*model.Event
	Count    int
	Excluded int
}

// Format is the detected file layout.
type Format int

const (
	FormatArray Format = iota
	FormatJSONL
	FormatCSV
)

func (f Format) String() string {
	switch f {
	case FormatJSONL:
		return "jsonl"
	case FormatCSV:
		return "csv"
	}
	return "array"
}

// rawEvent is what the robot writes. Some older logs used "message" for the
// description.
type rawEvent struct {
	ID          model.ID `json:"id"`
	Timestamp   string   `json:"timestamp"`
	Description string   `json:"description"`
	Message     string   `json:"message"`
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
}

// Detect reports the layout of r by its first non-space byte. Anything that
// does not open a JSON value is treated as CSV.
func Detect(r *bufio.Reader) (Format, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, fmt.Errorf("empty file")
			}
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return FormatArray, r.UnreadByte()
		case '{':
			return FormatJSONL, r.UnreadByte()
		case 0:
			return 0, fmt.Errorf("unexpected NUL byte; not a text event log")
		default:
			return FormatCSV, r.UnreadByte()
		}
	}
}

// ValidateFile checks that a file looks like an event log.
func ValidateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	format, err := Detect(br)
	if err != nil || format != FormatCSV {
		return err
	}
	_, err = readCSVHeader(newCSVReader(br))
	return err
}

// ReadEvents reads all events from a JSON array, JSONL or CSV file.
// An onProgress callback is called every 1,000 events if non-nil.
func ReadEvents(path string, onProgress func(count int)) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return Decode(f, onProgress)
}

// Decode reads events from r. Entries that are not JSON objects, malformed
// CSV rows and entries with no description are counted as excluded.
func Decode(r io.Reader, onProgress func(count int)) (*ReadResult, error) {
	br := bufio.NewReader(r)
	format, err := Detect(br)
	if err != nil {
		return nil, err
	}

	result := &ReadResult{}
	keep := func(e *model.Event, ok bool) {
		if !ok {
			result.Excluded++
			return
		}
		result.Events = append(result.Events, e)
		result.Count++
		if onProgress != nil && result.Count%1000 == 0 {
			onProgress(result.Count)
		}
	}
	add := func(raw []byte) { keep(toEvent(raw)) }

	switch format {
	case FormatCSV:
		if err := decodeCSV(br, keep); err != nil {
			return nil, err
		}
		return result, nil
	case FormatArray:
		var items []json.RawMessage
		if err := json.NewDecoder(br).Decode(&items); err != nil {
			return nil, fmt.Errorf("decoding event array: %w", err)
		}
		for _, raw := range items {
			add(raw)
		}
		return result, nil
	}

	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading lines: %w", err)
	}
	return result, nil
}

func toEvent(raw []byte) (*model.Event, bool) {
	var re rawEvent
	if err := json.Unmarshal(raw, &re); err != nil {
		return nil, false
	}
	return re.normalize()
}

func (re rawEvent) normalize() (*model.Event, bool) {
	desc := strings.TrimSpace(re.Description)
	if desc == "" {
		desc = strings.TrimSpace(re.Message)
	}
	if desc == "" {
		return nil, false
	}

	typ := model.EventType(strings.ToLower(strings.TrimSpace(re.Type)))
	if typ != model.Manual {
		typ = model.Auto
	}
	return &model.Event{
		ID:          re.ID,
		Timestamp:   strings.TrimSpace(re.Timestamp),
		Description: desc,
		Type:        typ,
		Severity:    strings.ToLower(strings.TrimSpace(re.Severity)),
	}, true
}
