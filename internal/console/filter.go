package console

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cdtdelta/spyconsole/internal/model"
)

// ErrUnknownSelector is returned by ParseSelector for unrecognized filters.
var ErrUnknownSelector = errors.New("console: unknown filter selector")

// Selector picks which events the console shows.
type Selector string

const (
	All          Selector = "all"
	AutoOnly     Selector = "auto"
	ManualOnly   Selector = "manual"
	CriticalOnly Selector = "critical"
	WarningOnly  Selector = "warning"
	NormalOnly   Selector = "normal"
)

const defaultLayout = "1/2/2006, 3:04:05 PM"

// Selectors lists every valid selector in menu order.
var Selectors = []Selector{All, AutoOnly, ManualOnly, CriticalOnly, WarningOnly, NormalOnly}

// ParseSelector validates a selector string. An empty string means All.
func ParseSelector(s string) (Selector, error) {
	if s == "" {
		return All, nil
	}
	for _, sel := range Selectors {
		if string(sel) == strings.ToLower(s) {
			return sel, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSelector, s)
}

// Options controls how timestamps are parsed and rendered for search.
type Options struct {
	// Location interprets zone-less timestamps and renders the search string.
	Location *time.Location
	// Layout is the display format searched alongside the description.
	// It defaults to the en-US locale string shape "1/2/2006, 3:04:05 PM".
	Layout string
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Layout == "" {
		o.Layout = defaultLayout
	}
	return o
}

// FormatTimestamp renders an event timestamp the way the console shows it.
// Unparseable timestamps are returned verbatim.
func (o Options) FormatTimestamp(e *model.Event) string {
	o = o.withDefaults()
	t, ok := e.Time(o.Location)
	if !ok {
		return e.Timestamp
	}
	return t.In(o.Location).Format(o.Layout)
}

// Matches reports whether an event passes the selector.
// Severity selectors compare the computed tier, so manual events (tier
// User) never match critical, warning or normal.
func (sel Selector) Matches(e *model.Event) bool {
	switch sel {
	case AutoOnly:
		return e.Type == model.Auto
	case ManualOnly:
		return e.Type == model.Manual
	case CriticalOnly:
		return Classify(e) == Critical
	case WarningOnly:
		return Classify(e) == Warning
	case NormalOnly:
		return Classify(e) == Normal
	default:
		return true
	}
}

// Filter applies the selector, then the case-insensitive search term, and
// returns the survivors newest first. The sort is stable and events with
// unparseable timestamps go last. The input slice is not modified.
func Filter(events []*model.Event, sel Selector, search string, opts Options) []*model.Event {
	opts = opts.withDefaults()
	fold := cases.Lower(language.Und)
	term := fold.String(search)

	type keyed struct {
		e  *model.Event
		ts time.Time
		ok bool
	}

	kept := make([]keyed, 0, len(events))
	for _, e := range events {
		if !sel.Matches(e) {
			continue
		}
		ts, ok := e.Time(opts.Location)
		if term != "" {
			shown := e.Timestamp
			if ok {
				shown = ts.In(opts.Location).Format(opts.Layout)
			}
			if !strings.Contains(fold.String(e.Description), term) &&
				!strings.Contains(fold.String(shown), term) {
				continue
			}
		}
		kept = append(kept, keyed{e: e, ts: ts, ok: ok})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return false
		}
		return a.ts.After(b.ts)
	})

	out := make([]*model.Event, len(kept))
	for i, k := range kept {
		out[i] = k.e
	}
	return out
}
