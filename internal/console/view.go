package console

import (
	"sync"

	"github.com/cdtdelta/spyconsole/internal/model"
)

// View caches the last derived console view. A new result is computed only
// when the list version, selector or search term changes.
type View struct {
	opts Options

	mu      sync.Mutex
	valid   bool
	version uint64
	sel     Selector
	search  string
	result  []*model.Event
	counts  map[Tier]int
}

// NewView returns an empty view using the given options.
func NewView(opts Options) *View {
	return &View{opts: opts.withDefaults()}
}

// Options returns the view's timestamp options.
func (v *View) Options() Options { return v.opts }

// Apply returns the filtered view of events. version identifies the list
// contents; callers must bump it whenever the list is replaced.
func (v *View) Apply(version uint64, events []*model.Event, sel Selector, search string) []*model.Event {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.apply(version, events, sel, search)
}

// ApplyCounted is Apply plus the per-tier totals of the same list, taken
// under one lock so the two always describe the same version.
func (v *View) ApplyCounted(version uint64, events []*model.Event, sel Selector, search string) ([]*model.Event, map[Tier]int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	result := v.apply(version, events, sel, search)
	counts := make(map[Tier]int, len(v.counts))
	for k, n := range v.counts {
		counts[k] = n
	}
	return result, counts
}

func (v *View) apply(version uint64, events []*model.Event, sel Selector, search string) []*model.Event {
	if v.valid && v.version == version && v.sel == sel && v.search == search {
		return v.result
	}
	if !v.valid || v.version != version {
		v.counts = Counts(events)
	}
	v.result = Filter(events, sel, search, v.opts)
	v.version, v.sel, v.search = version, sel, search
	v.valid = true
	return v.result
}

// Invalidate drops the cached result.
func (v *View) Invalidate() {
	v.mu.Lock()
	v.valid = false
	v.result = nil
	v.mu.Unlock()
}
