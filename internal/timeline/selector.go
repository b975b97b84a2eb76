package timeline

// State is the drag gesture state.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Overlay is the highlighted band drawn while a drag is in progress.
type Overlay struct {
	LeftPercent  float64 `json:"left"`
	WidthPercent float64 `json:"width"`
}

// Selector owns the transient selection of one timeline track.
// It is not safe for concurrent use; it lives on the UI event loop.
type Selector struct {
	duration float64

	// OnMarkTimeframe receives each committed selection with start <= end.
	OnMarkTimeframe func(start, end float64)
	// OnTimeChange receives seek requests from plain clicks.
	OnTimeChange func(time float64)

	state    State
	start    float64
	end      float64
	hasStart bool
	hasEnd   bool
}

// NewSelector returns an idle selector for a window of the given duration.
func NewSelector(duration float64, onMark func(start, end float64), onTime func(time float64)) (*Selector, error) {
	if _, err := NewTrack(duration); err != nil {
		return nil, err
	}
	return &Selector{
		duration:        duration,
		OnMarkTimeframe: onMark,
		OnTimeChange:    onTime,
	}, nil
}

// State reports whether a drag is in progress.
func (s *Selector) State() State { return s.state }

// Down starts a gesture at the pointer position.
func (s *Selector) Down(clientX float64, r Rect) {
	s.start = PositionToTime(clientX, r, s.duration)
	s.hasStart = true
	s.end = 0
	s.hasEnd = false
	s.state = Dragging
}

// Move extends the selection while dragging. Moves outside a gesture are ignored.
func (s *Selector) Move(clientX float64, r Rect) {
	if s.state != Dragging || !s.hasStart {
		return
	}
	s.end = PositionToTime(clientX, r, s.duration)
	s.hasEnd = true
}

// Up ends the gesture. If the pointer moved since Down, the normalized
// selection is emitted. The transient state is always cleared.
// It reports whether a timeframe was committed.
func (s *Selector) Up() bool {
	if s.state != Dragging {
		return false
	}
	committed := false
	if s.hasStart && s.hasEnd {
		start, end := Normalize(s.start, s.end, s.duration)
		if s.OnMarkTimeframe != nil {
			s.OnMarkTimeframe(start, end)
		}
		committed = true
	}
	s.reset()
	return committed
}

// Leave ends the gesture as if released at the last known position.
func (s *Selector) Leave() bool { return s.Up() }

// TouchStart, TouchMove and TouchEnd mirror the pointer handlers for the
// first touch point.
func (s *Selector) TouchStart(clientX float64, r Rect) { s.Down(clientX, r) }
func (s *Selector) TouchMove(clientX float64, r Rect)  { s.Move(clientX, r) }
func (s *Selector) TouchEnd() bool                     { return s.Up() }

// Click seeks playback to the clicked position. It does not touch the
// drag state.
func (s *Selector) Click(clientX float64, r Rect) float64 {
	t := PositionToTime(clientX, r, s.duration)
	if s.OnTimeChange != nil {
		s.OnTimeChange(t)
	}
	return t
}

// Selection returns the in-progress selection, normalized, if both ends
// are known.
func (s *Selector) Selection() (start, end float64, ok bool) {
	if s.state != Dragging || !s.hasStart || !s.hasEnd {
		return 0, 0, false
	}
	start, end = Normalize(s.start, s.end, s.duration)
	return start, end, true
}

// SelectionOverlay returns the band to highlight while dragging.
func (s *Selector) SelectionOverlay() (Overlay, bool) {
	start, end, ok := s.Selection()
	if !ok {
		return Overlay{}, false
	}
	return Overlay{
		LeftPercent:  start / s.duration * 100,
		WidthPercent: (end - start) / s.duration * 100,
	}, true
}

func (s *Selector) reset() {
	s.state = Idle
	s.start, s.end = 0, 0
	s.hasStart, s.hasEnd = false, false
}
