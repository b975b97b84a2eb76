// Package timeline maps positions on the review track to times within a
// fixed-length window and turns drag gestures into committed timeframes.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cdtdelta/spyconsole/internal/model"
)

// ErrInvalidDuration is returned when a window duration is not positive.
var ErrInvalidDuration = errors.New("timeline: duration must be positive")

// DefaultWindow is the review buffer length shown on the track.
const DefaultWindow = 300.0

// Rect is the on-screen bounding box of the track along the x axis.
type Rect struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// Marker is an event placed on the track.
type Marker struct {
	Event   *model.Event `json:"event"`
	Percent float64      `json:"percent"`
	// Valid is false when the timestamp could not be parsed; such markers
	// sit at 0%.
	Valid bool `json:"valid"`
}

// Track is a window of fixed duration in seconds.
type Track struct {
	Duration float64
	Location *time.Location
}

// NewTrack returns a track for a window of the given duration.
func NewTrack(duration float64) (*Track, error) {
	if !(duration > 0) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidDuration, duration)
	}
	return &Track{Duration: duration, Location: time.Local}, nil
}

// PositionToTime converts a pointer x coordinate to seconds within the window.
// The result is clamped to [0, duration]. A zero-width track or a
// non-positive duration yields 0.
func PositionToTime(clientX float64, r Rect, duration float64) float64 {
	if !(duration > 0) || !(r.Width > 0) {
		return 0
	}
	t := (clientX - r.Left) / r.Width * duration
	return clamp(t, 0, duration)
}

// PlayheadPercent is the playback indicator position. The caller guarantees
// 0 <= currentTime <= duration.
func PlayheadPercent(currentTime, duration float64) float64 {
	if !(duration > 0) {
		return 0
	}
	return currentTime / duration * 100
}

// PlaceMarkers positions every event on the track by its time within the
// window: (timestamp_ms mod window_ms) / window_ms * 100. Events from
// different absolute times that share a remainder land on the same spot.
func PlaceMarkers(events []*model.Event, duration float64, loc *time.Location) []Marker {
	markers := make([]Marker, 0, len(events))
	for _, e := range events {
		markers = append(markers, placeMarker(e, duration, loc))
	}
	return markers
}

func placeMarker(e *model.Event, duration float64, loc *time.Location) Marker {
	m := Marker{Event: e}
	if !(duration > 0) {
		return m
	}
	ts, ok := e.Time(loc)
	if !ok {
		return m
	}
	window := duration * 1000
	rem := math.Mod(float64(ts.UnixMilli()), window)
	if rem < 0 {
		rem += window
	}
	m.Percent = rem / window * 100
	m.Valid = true
	return m
}

// Markers places events on this track.
func (t *Track) Markers(events []*model.Event) []Marker {
	return PlaceMarkers(events, t.Duration, t.Location)
}

// Density counts markers per equal-width bin across the track.
// Invalid markers are not counted.
func Density(markers []Marker, bins int) []int {
	if bins <= 0 {
		return nil
	}
	counts := make([]int, bins)
	for _, m := range markers {
		if !m.Valid {
			continue
		}
		idx := int(m.Percent / 100 * float64(bins))
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return counts
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	minutes := int(seconds / 60)
	rest := int(math.Mod(seconds, 60))
	return fmt.Sprintf("%d:%02d", minutes, rest)
}

// Normalize clamps both ends of a selection to [0, duration] and orders
// them so start <= end.
func Normalize(start, end, duration float64) (float64, float64) {
	start, end = clamp(start, 0, duration), clamp(end, 0, duration)
	if start > end {
		start, end = end, start
	}
	return start, end
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
