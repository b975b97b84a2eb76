package timeline

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cdtdelta/spyconsole/internal/model"
)

var track200 = Rect{Left: 0, Width: 200}

func TestNewTrackRejectsNonPositiveDuration(t *testing.T) {
	for _, d := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := NewTrack(d); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("NewTrack(%v): expected ErrInvalidDuration, got %v", d, err)
		}
	}
	if _, err := NewTrack(300); err != nil {
		t.Errorf("NewTrack(300): unexpected error %v", err)
	}
}

func TestPositionToTime(t *testing.T) {
	tests := []struct {
		name    string
		clientX float64
		rect    Rect
		want    float64
	}{
		{"left edge", 0, track200, 0},
		{"right edge", 200, track200, 300},
		{"middle", 100, track200, 150},
		{"offset track", 150, Rect{Left: 50, Width: 200}, 150},
		{"left of track clamps", -40, track200, 0},
		{"right of track clamps", 260, track200, 300},
		{"zero width", 10, Rect{Left: 0, Width: 0}, 0},
	}

	for _, tt := range tests {
		got := PositionToTime(tt.clientX, tt.rect, 300)
		if got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestPositionToTimeZeroDuration(t *testing.T) {
	if got := PositionToTime(100, track200, 0); got != 0 {
		t.Errorf("expected 0 for zero duration, got %v", got)
	}
}

func TestPositionToTimeWithinBounds(t *testing.T) {
	for _, duration := range []float64{0.5, 1, 60, 300, 3600} {
		for x := 0.0; x <= 200; x += 7.3 {
			got := PositionToTime(x, track200, duration)
			if got < 0 || got > duration {
				t.Fatalf("PositionToTime(%v, duration=%v) = %v out of range", x, duration, got)
			}
		}
	}
}

func TestPlaceMarkersWrapsByWindow(t *testing.T) {
	events := []*model.Event{
		{ID: "1", Timestamp: "2024-02-26T12:00:00Z", Type: model.Auto},
		{ID: "2", Timestamp: "2024-02-26T12:02:30Z", Type: model.Auto},
		{ID: "3", Timestamp: "2024-02-26T12:05:00Z", Type: model.Manual},
		{ID: "4", Timestamp: "garbage", Type: model.Auto},
	}

	markers := PlaceMarkers(events, 300, time.UTC)
	if len(markers) != 4 {
		t.Fatalf("expected 4 markers, got %d", len(markers))
	}

	// 12:00:00 is an exact multiple of 300s since the epoch.
	if markers[0].Percent != 0 || !markers[0].Valid {
		t.Errorf("expected marker 1 at 0%%, got %v (valid=%v)", markers[0].Percent, markers[0].Valid)
	}
	if markers[1].Percent != 50 {
		t.Errorf("expected marker 2 at 50%%, got %v", markers[1].Percent)
	}
	// Five minutes later aliases back onto the same position.
	if markers[2].Percent != markers[0].Percent {
		t.Errorf("expected marker 3 to alias marker 1, got %v vs %v", markers[2].Percent, markers[0].Percent)
	}
	if markers[3].Valid || markers[3].Percent != 0 {
		t.Errorf("expected unparseable marker at 0%% and invalid, got %v (valid=%v)", markers[3].Percent, markers[3].Valid)
	}
}

func TestPlaceMarkersZeroDuration(t *testing.T) {
	events := []*model.Event{{ID: "1", Timestamp: "2024-02-26T12:01:00Z"}}
	markers := PlaceMarkers(events, 0, time.UTC)
	if markers[0].Percent != 0 || markers[0].Valid {
		t.Errorf("expected 0%% invalid marker for zero duration, got %+v", markers[0])
	}
}

func TestPlaceMarkersPreEpoch(t *testing.T) {
	events := []*model.Event{{ID: "1", Timestamp: "1969-12-31T23:59:00Z"}}
	markers := PlaceMarkers(events, 300, time.UTC)
	if markers[0].Percent < 0 || markers[0].Percent >= 100 {
		t.Errorf("expected pre-epoch marker inside the track, got %v", markers[0].Percent)
	}
	if math.Abs(markers[0].Percent-80) > 1e-9 {
		t.Errorf("expected 80%%, got %v", markers[0].Percent)
	}
}

func TestPlayheadPercent(t *testing.T) {
	if got := PlayheadPercent(75, 300); got != 25 {
		t.Errorf("expected 25, got %v", got)
	}
	if got := PlayheadPercent(10, 0); got != 0 {
		t.Errorf("expected 0 for zero duration, got %v", got)
	}
}

func TestDensity(t *testing.T) {
	markers := []Marker{
		{Percent: 0, Valid: true},
		{Percent: 10, Valid: true},
		{Percent: 55, Valid: true},
		{Percent: 99.9, Valid: true},
		{Percent: 0, Valid: false},
	}
	got := Density(markers, 4)
	want := []int{2, 0, 1, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bin %d: expected %d, got %d", i, want[i], got[i])
		}
	}
	if Density(markers, 0) != nil {
		t.Error("expected nil for zero bins")
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{9.9, "0:09"},
		{65, "1:05"},
		{300, "5:00"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		start, end         float64
		wantStart, wantEnd float64
	}{
		{10, 20, 10, 20},
		{20, 10, 10, 20},
		{-5, 400, 0, 300},
		{400, -5, 0, 300},
		{350, 320, 300, 300},
	}
	for _, tt := range tests {
		start, end := Normalize(tt.start, tt.end, 300)
		if start != tt.wantStart || end != tt.wantEnd {
			t.Errorf("Normalize(%v, %v) = (%v, %v), want (%v, %v)",
				tt.start, tt.end, start, end, tt.wantStart, tt.wantEnd)
		}
	}
}
