// Package sensor turns raw ultrasonic readings into the dashboard's
// stealth meter and proximity categories.
package sensor

import "math"

// NoReading is what the ultrasonic driver returns when the echo times out.
const NoReading = -2

// StealthLevel maps a distance in centimetres to an exposure level in
// [0, 100]. Closer than 30cm is fully exposed, farther than 200cm is safe,
// and the range between is linear.
func StealthLevel(distanceCM float64) int {
	switch {
	case distanceCM == NoReading:
		return 0
	case distanceCM < 30:
		return 100
	case distanceCM > 200:
		return 0
	}
	return int(math.Round((200 - distanceCM) * 100 / 170))
}

// Band is the coarse colour band of the stealth meter.
type Band string

const (
	Safe    Band = "safe"
	Caution Band = "caution"
	Exposed Band = "exposed"
)

// BandFor returns the band of a stealth level.
func BandFor(level int) Band {
	switch {
	case level <= 30:
		return Safe
	case level <= 70:
		return Caution
	default:
		return Exposed
	}
}

// Category is the proximity class the robot logs when a reading holds.
type Category string

const (
	CategoryCritical Category = "critical"
	CategoryWarning  Category = "warning"
	CategoryInfo     Category = "info"
	CategorySafe     Category = "safe"
)

// CategoryFor classifies a distance in centimetres.
func CategoryFor(distanceCM float64) Category {
	switch {
	case distanceCM <= 30:
		return CategoryCritical
	case distanceCM <= 70:
		return CategoryWarning
	case distanceCM <= 100:
		return CategoryInfo
	default:
		return CategorySafe
	}
}

// Reading is one sampled distance with its derived values.
type Reading struct {
	DistanceCM float64  `json:"distance"`
	Level      int      `json:"level"`
	Band       Band     `json:"band"`
	Category   Category `json:"category"`
}

// NewReading derives all display values for a distance.
func NewReading(distanceCM float64) Reading {
	level := StealthLevel(distanceCM)
	return Reading{
		DistanceCM: distanceCM,
		Level:      level,
		Band:       BandFor(level),
		Category:   CategoryFor(distanceCM),
	}
}
