// Package console classifies mission log events into severity tiers and
// derives the filtered, searched, newest-first view shown in the console.
package console

import (
	"strings"

	"github.com/cdtdelta/spyconsole/internal/model"
)

// Tier is the derived severity of an event. It is never stored.
type Tier string

const (
	Critical Tier = "critical"
	Warning  Tier = "warning"
	Normal   Tier = "normal"
	// User is the tier of every manual event, whatever its text says.
	User Tier = "user"
)

// Keywords are matched as lowercase substrings of the description.
var (
	CriticalKeywords = []string{"breach", "unauthorized", "critical"}
	WarningKeywords  = []string{"suspicious", "anomaly", "unusual"}
)

// Classify returns the tier of an event. Critical keywords are checked
// before warning keywords; the first matching tier wins.
func Classify(e *model.Event) Tier {
	if e.IsManual() {
		return User
	}
	desc := strings.ToLower(e.Description)
	if containsAny(desc, CriticalKeywords) {
		return Critical
	}
	if containsAny(desc, WarningKeywords) {
		return Warning
	}
	return Normal
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Prefix is the console line prefix for a tier.
func Prefix(t Tier) string {
	switch t {
	case User:
		return "[USER]"
	case Critical:
		return "[CRITICAL]"
	case Warning:
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

// Color is the display color for a tier.
func Color(t Tier) string {
	switch t {
	case User:
		return "blue"
	case Critical:
		return "red"
	case Warning:
		return "yellow"
	default:
		return "green"
	}
}

// Counts tallies events per tier.
func Counts(events []*model.Event) map[Tier]int {
	counts := map[Tier]int{Critical: 0, Warning: 0, Normal: 0, User: 0}
	for _, e := range events {
		counts[Classify(e)]++
	}
	return counts
}
