package robot

import (
	"errors"
	"strings"
)

// ErrInvalidAction is returned for movement actions the backend does not know.
var ErrInvalidAction = errors.New("robot: invalid movement action")

// Action is a movement command understood by the backend's /movement endpoint.
type Action string

const (
	Forward   Action = "forward"
	Backward  Action = "backward"
	TurnLeft  Action = "turn_left"
	TurnRight Action = "turn_right"
	LookUp    Action = "look_up"
	LookDown  Action = "look_down"
	ActDead   Action = "act_dead"
)

var validActions = map[Action]bool{
	Forward: true, Backward: true, TurnLeft: true, TurnRight: true,
	LookUp: true, LookDown: true, ActDead: true,
}

// Valid reports whether the backend accepts the action.
func (a Action) Valid() bool { return validActions[a] }

// directionActions maps the dashboard's arrow-pad directions to actions.
var directionActions = map[string]Action{
	"up":        Forward,
	"down":      Backward,
	"left":      TurnLeft,
	"right":     TurnRight,
	"look-up":   LookUp,
	"look-down": LookDown,
}

// keyDirections maps keyboard keys to arrow-pad directions.
var keyDirections = map[string]string{
	"w": "up", "arrowup": "up",
	"s": "down", "arrowdown": "down",
	"a": "left", "arrowleft": "left",
	"d": "right", "arrowright": "right",
	"z": "look-up",
	"x": "look-down",
}

// ParseAction accepts a backend action name or a dashboard direction.
func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if a := Action(s); a.Valid() {
		return a, nil
	}
	if a, ok := directionActions[s]; ok {
		return a, nil
	}
	return "", ErrInvalidAction
}

// ActionForKey maps a keyboard key (as reported by KeyboardEvent.key) to an
// action. ok is false for unbound keys.
func ActionForKey(key string) (Action, bool) {
	dir, ok := keyDirections[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	return directionActions[dir], true
}

// SpeedPreset is one stop of the speed slider.
type SpeedPreset struct {
	Speed int    `json:"speed"`
	Label string `json:"label"`
}

// SpeedPresets are the slider stops, slowest first.
var SpeedPresets = []SpeedPreset{
	{Speed: 10, Label: "Low"},
	{Speed: 50, Label: "Medium"},
	{Speed: 100, Label: "High"},
}

// PresetIndex returns the slider index for a speed. Unknown speeds map to 0.
func PresetIndex(speed int) int {
	for i, p := range SpeedPresets {
		if p.Speed == speed {
			return i
		}
	}
	return 0
}
