package entities

// SimMode selects between operator-driven and autonomous progression
type SimMode string

const (
	ModeManual SimMode = "manual"
	ModeAuto   SimMode = "auto"
)

// SimState is a snapshot of the engine's process-wide state
type SimState struct {
	CurrentTick int     `json:"current_tick"`
	Speed       float64 `json:"speed_multiplier"`
	Mode        SimMode `json:"mode"`
	IsRunning   bool    `json:"is_running"`
}
