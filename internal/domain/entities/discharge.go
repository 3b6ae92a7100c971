package entities

// DischargeVerdict is the structured result of a discharge readiness
// assessment produced outside the tick loop
type DischargeVerdict struct {
	Ready                  bool   `json:"ready"`
	Reasoning              string `json:"reasoning"`
	TimeToDischargeMinutes int    `json:"time_to_discharge_minutes"`
	Summary                string `json:"summary"`
}
