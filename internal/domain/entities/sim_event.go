package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// SimEventType represents the type of simulation event
type SimEventType string

const (
	SimEventTypeSimState       SimEventType = "sim_state"
	SimEventTypePatientAdded   SimEventType = "patient_added"
	SimEventTypePatientUpdate  SimEventType = "patient_update"
	SimEventTypeLabArrived     SimEventType = "lab_arrived"
	SimEventTypeDischargeReady SimEventType = "discharge_ready"
)

// SimEvent is a real-time update published to the broadcast sink. It is a
// closed union over the event types above; the constructors below are the
// only way events are built, so each variant carries exactly its own fields.
type SimEvent struct {
	ID        string       `json:"id"`
	Type      SimEventType `json:"type"`
	Timestamp time.Time    `json:"timestamp"`

	// sim_state fields
	CurrentTick *int     `json:"current_tick,omitempty"`
	Speed       *float64 `json:"speed_multiplier,omitempty"`
	Mode        SimMode  `json:"mode,omitempty"`
	IsRunning   *bool    `json:"is_running,omitempty"`

	// patient_added carries the full new record
	Patient *Patient `json:"patient,omitempty"`

	// patient_update / lab_arrived / discharge_ready target a patient
	PatientID string `json:"patient_id,omitempty"`

	// patient_update: changed-field diff plus the resulting version.
	// The version is reported alongside the diff, never inside it.
	Changes map[string]interface{} `json:"changes,omitempty"`
	Version *int                   `json:"version,omitempty"`

	// lab_arrived fields
	Test         string `json:"test,omitempty"`
	IsSurprising *bool  `json:"is_surprising,omitempty"`

	// discharge_ready fields
	Name    string `json:"name,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// NewSimStateEvent creates the per-tick heartbeat event
func NewSimStateEvent(state SimState) *SimEvent {
	tick := state.CurrentTick
	speed := state.Speed
	running := state.IsRunning
	return &SimEvent{
		ID:          generateEventID(),
		Type:        SimEventTypeSimState,
		Timestamp:   time.Now(),
		CurrentTick: &tick,
		Speed:       &speed,
		Mode:        state.Mode,
		IsRunning:   &running,
	}
}

// NewPatientAddedEvent creates an event carrying a freshly injected record
func NewPatientAddedEvent(patient *Patient) *SimEvent {
	return &SimEvent{
		ID:        generateEventID(),
		Type:      SimEventTypePatientAdded,
		Timestamp: time.Now(),
		PatientID: patient.ID,
		Patient:   patient,
	}
}

// NewPatientUpdateEvent creates a changed-field diff event for a patient
func NewPatientUpdateEvent(patientID string, changes map[string]interface{}, version int) *SimEvent {
	return &SimEvent{
		ID:        generateEventID(),
		Type:      SimEventTypePatientUpdate,
		Timestamp: time.Now(),
		PatientID: patientID,
		Changes:   changes,
		Version:   &version,
	}
}

// NewLabArrivedEvent creates a lab arrival notification
func NewLabArrivedEvent(patientID, test string, isSurprising bool) *SimEvent {
	return &SimEvent{
		ID:           generateEventID(),
		Type:         SimEventTypeLabArrived,
		Timestamp:    time.Now(),
		PatientID:    patientID,
		Test:         test,
		IsSurprising: &isSurprising,
	}
}

// NewDischargeReadyEvent creates a discharge readiness notification
func NewDischargeReadyEvent(patientID, name, summary string) *SimEvent {
	return &SimEvent{
		ID:        generateEventID(),
		Type:      SimEventTypeDischargeReady,
		Timestamp: time.Now(),
		PatientID: patientID,
		Name:      name,
		Summary:   summary,
	}
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

// randomString generates a random string of specified length
func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based if crypto/rand fails
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}
