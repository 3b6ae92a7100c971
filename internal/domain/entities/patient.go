package entities

// PatientStatus represents a patient's position in the department pipeline
type PatientStatus string

const (
	StatusCalledIn    PatientStatus = "called_in"
	StatusWaitingRoom PatientStatus = "waiting_room"
	StatusERBed       PatientStatus = "er_bed"
	StatusDischarge   PatientStatus = "discharge"
	StatusDone        PatientStatus = "done"

	// Escalation branches reachable only through automatic progression out of
	// an ER bed. They are not part of the canonical pipeline order.
	StatusOR  PatientStatus = "or"
	StatusICU PatientStatus = "icu"
)

// StatusOrder is the canonical pipeline, first to last
var StatusOrder = []PatientStatus{
	StatusCalledIn,
	StatusWaitingRoom,
	StatusERBed,
	StatusDischarge,
	StatusDone,
}

// StatusIndex returns the position of status in the canonical order, or -1
// if the status is outside it (done included at the last position)
func StatusIndex(status PatientStatus) int {
	for i, s := range StatusOrder {
		if s == status {
			return i
		}
	}
	return -1
}

// PatientColor is a coarse urgency flag, distinct from status
type PatientColor string

const (
	ColorGrey   PatientColor = "grey"
	ColorYellow PatientColor = "yellow"
	ColorGreen  PatientColor = "green"
	ColorRed    PatientColor = "red"
)

// LabResult is a pending or arrived lab test attached to a patient.
// Immutable once attached; ArrivesAtTick is rewritten to an absolute tick
// when the patient is injected into a running simulation.
type LabResult struct {
	Test          string `json:"test" db:"test"`
	Result        string `json:"result" db:"result"`
	IsSurprising  bool   `json:"is_surprising" db:"is_surprising"`
	ArrivesAtTick int    `json:"arrives_at_tick" db:"arrives_at_tick"`
}

// Patient represents a patient record moving through the department
type Patient struct {
	ID                       string        `json:"pid" db:"pid"`
	Name                     string        `json:"name" db:"name"`
	Sex                      string        `json:"sex,omitempty" db:"sex"`
	Age                      *int          `json:"age,omitempty" db:"age"`
	DOB                      string        `json:"dob,omitempty" db:"dob"`
	ChiefComplaint           string        `json:"chief_complaint,omitempty" db:"chief_complaint"`
	HPI                      string        `json:"hpi,omitempty" db:"hpi"`
	PMH                      string        `json:"pmh,omitempty" db:"pmh"`
	FamilySocialHistory      string        `json:"family_social_history,omitempty" db:"family_social_history"`
	ReviewOfSystems          string        `json:"review_of_systems,omitempty" db:"review_of_systems"`
	Objective                string        `json:"objective,omitempty" db:"objective"`
	PrimaryDiagnoses         string        `json:"primary_diagnoses,omitempty" db:"primary_diagnoses"`
	Justification            string        `json:"justification,omitempty" db:"justification"`
	Plan                     string        `json:"plan,omitempty" db:"plan"`
	ESIScore                 *int          `json:"esi_score,omitempty" db:"esi_score"`
	TriageNotes              string        `json:"triage_notes,omitempty" db:"triage_notes"`
	Color                    PatientColor  `json:"color" db:"color"`
	Status                   PatientStatus `json:"status" db:"status"`
	BedNumber                *int          `json:"bed_number,omitempty" db:"bed_number"`
	IsSimulated              bool          `json:"is_simulated" db:"is_simulated"`
	Version                  int           `json:"version" db:"version"`
	LabResults               []LabResult   `json:"lab_results,omitempty" db:"lab_results"`
	TimeToDischarge          *int          `json:"time_to_discharge,omitempty" db:"time_to_discharge"`
	DischargeBlockedReason   *string       `json:"discharge_blocked_reason,omitempty" db:"discharge_blocked_reason"`
	EnteredCurrentStatusTick int           `json:"entered_current_status_tick" db:"entered_current_status_tick"`
}

// Clone returns a deep copy of the patient record
func (p *Patient) Clone() *Patient {
	clone := *p
	if p.Age != nil {
		age := *p.Age
		clone.Age = &age
	}
	if p.ESIScore != nil {
		score := *p.ESIScore
		clone.ESIScore = &score
	}
	if p.BedNumber != nil {
		bed := *p.BedNumber
		clone.BedNumber = &bed
	}
	if p.TimeToDischarge != nil {
		ttd := *p.TimeToDischarge
		clone.TimeToDischarge = &ttd
	}
	if p.DischargeBlockedReason != nil {
		reason := *p.DischargeBlockedReason
		clone.DischargeBlockedReason = &reason
	}
	if p.LabResults != nil {
		clone.LabResults = make([]LabResult, len(p.LabResults))
		copy(clone.LabResults, p.LabResults)
	}
	return &clone
}

// PendingLabs returns the labs that have not yet arrived as of currentTick
func (p *Patient) PendingLabs(currentTick int) []LabResult {
	var pending []LabResult
	for _, lab := range p.LabResults {
		if lab.ArrivesAtTick > currentTick {
			pending = append(pending, lab)
		}
	}
	return pending
}
