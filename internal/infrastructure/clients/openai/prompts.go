package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
)

// buildDischargePrompt renders the patient snapshot into the discharge
// assessment prompt. The model must answer with the JSON shape of
// entities.DischargeVerdict.
func buildDischargePrompt(patient *entities.Patient) string {
	age := "unknown"
	if patient.Age != nil {
		age = fmt.Sprintf("%d", *patient.Age)
	}

	labs := "No labs ordered"
	if len(patient.LabResults) > 0 {
		if data, err := json.MarshalIndent(patient.LabResults, "", "  "); err == nil {
			labs = string(data)
		}
	}

	var b strings.Builder
	b.WriteString("You are an ER discharge assessment AI. Based on the patient data below, determine if this patient is ready for discharge.\n\n")
	fmt.Fprintf(&b, "Patient: %s, %syo %s\n", patient.Name, age, patient.Sex)
	fmt.Fprintf(&b, "Chief Complaint: %s\n", orNA(patient.ChiefComplaint))
	fmt.Fprintf(&b, "HPI: %s\n", orNA(patient.HPI))
	fmt.Fprintf(&b, "PMH: %s\n", orNA(patient.PMH))
	fmt.Fprintf(&b, "Diagnoses: %s\n", orNA(patient.PrimaryDiagnoses))
	fmt.Fprintf(&b, "Plan: %s\n\n", orNA(patient.Plan))
	fmt.Fprintf(&b, "Lab Results:\n%s\n\n", labs)
	b.WriteString(`Respond in JSON:
{
  "ready": true/false,
  "reasoning": "1-2 sentence explanation",
  "time_to_discharge_minutes": <estimated minutes from now, 0 if ready now>,
  "summary": "2-3 sentence discharge summary for doctor notification"
}`)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
