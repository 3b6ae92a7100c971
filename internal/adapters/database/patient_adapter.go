package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/repositories"
	"github.com/adetayo/edflowsim/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/adetayo/edflowsim/backend/pkg/errors"
)

var patientColumns = []interface{}{
	"pid", "name", "sex", "age", "dob", "chief_complaint", "hpi", "pmh",
	"family_social_history", "review_of_systems", "objective",
	"primary_diagnoses", "justification", "plan", "esi_score", "triage_notes",
	"color", "status", "bed_number", "is_simulated", "version", "lab_results",
	"time_to_discharge", "discharge_blocked_reason", "entered_current_status_tick",
}

// PatientAdapter implements the PatientRepository interface on Postgres.
// Version conflicts are detected in a single statement: the update is
// predicated on the stored version, so a concurrent writer that got there
// first leaves zero affected rows.
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// List retrieves patients matching the filter, oldest first
func (a *PatientAdapter) List(ctx context.Context, filter repositories.PatientFilter) ([]*entities.Patient, error) {
	ds := a.db.Select(patientColumns...).From("patients")

	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": string(filter.Status)})
	}
	if filter.ExcludeStatus != "" {
		ds = ds.Where(goqu.C("status").Neq(string(filter.ExcludeStatus)))
	}

	ds = ds.Order(goqu.I("created_at").Asc())

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list patients", err)
	}
	defer rows.Close()

	var patients []*entities.Patient
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan patient", err)
		}
		patients = append(patients, patient)
	}

	return patients, rows.Err()
}

// GetByID retrieves a patient by ID
func (a *PatientAdapter) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	query, args, err := a.db.Select(patientColumns...).
		From("patients").
		Where(goqu.Ex{"pid": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	row := a.client.DB().QueryRowContext(ctx, query, args...)
	patient, err := scanPatient(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}

	return patient, nil
}

// Insert creates a new patient record, assigning an id when absent
func (a *PatientAdapter) Insert(ctx context.Context, patient *entities.Patient) (*entities.Patient, error) {
	stored := patient.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Color == "" {
		stored.Color = entities.ColorGrey
	}
	if stored.Status == "" {
		stored.Status = entities.StatusCalledIn
	}

	labs, err := json.Marshal(stored.LabResults)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to marshal lab results", err)
	}

	record := goqu.Record{
		"pid":                         stored.ID,
		"name":                        stored.Name,
		"sex":                         nullString(stored.Sex),
		"age":                         stored.Age,
		"dob":                         nullString(stored.DOB),
		"chief_complaint":             nullString(stored.ChiefComplaint),
		"hpi":                         nullString(stored.HPI),
		"pmh":                         nullString(stored.PMH),
		"family_social_history":       nullString(stored.FamilySocialHistory),
		"review_of_systems":           nullString(stored.ReviewOfSystems),
		"objective":                   nullString(stored.Objective),
		"primary_diagnoses":           nullString(stored.PrimaryDiagnoses),
		"justification":               nullString(stored.Justification),
		"plan":                        nullString(stored.Plan),
		"esi_score":                   stored.ESIScore,
		"triage_notes":                nullString(stored.TriageNotes),
		"color":                       string(stored.Color),
		"status":                      string(stored.Status),
		"bed_number":                  stored.BedNumber,
		"is_simulated":                stored.IsSimulated,
		"version":                     stored.Version,
		"lab_results":                 labs,
		"time_to_discharge":           stored.TimeToDischarge,
		"discharge_blocked_reason":    stored.DischargeBlockedReason,
		"entered_current_status_tick": stored.EnteredCurrentStatusTick,
		"created_at":                  time.Now(),
	}

	query, args, err := a.db.Insert("patients").Rows(record).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to insert patient", err)
	}

	return stored, nil
}

// Update applies the changed fields only when the stored version still equals
// expectedVersion; the version advances by exactly one with the same write
func (a *PatientAdapter) Update(ctx context.Context, id string, changes map[string]interface{}, expectedVersion int) (*entities.Patient, error) {
	record := goqu.Record{"version": expectedVersion + 1}
	for key, value := range changes {
		switch key {
		case "status", "color":
			record[key] = asString(value)
		case "bed_number", "entered_current_status_tick", "time_to_discharge", "discharge_blocked_reason":
			record[key] = value
		default:
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown patient field %q", key))
		}
	}

	query, args, err := a.db.Update("patients").
		Set(record).
		Where(goqu.Ex{"pid": id, "version": expectedVersion}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to update patient", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		// Either the record is gone or someone else won the version race
		current, getErr := a.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.NewConflictError(fmt.Sprintf(
			"patient %s version mismatch: have %d, expected %d", id, current.Version, expectedVersion))
	}

	return a.GetByID(ctx, id)
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (*entities.Patient, error) {
	patient := &entities.Patient{}
	var sex, dob, chiefComplaint, hpi, pmh, familySocial, reviewOfSystems sql.NullString
	var objective, primaryDiagnoses, justification, plan, triageNotes sql.NullString
	var age, esiScore, bedNumber, timeToDischarge sql.NullInt64
	var dischargeBlockedReason sql.NullString
	var labs []byte

	err := row.Scan(
		&patient.ID,
		&patient.Name,
		&sex,
		&age,
		&dob,
		&chiefComplaint,
		&hpi,
		&pmh,
		&familySocial,
		&reviewOfSystems,
		&objective,
		&primaryDiagnoses,
		&justification,
		&plan,
		&esiScore,
		&triageNotes,
		&patient.Color,
		&patient.Status,
		&bedNumber,
		&patient.IsSimulated,
		&patient.Version,
		&labs,
		&timeToDischarge,
		&dischargeBlockedReason,
		&patient.EnteredCurrentStatusTick,
	)
	if err != nil {
		return nil, err
	}

	patient.Sex = sex.String
	patient.DOB = dob.String
	patient.ChiefComplaint = chiefComplaint.String
	patient.HPI = hpi.String
	patient.PMH = pmh.String
	patient.FamilySocialHistory = familySocial.String
	patient.ReviewOfSystems = reviewOfSystems.String
	patient.Objective = objective.String
	patient.PrimaryDiagnoses = primaryDiagnoses.String
	patient.Justification = justification.String
	patient.Plan = plan.String
	patient.TriageNotes = triageNotes.String

	if age.Valid {
		v := int(age.Int64)
		patient.Age = &v
	}
	if esiScore.Valid {
		v := int(esiScore.Int64)
		patient.ESIScore = &v
	}
	if bedNumber.Valid {
		v := int(bedNumber.Int64)
		patient.BedNumber = &v
	}
	if timeToDischarge.Valid {
		v := int(timeToDischarge.Int64)
		patient.TimeToDischarge = &v
	}
	if dischargeBlockedReason.Valid {
		patient.DischargeBlockedReason = &dischargeBlockedReason.String
	}

	if len(labs) > 0 {
		if err := json.Unmarshal(labs, &patient.LabResults); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lab results: %w", err)
		}
	}

	return patient, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
