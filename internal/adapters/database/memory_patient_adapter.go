package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/repositories"
	apperrors "github.com/adetayo/edflowsim/backend/pkg/errors"
)

// MemoryPatientAdapter implements PatientRepository in process memory. It
// enforces the same version-guarded update contract as the Postgres adapter
// and backs single-node demo runs and the engine test suite.
type MemoryPatientAdapter struct {
	mu       sync.RWMutex
	patients map[string]*entities.Patient
	order    []string
}

// NewMemoryPatientAdapter creates an empty in-memory patient store
func NewMemoryPatientAdapter() *MemoryPatientAdapter {
	return &MemoryPatientAdapter{
		patients: make(map[string]*entities.Patient),
	}
}

// List returns patients matching the filter in insertion order
func (a *MemoryPatientAdapter) List(ctx context.Context, filter repositories.PatientFilter) ([]*entities.Patient, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []*entities.Patient
	for _, id := range a.order {
		p := a.patients[id]
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.ExcludeStatus != "" && p.Status == filter.ExcludeStatus {
			continue
		}
		result = append(result, p.Clone())
	}
	return result, nil
}

// GetByID returns a copy of the patient with the given id
func (a *MemoryPatientAdapter) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.patients[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", id))
	}
	return p.Clone(), nil
}

// Insert stores a new patient, assigning an id when absent
func (a *MemoryPatientAdapter) Insert(ctx context.Context, patient *entities.Patient) (*entities.Patient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

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
	a.patients[stored.ID] = stored
	a.order = append(a.order, stored.ID)
	return stored.Clone(), nil
}

// Update applies field changes if the stored version still matches
// expectedVersion, bumping the version by exactly one
func (a *MemoryPatientAdapter) Update(ctx context.Context, id string, changes map[string]interface{}, expectedVersion int) (*entities.Patient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.patients[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", id))
	}
	if p.Version != expectedVersion {
		return nil, apperrors.NewConflictError(fmt.Sprintf(
			"patient %s version mismatch: have %d, expected %d", id, p.Version, expectedVersion))
	}

	updated := p.Clone()
	if err := applyPatientChanges(updated, changes); err != nil {
		return nil, err
	}
	updated.Version = expectedVersion + 1
	a.patients[id] = updated
	return updated.Clone(), nil
}

// BedsInUse reports occupied bed numbers among er_bed patients, ascending.
// Test helper for bed pool assertions.
func (a *MemoryPatientAdapter) BedsInUse() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var beds []int
	for _, p := range a.patients {
		if p.Status == entities.StatusERBed && p.BedNumber != nil {
			beds = append(beds, *p.BedNumber)
		}
	}
	sort.Ints(beds)
	return beds
}

// applyPatientChanges mutates p according to the changed-field map shared
// with the Postgres adapter (keys are column names)
func applyPatientChanges(p *entities.Patient, changes map[string]interface{}) error {
	for key, value := range changes {
		switch key {
		case "status":
			p.Status = entities.PatientStatus(asString(value))
		case "color":
			p.Color = entities.PatientColor(asString(value))
		case "bed_number":
			if value == nil {
				p.BedNumber = nil
				continue
			}
			bed, err := asInt(value)
			if err != nil {
				return apperrors.NewValidationError(fmt.Sprintf("bed_number: %v", err))
			}
			p.BedNumber = &bed
		case "entered_current_status_tick":
			tick, err := asInt(value)
			if err != nil {
				return apperrors.NewValidationError(fmt.Sprintf("entered_current_status_tick: %v", err))
			}
			p.EnteredCurrentStatusTick = tick
		case "time_to_discharge":
			if value == nil {
				p.TimeToDischarge = nil
				continue
			}
			tick, err := asInt(value)
			if err != nil {
				return apperrors.NewValidationError(fmt.Sprintf("time_to_discharge: %v", err))
			}
			p.TimeToDischarge = &tick
		case "discharge_blocked_reason":
			if value == nil {
				p.DischargeBlockedReason = nil
				continue
			}
			reason := asString(value)
			p.DischargeBlockedReason = &reason
		default:
			return apperrors.NewValidationError(fmt.Sprintf("unknown patient field %q", key))
		}
	}
	return nil
}

func asString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case entities.PatientStatus:
		return string(v)
	case entities.PatientColor:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case *int:
		if v == nil {
			return 0, fmt.Errorf("nil pointer")
		}
		return *v, nil
	default:
		return 0, fmt.Errorf("not an integer: %T", value)
	}
}
