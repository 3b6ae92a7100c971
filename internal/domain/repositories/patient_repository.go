package repositories

import (
	"context"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
)

// PatientFilter narrows List results. Zero value means no filtering.
type PatientFilter struct {
	Status        entities.PatientStatus
	ExcludeStatus entities.PatientStatus
}

// PatientRepository defines the storage boundary for patient records.
//
// Update is the optimistic-concurrency write path: it applies the given
// field changes only if the stored version still equals expectedVersion,
// bumps the version to expectedVersion+1 atomically, and returns the fresh
// record. A mismatch yields a conflict error; callers retry against the
// re-read record on their next eligible pass.
type PatientRepository interface {
	List(ctx context.Context, filter PatientFilter) ([]*entities.Patient, error)
	GetByID(ctx context.Context, id string) (*entities.Patient, error)
	Insert(ctx context.Context, patient *entities.Patient) (*entities.Patient, error)
	Update(ctx context.Context, id string, changes map[string]interface{}, expectedVersion int) (*entities.Patient, error)
}
