package providers

import (
	"context"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
)

// DischargeAssessor produces a structured discharge readiness verdict from a
// patient snapshot. Implementations are expected to be idempotent for the
// same snapshot and tick; the engine never calls this from the tick loop.
type DischargeAssessor interface {
	Assess(ctx context.Context, patient *entities.Patient, currentTick int) (*entities.DischargeVerdict, error)
}
