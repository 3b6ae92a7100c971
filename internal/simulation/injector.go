package simulation

import (
	"context"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
)

// inject introduces the next seed patient into the simulation at the given
// tick. The seed dataset is a circular buffer: the cursor wraps back to the
// start when exhausted, so long-running simulations re-admit the same cast.
// The cursor advances whether or not the insert succeeds.
func (e *Engine) inject(ctx context.Context, tick int) (*entities.Patient, error) {
	e.mu.Lock()
	if len(e.dataset) == 0 {
		if err := e.loadDatasetLocked(); err != nil {
			e.mu.Unlock()
			return nil, err
		}
	}
	if e.injectIndex >= len(e.dataset) {
		e.injectIndex = 0
	}
	seed := e.dataset[e.injectIndex]
	e.injectIndex++
	e.mu.Unlock()

	record := seed.Clone()
	record.ID = ""
	record.Status = entities.StatusCalledIn
	record.Color = entities.ColorGrey
	record.IsSimulated = true
	record.Version = 0
	record.BedNumber = nil
	record.EnteredCurrentStatusTick = tick

	// Seed labs carry relative offsets; pin them to absolute ticks now
	for i := range record.LabResults {
		record.LabResults[i].ArrivesAtTick = tick + seed.LabResults[i].ArrivesAtTick
	}

	patient, err := e.repo.Insert(ctx, record)
	if err != nil {
		return nil, err
	}

	e.publishPatient(ctx, entities.NewPatientAddedEvent(patient))
	e.logger.Info().Str("patient_id", patient.ID).Str("name", patient.Name).Int("tick", tick).Msg("patient injected")
	return patient, nil
}

// InjectIndex reports the seed cursor position; used by the control surface
// state endpoint and tests
func (e *Engine) InjectIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.injectIndex
}
