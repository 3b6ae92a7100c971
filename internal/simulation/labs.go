package simulation

import (
	"context"
	"fmt"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/repositories"
)

// resolveLabs fires every lab whose scheduled arrival tick equals the
// current tick, for patients currently in an ER bed. Matching is exact
// tick equality: a lab whose arrival tick passed while the engine was
// stopped never fires retroactively.
func (e *Engine) resolveLabs(ctx context.Context, tick int) {
	patients, err := e.repo.List(ctx, repositories.PatientFilter{Status: entities.StatusERBed})
	if err != nil {
		e.logger.Warn().Err(err).Int("tick", tick).Msg("lab resolution could not list patients")
		return
	}

	for _, patient := range patients {
		if err := e.resolvePatientLabs(ctx, tick, patient); err != nil {
			e.logger.Warn().Err(err).Str("patient_id", patient.ID).Int("tick", tick).Msg("lab resolution failed for patient")
		}
	}
}

func (e *Engine) resolvePatientLabs(ctx context.Context, tick int, patient *entities.Patient) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lab resolution panic for patient %s: %v", patient.ID, r)
		}
	}()

	for i, lab := range patient.LabResults {
		if lab.ArrivesAtTick != tick {
			continue
		}
		if !e.markLabFired(patient.ID, i) {
			// Already consumed this run; guards against double-firing if a
			// patient shows up twice in one resolution pass
			continue
		}

		color := patient.Color
		if lab.IsSurprising {
			color = entities.ColorRed
		}
		changes := map[string]interface{}{"color": color}

		updated, err := e.repo.Update(ctx, patient.ID, changes, patient.Version)
		if err != nil {
			return err
		}
		patient = updated

		e.publishPatient(ctx, entities.NewLabArrivedEvent(patient.ID, lab.Test, lab.IsSurprising))
		e.publishPatient(ctx, entities.NewPatientUpdateEvent(patient.ID, changes, updated.Version))
	}
	return nil
}

// markLabFired records that a lab has been consumed this run; returns
// false when the lab already fired
func (e *Engine) markLabFired(patientID string, labIndex int) bool {
	key := fmt.Sprintf("%s/%d", patientID, labIndex)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, fired := e.firedLabs[key]; fired {
		return false
	}
	e.firedLabs[key] = struct{}{}
	return true
}
