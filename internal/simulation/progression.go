package simulation

import (
	"context"
	"fmt"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/repositories"
	apperrors "github.com/adetayo/edflowsim/backend/pkg/errors"
)

// progressPatients runs the automatic progression policy over every
// non-done patient. Each patient is processed in isolation: a conflict,
// error, or panic on one record is logged and the pass moves on, so one bad
// record never stalls the clock.
func (e *Engine) progressPatients(ctx context.Context, tick int) {
	patients, err := e.repo.List(ctx, repositories.PatientFilter{ExcludeStatus: entities.StatusDone})
	if err != nil {
		e.logger.Warn().Err(err).Int("tick", tick).Msg("progression pass could not list patients")
		return
	}

	for _, patient := range patients {
		if err := e.progressOne(ctx, tick, patient); err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
				// Lost the version race to a concurrent operation; the
				// patient is retried on its next eligible tick.
				e.logger.Debug().Str("patient_id", patient.ID).Int("tick", tick).Msg("progression skipped on version conflict")
				continue
			}
			e.logger.Warn().Err(err).Str("patient_id", patient.ID).Int("tick", tick).Msg("progression failed for patient")
		}
	}
}

// progressOne decides whether one patient advances this tick and applies
// the transition. The longer a patient has dwelt in its status, the more
// likely the advance: threshold = max(3, 8-ticksInStatus) and the patient
// moves only on a zero draw from [0, threshold], capping the per-tick
// probability at 1/4.
func (e *Engine) progressOne(ctx context.Context, tick int, patient *entities.Patient) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("progression panic for patient %s: %v", patient.ID, r)
		}
	}()

	idx := entities.StatusIndex(patient.Status)
	if idx < 0 || idx >= len(entities.StatusOrder)-1 {
		// or/icu and done have no automatic transitions
		return nil
	}

	ticksInStatus := tick - patient.EnteredCurrentStatusTick
	threshold := 8 - ticksInStatus
	if threshold < 3 {
		threshold = 3
	}
	if e.rng.Intn(threshold+1) != 0 {
		return nil
	}

	next := entities.StatusOrder[idx+1]
	if patient.Status == entities.StatusERBed {
		next = e.nextFromERBed()
	}

	changes := map[string]interface{}{
		"status":                      next,
		"entered_current_status_tick": tick,
	}

	if next == entities.StatusERBed {
		// The occupancy read and the assigning write stay under one pool
		// lock so a concurrent manual assignment cannot take the same bed.
		return e.beds.WithLock(func() error {
			occupied, err := e.occupiedBeds(ctx)
			if err != nil {
				return err
			}
			bed, ok := e.beds.LowestFree(occupied)
			if !ok {
				// All beds taken: defer the transition, try again next
				// eligible tick
				return nil
			}
			changes["bed_number"] = bed
			return e.applyTransition(ctx, patient, changes)
		})
	}

	if next == entities.StatusDischarge {
		changes["color"] = entities.ColorGreen
	}

	return e.applyTransition(ctx, patient, changes)
}

// nextFromERBed picks the automatic branch out of an ER bed:
// discharge 70%, or 15%, icu 15%
func (e *Engine) nextFromERBed() entities.PatientStatus {
	draw := e.rng.Float64()
	switch {
	case draw < 0.70:
		return entities.StatusDischarge
	case draw < 0.85:
		return entities.StatusOR
	default:
		return entities.StatusICU
	}
}

// occupiedBeds lists bed numbers currently held by er_bed patients
func (e *Engine) occupiedBeds(ctx context.Context) ([]int, error) {
	patients, err := e.repo.List(ctx, repositories.PatientFilter{Status: entities.StatusERBed})
	if err != nil {
		return nil, err
	}
	var occupied []int
	for _, p := range patients {
		if p.BedNumber != nil {
			occupied = append(occupied, *p.BedNumber)
		}
	}
	return occupied, nil
}

// applyTransition performs the versioned update and emits the diff event
func (e *Engine) applyTransition(ctx context.Context, patient *entities.Patient, changes map[string]interface{}) error {
	updated, err := e.repo.Update(ctx, patient.ID, changes, patient.Version)
	if err != nil {
		return err
	}
	e.publishPatient(ctx, entities.NewPatientUpdateEvent(patient.ID, changes, updated.Version))
	return nil
}
