package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/providers"
	"github.com/adetayo/edflowsim/backend/internal/domain/repositories"
	"github.com/adetayo/edflowsim/backend/internal/simulation"
	apperrors "github.com/adetayo/edflowsim/backend/pkg/errors"
)

// Clock exposes the engine's simulated time to operations triggered from
// outside the tick loop
type Clock interface {
	CurrentTick() int
}

// PatientFlowService handles the manual patient operations: accepting a
// called-in patient, advancing a patient through the pipeline, and forcing
// a bed assignment. Every operation is a read-modify-versioned-write; a
// concurrent engine tick that wins the version race surfaces as a conflict
// for the caller to retry against the fresh record.
type PatientFlowService struct {
	repo   repositories.PatientRepository
	bus    providers.EventBus
	beds   *simulation.BedPool
	clock  Clock
	logger zerolog.Logger
}

// NewPatientFlowService creates a new patient flow service
func NewPatientFlowService(
	repo repositories.PatientRepository,
	bus providers.EventBus,
	beds *simulation.BedPool,
	clock Clock,
	logger zerolog.Logger,
) *PatientFlowService {
	return &PatientFlowService{
		repo:   repo,
		bus:    bus,
		beds:   beds,
		clock:  clock,
		logger: logger,
	}
}

// Accept moves a called-in patient into the waiting room. Any other
// starting status is an invalid-state error.
func (s *PatientFlowService) Accept(ctx context.Context, id string) (*entities.Patient, error) {
	patient, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patient.Status != entities.StatusCalledIn {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"patient %s is not in called_in status (currently %s)", id, patient.Status))
	}

	changes := map[string]interface{}{
		"status":                      entities.StatusWaitingRoom,
		"entered_current_status_tick": s.clock.CurrentTick(),
	}
	return s.applyChange(ctx, patient, changes)
}

// Advance moves a patient to its next status. From an ER bed the manual
// next state is always discharge, bypassing the automatic or/icu branch;
// from the final order position it is an invalid-state error; a status
// outside the canonical order resolves directly to done.
func (s *PatientFlowService) Advance(ctx context.Context, id string) (*entities.Patient, error) {
	patient, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var next entities.PatientStatus
	switch idx := entities.StatusIndex(patient.Status); {
	case patient.Status == entities.StatusERBed:
		next = entities.StatusDischarge
	case idx >= len(entities.StatusOrder)-1:
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"patient %s is already at the final status", id))
	case idx >= 0:
		next = entities.StatusOrder[idx+1]
	default:
		next = entities.StatusDone
	}

	changes := map[string]interface{}{
		"status":                      next,
		"entered_current_status_tick": s.clock.CurrentTick(),
	}
	if next == entities.StatusDischarge {
		changes["color"] = entities.ColorGreen
	}
	return s.applyChange(ctx, patient, changes)
}

// AssignBed forces a specific bed number and status er_bed, regardless of
// the patient's current status. The pool is not consulted for contention —
// that is the caller's responsibility — but the write is serialized through
// the pool lock so the tick loop cannot hand out the same bed concurrently.
func (s *PatientFlowService) AssignBed(ctx context.Context, id string, bedNumber int) (*entities.Patient, error) {
	if bedNumber < 1 || bedNumber > s.beds.Size() {
		return nil, apperrors.NewValidationError(fmt.Sprintf(
			"bed number must be between 1 and %d", s.beds.Size()))
	}

	patient, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{
		"bed_number": bedNumber,
		"status":     entities.StatusERBed,
	}

	var updated *entities.Patient
	err = s.beds.WithLock(func() error {
		var applyErr error
		updated, applyErr = s.applyChange(ctx, patient, changes)
		return applyErr
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyChange performs the versioned update and emits the diff event
func (s *PatientFlowService) applyChange(ctx context.Context, patient *entities.Patient, changes map[string]interface{}) (*entities.Patient, error) {
	updated, err := s.repo.Update(ctx, patient.ID, changes, patient.Version)
	if err != nil {
		return nil, err
	}

	s.publishPatient(ctx, entities.NewPatientUpdateEvent(patient.ID, changes, updated.Version))
	return updated, nil
}

func (s *PatientFlowService) publishPatient(ctx context.Context, event *entities.SimEvent) {
	if err := s.bus.Publish(ctx, providers.EventChannelSimUpdates, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("event delivery failed")
	}
	if event.PatientID != "" {
		if err := s.bus.Publish(ctx, providers.GetPatientChannel(event.PatientID), event); err != nil {
			s.logger.Warn().Err(err).Str("patient_id", event.PatientID).Msg("event delivery failed")
		}
	}
}
