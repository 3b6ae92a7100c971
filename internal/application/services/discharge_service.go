package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/providers"
	"github.com/adetayo/edflowsim/backend/internal/domain/repositories"
	apperrors "github.com/adetayo/edflowsim/backend/pkg/errors"
)

// DischargeService orchestrates discharge readiness assessment. It runs
// synchronously outside the tick loop, and only consults the assessor once
// every attached lab has arrived and no block reason is set.
type DischargeService struct {
	repo     repositories.PatientRepository
	bus      providers.EventBus
	assessor providers.DischargeAssessor
	clock    Clock
	logger   zerolog.Logger
}

// NewDischargeService creates a new discharge service
func NewDischargeService(
	repo repositories.PatientRepository,
	bus providers.EventBus,
	assessor providers.DischargeAssessor,
	clock Clock,
	logger zerolog.Logger,
) *DischargeService {
	return &DischargeService{
		repo:     repo,
		bus:      bus,
		assessor: assessor,
		clock:    clock,
		logger:   logger,
	}
}

// Evaluate assesses a patient's discharge readiness. It returns nil without
// error when the patient is not yet evaluable (labs pending or discharge
// blocked) or when the assessor judges the patient not ready. A ready
// verdict recolors the patient green, stamps time_to_discharge, and emits
// both the diff and a discharge_ready notification.
func (s *DischargeService) Evaluate(ctx context.Context, id string) (*entities.DischargeVerdict, error) {
	patient, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	currentTick := s.clock.CurrentTick()
	if len(patient.PendingLabs(currentTick)) > 0 {
		return nil, nil
	}
	if patient.DischargeBlockedReason != nil {
		return nil, nil
	}

	verdict, err := s.assessor.Assess(ctx, patient, currentTick)
	if err != nil {
		return nil, apperrors.NewExternalError("discharge assessment failed", err)
	}
	if verdict == nil || !verdict.Ready {
		return nil, nil
	}

	changes := map[string]interface{}{
		"color":             entities.ColorGreen,
		"time_to_discharge": currentTick,
	}
	updated, err := s.repo.Update(ctx, patient.ID, changes, patient.Version)
	if err != nil {
		return nil, err
	}

	s.publishPatient(ctx, entities.NewPatientUpdateEvent(patient.ID, changes, updated.Version))
	s.publishPatient(ctx, entities.NewDischargeReadyEvent(patient.ID, patient.Name, verdict.Summary))

	s.logger.Info().Str("patient_id", patient.ID).Int("tick", currentTick).Msg("patient ready for discharge")
	return verdict, nil
}

// ResolveBlocked clears a patient's discharge block and re-evaluates
// readiness. A patient without a block reason passes through unchanged.
func (s *DischargeService) ResolveBlocked(ctx context.Context, id string) (*entities.DischargeVerdict, error) {
	patient, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patient.DischargeBlockedReason == nil {
		return nil, nil
	}

	changes := map[string]interface{}{"discharge_blocked_reason": nil}
	updated, err := s.repo.Update(ctx, patient.ID, changes, patient.Version)
	if err != nil {
		return nil, err
	}
	s.publishPatient(ctx, entities.NewPatientUpdateEvent(patient.ID, changes, updated.Version))

	return s.Evaluate(ctx, id)
}

func (s *DischargeService) publishPatient(ctx context.Context, event *entities.SimEvent) {
	if err := s.bus.Publish(ctx, providers.EventChannelSimUpdates, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("event delivery failed")
	}
	if event.PatientID != "" {
		if err := s.bus.Publish(ctx, providers.GetPatientChannel(event.PatientID), event); err != nil {
			s.logger.Warn().Err(err).Str("patient_id", event.PatientID).Msg("event delivery failed")
		}
	}
}
