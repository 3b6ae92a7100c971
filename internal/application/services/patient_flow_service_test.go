package services_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adetayo/edflowsim/backend/internal/adapters/database"
	"github.com/adetayo/edflowsim/backend/internal/adapters/events"
	"github.com/adetayo/edflowsim/backend/internal/application/services"
	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/providers"
	"github.com/adetayo/edflowsim/backend/internal/simulation"
	apperrors "github.com/adetayo/edflowsim/backend/pkg/errors"
)

type fixedClock struct{ tick int }

func (c fixedClock) CurrentTick() int { return c.tick }

func newFlowFixture(tick int) (*services.PatientFlowService, *database.MemoryPatientAdapter, *events.MemoryEventBus) {
	repo := database.NewMemoryPatientAdapter()
	bus := events.NewMemoryEventBus()
	service := services.NewPatientFlowService(repo, bus, simulation.NewBedPool(16), fixedClock{tick: tick}, zerolog.Nop())
	return service, repo, bus
}

func TestPatientFlowService_AcceptMovesToWaitingRoom(t *testing.T) {
	ctx := context.Background()
	service, repo, bus := newFlowFixture(12)

	stored, err := repo.Insert(ctx, &entities.Patient{Name: "Caller", Status: entities.StatusCalledIn})
	require.NoError(t, err)

	updates, err := bus.Subscribe(ctx, providers.GetPatientChannel(stored.ID))
	require.NoError(t, err)

	updated, err := service.Accept(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusWaitingRoom, updated.Status)
	assert.Equal(t, 12, updated.EnteredCurrentStatusTick)
	assert.Equal(t, 1, updated.Version)

	event := <-updates
	assert.Equal(t, entities.SimEventTypePatientUpdate, event.Type)
	assert.Equal(t, stored.ID, event.PatientID)
}

func TestPatientFlowService_AcceptRejectsWrongStatus(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newFlowFixture(0)

	stored, err := repo.Insert(ctx, &entities.Patient{Name: "Seated", Status: entities.StatusWaitingRoom})
	require.NoError(t, err)

	_, err = service.Accept(ctx, stored.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
}

func TestPatientFlowService_AcceptUnknownPatient(t *testing.T) {
	service, _, _ := newFlowFixture(0)

	_, err := service.Accept(context.Background(), "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestPatientFlowService_AdvanceFollowsPipeline(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newFlowFixture(3)

	stored, err := repo.Insert(ctx, &entities.Patient{Name: "Walker", Status: entities.StatusWaitingRoom})
	require.NoError(t, err)

	updated, err := service.Advance(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusERBed, updated.Status)
	assert.Equal(t, 3, updated.EnteredCurrentStatusTick)
}

func TestPatientFlowService_AdvanceFromERBedAlwaysDischarges(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newFlowFixture(8)

	bed := 2
	stored, err := repo.Insert(ctx, &entities.Patient{
		Name: "Bedded", Status: entities.StatusERBed, Color: entities.ColorYellow, BedNumber: &bed,
	})
	require.NoError(t, err)

	updated, err := service.Advance(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusDischarge, updated.Status)
	assert.Equal(t, entities.ColorGreen, updated.Color)
}

func TestPatientFlowService_AdvanceFromDoneFails(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newFlowFixture(0)

	stored, err := repo.Insert(ctx, &entities.Patient{Name: "Finished", Status: entities.StatusDone})
	require.NoError(t, err)

	_, err = service.Advance(ctx, stored.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
}

func TestPatientFlowService_AdvanceFromEscalationResolvesToDone(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newFlowFixture(0)

	stored, err := repo.Insert(ctx, &entities.Patient{Name: "PostOp", Status: entities.StatusOR})
	require.NoError(t, err)

	updated, err := service.Advance(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusDone, updated.Status)
}

func TestPatientFlowService_AssignBedForcesStatus(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newFlowFixture(0)

	stored, err := repo.Insert(ctx, &entities.Patient{Name: "Jumped", Status: entities.StatusCalledIn})
	require.NoError(t, err)

	updated, err := service.AssignBed(ctx, stored.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusERBed, updated.Status)
	require.NotNil(t, updated.BedNumber)
	assert.Equal(t, 7, *updated.BedNumber)
}

func TestPatientFlowService_AssignBedValidatesRange(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newFlowFixture(0)

	stored, err := repo.Insert(ctx, &entities.Patient{Name: "Bounded", Status: entities.StatusWaitingRoom})
	require.NoError(t, err)

	_, err = service.AssignBed(ctx, stored.ID, 0)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = service.AssignBed(ctx, stored.ID, 17)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
