package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/providers"
)

func insertBedded(t *testing.T, engine *Engine, labs []entities.LabResult) *entities.Patient {
	t.Helper()
	bed := 1
	patient, err := engine.repo.Insert(context.Background(), &entities.Patient{
		Name:       "Bedded",
		Status:     entities.StatusERBed,
		Color:      entities.ColorYellow,
		BedNumber:  &bed,
		LabResults: labs,
	})
	require.NoError(t, err)
	return patient
}

func TestLabs_FireOnExactArrivalTick(t *testing.T) {
	ctx := context.Background()
	engine, repo, bus := newTestEngine(t, nil)

	patient := insertBedded(t, engine, []entities.LabResult{
		{Test: "CBC", Result: "normal", ArrivesAtTick: 5},
	})

	updates, err := bus.Subscribe(ctx, providers.EventChannelSimUpdates)
	require.NoError(t, err)

	engine.resolveLabs(ctx, 4)
	got, err := repo.GetByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Version)

	engine.resolveLabs(ctx, 5)
	got, err = repo.GetByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	// An unsurprising result keeps the current color
	assert.Equal(t, entities.ColorYellow, got.Color)

	first := <-updates
	assert.Equal(t, entities.SimEventTypeLabArrived, first.Type)
	assert.Equal(t, "CBC", first.Test)
	second := <-updates
	assert.Equal(t, entities.SimEventTypePatientUpdate, second.Type)
}

func TestLabs_SurprisingResultTurnsPatientRed(t *testing.T) {
	ctx := context.Background()
	engine, repo, _ := newTestEngine(t, nil)

	patient := insertBedded(t, engine, []entities.LabResult{
		{Test: "Troponin I", Result: "elevated", IsSurprising: true, ArrivesAtTick: 3},
	})

	engine.resolveLabs(ctx, 3)

	got, err := repo.GetByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ColorRed, got.Color)
}

func TestLabs_MissedArrivalTickNeverFires(t *testing.T) {
	ctx := context.Background()
	engine, repo, _ := newTestEngine(t, nil)

	patient := insertBedded(t, engine, []entities.LabResult{
		{Test: "CBC", Result: "normal", ArrivesAtTick: 2},
	})

	// The clock is already past the arrival tick; matching is exact
	for tick := 3; tick <= 10; tick++ {
		engine.resolveLabs(ctx, tick)
	}

	got, err := repo.GetByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Version)
}

func TestLabs_DoNotFireTwice(t *testing.T) {
	ctx := context.Background()
	engine, repo, _ := newTestEngine(t, nil)

	patient := insertBedded(t, engine, []entities.LabResult{
		{Test: "CBC", Result: "normal", ArrivesAtTick: 4},
	})

	engine.resolveLabs(ctx, 4)
	engine.resolveLabs(ctx, 4)

	got, err := repo.GetByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

func TestLabs_OnlyERBedPatientsResolve(t *testing.T) {
	ctx := context.Background()
	engine, repo, _ := newTestEngine(t, nil)

	patient, err := repo.Insert(ctx, &entities.Patient{
		Name:   "Waiting",
		Status: entities.StatusWaitingRoom,
		LabResults: []entities.LabResult{
			{Test: "CBC", Result: "normal", ArrivesAtTick: 2},
		},
	})
	require.NoError(t, err)

	engine.resolveLabs(ctx, 2)

	got, err := repo.GetByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Version)
}

func TestLabs_MultipleArrivalsSameTickApplyInSequence(t *testing.T) {
	ctx := context.Background()
	engine, repo, _ := newTestEngine(t, nil)

	patient := insertBedded(t, engine, []entities.LabResult{
		{Test: "CBC", Result: "normal", ArrivesAtTick: 6},
		{Test: "CT Abdomen", Result: "appendicitis", IsSurprising: true, ArrivesAtTick: 6},
	})

	engine.resolveLabs(ctx, 6)

	got, err := repo.GetByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, entities.ColorRed, got.Color)
}

func TestLabs_FiredSetResetsOnRestart(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, nil)

	insertBedded(t, engine, []entities.LabResult{
		{Test: "CBC", Result: "normal", ArrivesAtTick: 1},
	})

	assert.True(t, engine.markLabFired("pid-1", 0))
	assert.False(t, engine.markLabFired("pid-1", 0))

	require.NoError(t, engine.Start(ctx))
	engine.Stop()

	// A fresh run forgets the previous run's consumed labs
	assert.True(t, engine.markLabFired("pid-1", 0))
}
