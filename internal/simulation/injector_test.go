package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/providers"
	"github.com/adetayo/edflowsim/backend/internal/domain/repositories"
)

func TestInject_NormalizesSeedRecord(t *testing.T) {
	ctx := context.Background()
	engine, repo, _ := newTestEngine(t, nil)

	patient, err := engine.inject(ctx, 7)
	require.NoError(t, err)

	assert.NotEmpty(t, patient.ID)
	assert.Equal(t, entities.StatusCalledIn, patient.Status)
	assert.Equal(t, entities.ColorGrey, patient.Color)
	assert.True(t, patient.IsSimulated)
	assert.Equal(t, 0, patient.Version)
	assert.Nil(t, patient.BedNumber)
	assert.Equal(t, 7, patient.EnteredCurrentStatusTick)

	stored, err := repo.GetByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, patient.Name, stored.Name)
}

func TestInject_PinsLabOffsetsToAbsoluteTicks(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, nil)

	// Seed One carries a lab with relative offset 2
	patient, err := engine.inject(ctx, 10)
	require.NoError(t, err)

	require.Len(t, patient.LabResults, 1)
	assert.Equal(t, 12, patient.LabResults[0].ArrivesAtTick)
}

func TestInject_CursorWrapsAroundDataset(t *testing.T) {
	ctx := context.Background()
	engine, repo, _ := newTestEngine(t, nil)

	// Dataset has 3 seeds; 7 injections wrap the cursor twice
	names := make(map[string]int)
	for i := 0; i < 7; i++ {
		patient, err := engine.inject(ctx, i)
		require.NoError(t, err)
		names[patient.Name]++
	}

	assert.Equal(t, 1, engine.InjectIndex())
	assert.Equal(t, 3, names["Seed One"])
	assert.Equal(t, 2, names["Seed Two"])
	assert.Equal(t, 2, names["Seed Three"])

	patients, err := repo.List(ctx, repositories.PatientFilter{})
	require.NoError(t, err)
	assert.Len(t, patients, 7)
}

func TestInject_RepeatedSeedsAreIndependentRecords(t *testing.T) {
	ctx := context.Background()
	engine, repo, _ := newTestEngine(t, nil)

	first, err := engine.inject(ctx, 1)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := engine.inject(ctx, 1)
		require.NoError(t, err)
	}
	second, err := engine.inject(ctx, 20)
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.NotEqual(t, first.ID, second.ID)

	// Mutating one copy leaves the other untouched
	_, err = repo.Update(ctx, first.ID, map[string]interface{}{"status": entities.StatusDone}, first.Version)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCalledIn, got.Status)
}

func TestInjectNow_PublishesPatientAdded(t *testing.T) {
	ctx := context.Background()
	engine, _, bus := newTestEngine(t, nil)

	updates, err := bus.Subscribe(ctx, providers.EventChannelSimUpdates)
	require.NoError(t, err)

	patient, err := engine.InjectNow(ctx)
	require.NoError(t, err)

	event := <-updates
	assert.Equal(t, entities.SimEventTypePatientAdded, event.Type)
	assert.Equal(t, patient.ID, event.PatientID)
	require.NotNil(t, event.Patient)
	assert.Equal(t, patient.Name, event.Patient.Name)
}
