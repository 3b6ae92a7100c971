package simulation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adetayo/edflowsim/backend/internal/adapters/database"
	"github.com/adetayo/edflowsim/backend/internal/adapters/events"
	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/providers"
	"github.com/adetayo/edflowsim/backend/internal/domain/repositories"
	"github.com/adetayo/edflowsim/backend/pkg/config"
)

// scriptedRand replays fixed draws so progression decisions are exact
type scriptedRand struct {
	ints   []int
	floats []float64
	intIdx int
	fltIdx int
}

func (r *scriptedRand) Intn(n int) int {
	if len(r.ints) == 0 {
		return 1
	}
	v := r.ints[r.intIdx%len(r.ints)]
	r.intIdx++
	return v % n
}

func (r *scriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.0
	}
	v := r.floats[r.fltIdx%len(r.floats)]
	r.fltIdx++
	return v
}

func writeDataset(t *testing.T, patients []entities.Patient) string {
	t.Helper()
	data, err := json.Marshal(patients)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "patients.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func testDataset() []entities.Patient {
	return []entities.Patient{
		{Name: "Seed One", LabResults: []entities.LabResult{
			{Test: "CBC", Result: "normal", ArrivesAtTick: 2},
		}},
		{Name: "Seed Two"},
		{Name: "Seed Three", LabResults: []entities.LabResult{
			{Test: "Troponin I", Result: "elevated", IsSurprising: true, ArrivesAtTick: 4},
		}},
	}
}

func newTestEngine(t *testing.T, rng Rand) (*Engine, *database.MemoryPatientAdapter, *events.MemoryEventBus) {
	t.Helper()
	repo := database.NewMemoryPatientAdapter()
	bus := events.NewMemoryEventBus()
	beds := NewBedPool(16)
	cfg := config.SimulationConfig{
		DefaultSpeed:   1.0,
		DatasetPath:    writeDataset(t, testDataset()),
		BedCount:       16,
		InjectInterval: 5,
	}
	opts := []Option{}
	if rng != nil {
		opts = append(opts, WithRand(rng))
	}
	return NewEngine(repo, bus, beds, cfg, opts...), repo, bus
}

func TestEngine_ManualMode_NoAutomaticProgression(t *testing.T) {
	ctx := context.Background()
	// Zero draws would force every advance if progression ran
	engine, repo, _ := newTestEngine(t, &scriptedRand{ints: []int{0}})

	patient, err := repo.Insert(ctx, &entities.Patient{Name: "Waiting", Status: entities.StatusWaitingRoom})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		engine.runTick(ctx)
	}

	got, err := repo.GetByID(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusWaitingRoom, got.Status)
	assert.Equal(t, 0, got.Version)
	assert.Equal(t, 10, engine.CurrentTick())
}

func TestEngine_RunTick_PublishesHeartbeat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, _, bus := newTestEngine(t, &scriptedRand{ints: []int{1}})
	updates, err := bus.Subscribe(ctx, providers.EventChannelSimUpdates)
	require.NoError(t, err)

	engine.runTick(ctx)

	event := <-updates
	require.NotNil(t, event)
	assert.Equal(t, entities.SimEventTypeSimState, event.Type)
	require.NotNil(t, event.CurrentTick)
	assert.Equal(t, 1, *event.CurrentTick)
	require.NotNil(t, event.IsRunning)
	assert.False(t, *event.IsRunning)
}

func TestEngine_AutoMode_InjectsOnInterval(t *testing.T) {
	ctx := context.Background()
	// Non-zero draws: nobody ever advances, injection cadence stays visible
	engine, repo, _ := newTestEngine(t, &scriptedRand{ints: []int{1}})
	require.NoError(t, engine.SetMode(entities.ModeAuto))

	for i := 0; i < 11; i++ {
		engine.runTick(ctx)
	}

	// Ticks 5 and 10 inject
	patients, err := repo.List(ctx, repositories.PatientFilter{})
	require.NoError(t, err)
	assert.Len(t, patients, 2)
	for _, p := range patients {
		assert.Equal(t, entities.StatusCalledIn, p.Status)
		assert.Equal(t, entities.ColorGrey, p.Color)
		assert.True(t, p.IsSimulated)
	}
}

func TestEngine_StartStop_ResetsTickCounter(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, &scriptedRand{ints: []int{1}})

	engine.mu.Lock()
	engine.currentTick = 42
	engine.mu.Unlock()

	require.NoError(t, engine.Start(ctx))
	engine.Stop()

	tick := engine.CurrentTick()
	assert.GreaterOrEqual(t, tick, 1)
	assert.Less(t, tick, 42)

	state := engine.State()
	assert.False(t, state.IsRunning)
}

func TestEngine_Start_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, &scriptedRand{ints: []int{1}})

	require.NoError(t, engine.Start(ctx))
	require.NoError(t, engine.Start(ctx))
	assert.True(t, engine.State().IsRunning)

	engine.Stop()
	engine.Stop()
	assert.False(t, engine.State().IsRunning)
}

func TestEngine_Start_FailsOnMissingDataset(t *testing.T) {
	repo := database.NewMemoryPatientAdapter()
	bus := events.NewMemoryEventBus()
	engine := NewEngine(repo, bus, NewBedPool(16), config.SimulationConfig{
		DatasetPath: "/nonexistent/patients.json",
	})

	err := engine.Start(context.Background())
	assert.Error(t, err)
	assert.False(t, engine.State().IsRunning)
}

func TestEngine_SetSpeed_RejectsNonPositive(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	assert.Error(t, engine.SetSpeed(0))
	assert.Error(t, engine.SetSpeed(-1))
	require.NoError(t, engine.SetSpeed(2.5))
	assert.Equal(t, 2.5, engine.State().Speed)
}

func TestEngine_SetMode_RejectsUnknownMode(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	assert.Error(t, engine.SetMode("turbo"))
	require.NoError(t, engine.SetMode(entities.ModeAuto))
	assert.Equal(t, entities.ModeAuto, engine.State().Mode)
}
