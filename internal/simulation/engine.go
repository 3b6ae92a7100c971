package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/providers"
	"github.com/adetayo/edflowsim/backend/internal/domain/repositories"
	"github.com/adetayo/edflowsim/backend/pkg/config"
	apperrors "github.com/adetayo/edflowsim/backend/pkg/errors"
)

// Engine owns simulated time and drives every state transition. One
// background goroutine runs the tick loop; the control surface (Start,
// Stop, SetSpeed, SetMode, InjectNow, State) mutates engine state from
// other goroutines under the engine mutex.
//
// Tick order is fixed: lab resolution, then (auto mode) progression, then
// (auto mode, every injectInterval ticks) injection, then the heartbeat.
// A tick runs to completion before the next pacing delay; ticks never
// overlap.
type Engine struct {
	repo   repositories.PatientRepository
	bus    providers.EventBus
	beds   *BedPool
	rng    Rand
	logger zerolog.Logger

	datasetPath    string
	injectInterval int

	mu          sync.Mutex
	currentTick int
	speed       float64
	mode        entities.SimMode
	running     bool
	injectIndex int
	dataset     []entities.Patient
	firedLabs   map[string]struct{}
	cancel      context.CancelFunc
	done        chan struct{}
}

// Option configures an Engine
type Option func(*Engine)

// WithRand substitutes the randomness source, used by tests for determinism
func WithRand(rng Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithLogger sets the engine logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a stopped engine in manual mode
func NewEngine(repo repositories.PatientRepository, bus providers.EventBus, beds *BedPool, cfg config.SimulationConfig, opts ...Option) *Engine {
	speed := cfg.DefaultSpeed
	if speed <= 0 {
		speed = 1.0
	}
	interval := cfg.InjectInterval
	if interval <= 0 {
		interval = 5
	}

	e := &Engine{
		repo:           repo,
		bus:            bus,
		beds:           beds,
		rng:            NewRand(cfg.Seed),
		logger:         zerolog.Nop(),
		datasetPath:    cfg.DatasetPath,
		injectInterval: interval,
		speed:          speed,
		mode:           entities.ModeManual,
		firedLabs:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins the tick loop. It is a no-op while already running. Each
// start of a stopped engine begins a fresh run: the tick counter restarts
// from zero, so lab arrival ticks scheduled during a previous run are
// simply never matched again (see DESIGN.md).
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}

	if len(e.dataset) == 0 {
		if err := e.loadDatasetLocked(); err != nil {
			return err
		}
	}

	e.currentTick = 0
	e.firedLabs = make(map[string]struct{})
	e.running = true

	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.run(loopCtx, e.done)

	e.logger.Info().Float64("speed", e.speed).Str("mode", string(e.mode)).Msg("simulation started")
	return nil
}

// Stop cancels the tick loop and waits for it to wind down. Cancellation
// during the pacing delay is immediate; a tick already past its pacing
// delay completes its per-patient work first, so no patient is left with
// a half-applied version/status pair. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()

	cancel()
	<-done

	e.logger.Info().Msg("simulation stopped")
}

// SetSpeed updates the pacing multiplier; it takes effect on the next
// inter-tick delay
func (e *Engine) SetSpeed(speed float64) error {
	if speed <= 0 {
		return apperrors.NewValidationError("speed must be positive")
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
	return nil
}

// SetMode switches between manual and automatic progression
func (e *Engine) SetMode(mode entities.SimMode) error {
	if mode != entities.ModeManual && mode != entities.ModeAuto {
		return apperrors.NewValidationError("mode must be 'manual' or 'auto'")
	}
	e.mu.Lock()
	e.mode = mode
	e.mu.Unlock()
	return nil
}

// State returns a snapshot of the engine state
func (e *Engine) State() entities.SimState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return entities.SimState{
		CurrentTick: e.currentTick,
		Speed:       e.speed,
		Mode:        e.mode,
		IsRunning:   e.running,
	}
}

// CurrentTick returns the current simulated tick
func (e *Engine) CurrentTick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTick
}

// InjectNow introduces the next seed patient at the current tick,
// independent of the periodic automatic injection
func (e *Engine) InjectNow(ctx context.Context) (*entities.Patient, error) {
	return e.inject(ctx, e.CurrentTick())
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		e.runTick(ctx)

		e.mu.Lock()
		speed := e.speed
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(float64(time.Second) / speed)):
		}
	}
}

// runTick executes one tick's work to completion. Per-patient faults are
// isolated inside the resolver and progression passes.
func (e *Engine) runTick(ctx context.Context) {
	e.mu.Lock()
	e.currentTick++
	tick := e.currentTick
	mode := e.mode
	state := entities.SimState{
		CurrentTick: tick,
		Speed:       e.speed,
		Mode:        e.mode,
		IsRunning:   e.running,
	}
	e.mu.Unlock()

	e.resolveLabs(ctx, tick)

	if mode == entities.ModeAuto {
		e.progressPatients(ctx, tick)

		if tick%e.injectInterval == 0 {
			if _, err := e.inject(ctx, tick); err != nil {
				e.logger.Warn().Err(err).Int("tick", tick).Msg("patient injection failed")
			}
		}
	}

	e.publish(ctx, providers.EventChannelSimUpdates, entities.NewSimStateEvent(state))
}

// publish sends an event to the broadcast sink. Delivery is best-effort:
// failures are logged and never escalate into the tick loop.
func (e *Engine) publish(ctx context.Context, channel string, event *entities.SimEvent) {
	if err := e.bus.Publish(ctx, channel, event); err != nil {
		e.logger.Warn().Err(err).Str("channel", channel).Str("event_type", string(event.Type)).Msg("event delivery failed")
	}
}

// publishPatient fans a patient-scoped event out to the global channel and
// the patient's own channel
func (e *Engine) publishPatient(ctx context.Context, event *entities.SimEvent) {
	e.publish(ctx, providers.EventChannelSimUpdates, event)
	if event.PatientID != "" {
		e.publish(ctx, providers.GetPatientChannel(event.PatientID), event)
	}
}

func (e *Engine) loadDatasetLocked() error {
	data, err := os.ReadFile(e.datasetPath)
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to read seed dataset %s", e.datasetPath), err)
	}
	var dataset []entities.Patient
	if err := json.Unmarshal(data, &dataset); err != nil {
		return apperrors.NewInternalError("failed to parse seed dataset", err)
	}
	if len(dataset) == 0 {
		return apperrors.NewValidationError("seed dataset is empty")
	}
	e.dataset = dataset
	return nil
}
