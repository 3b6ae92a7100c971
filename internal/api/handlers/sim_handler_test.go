package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adetayo/edflowsim/backend/internal/api/handlers"
	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	apperrors "github.com/adetayo/edflowsim/backend/pkg/errors"
)

type fakeEngine struct {
	state    entities.SimState
	startErr error
	stopped  bool
	injected *entities.Patient
}

func (e *fakeEngine) Start(ctx context.Context) error { return e.startErr }
func (e *fakeEngine) Stop()                           { e.stopped = true }

func (e *fakeEngine) SetSpeed(speed float64) error {
	if speed <= 0 {
		return apperrors.NewValidationError("speed must be positive")
	}
	e.state.Speed = speed
	return nil
}

func (e *fakeEngine) SetMode(mode entities.SimMode) error {
	if mode != entities.ModeManual && mode != entities.ModeAuto {
		return apperrors.NewValidationError("mode must be 'manual' or 'auto'")
	}
	e.state.Mode = mode
	return nil
}

func (e *fakeEngine) State() entities.SimState { return e.state }

func (e *fakeEngine) InjectNow(ctx context.Context) (*entities.Patient, error) {
	return e.injected, nil
}

func TestSimHandler_StartAndStop(t *testing.T) {
	engine := &fakeEngine{}
	handler := handlers.NewSimHandler(engine)

	rec := httptest.NewRecorder()
	handler.Start(rec, httptest.NewRequest(http.MethodPost, "/api/sim/start", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"running"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.Stop(rec, httptest.NewRequest(http.MethodPost, "/api/sim/stop", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, engine.stopped)
}

func TestSimHandler_StartFailureMapsToInternal(t *testing.T) {
	engine := &fakeEngine{startErr: apperrors.NewInternalError("failed to read seed dataset", nil)}
	handler := handlers.NewSimHandler(engine)

	rec := httptest.NewRecorder()
	handler.Start(rec, httptest.NewRequest(http.MethodPost, "/api/sim/start", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSimHandler_SetSpeed(t *testing.T) {
	engine := &fakeEngine{}
	handler := handlers.NewSimHandler(engine)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sim/speed", strings.NewReader(`{"speed": 4}`))
	handler.SetSpeed(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, engine.state.Speed)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/sim/speed", strings.NewReader(`{"speed": -1}`))
	handler.SetSpeed(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/sim/speed", strings.NewReader(`not json`))
	handler.SetSpeed(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimHandler_SetMode(t *testing.T) {
	engine := &fakeEngine{}
	handler := handlers.NewSimHandler(engine)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sim/mode", strings.NewReader(`{"mode": "auto"}`))
	handler.SetMode(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entities.ModeAuto, engine.state.Mode)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/sim/mode", strings.NewReader(`{"mode": "turbo"}`))
	handler.SetMode(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimHandler_GetState(t *testing.T) {
	engine := &fakeEngine{state: entities.SimState{
		CurrentTick: 17, Speed: 2, Mode: entities.ModeAuto, IsRunning: true,
	}}
	handler := handlers.NewSimHandler(engine)

	rec := httptest.NewRecorder()
	handler.GetState(rec, httptest.NewRequest(http.MethodGet, "/api/sim/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var state entities.SimState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, 17, state.CurrentTick)
	assert.Equal(t, 2.0, state.Speed)
	assert.Equal(t, entities.ModeAuto, state.Mode)
	assert.True(t, state.IsRunning)
}

func TestSimHandler_Inject(t *testing.T) {
	engine := &fakeEngine{injected: &entities.Patient{ID: "pid-9", Name: "Injected"}}
	handler := handlers.NewSimHandler(engine)

	rec := httptest.NewRecorder()
	handler.Inject(rec, httptest.NewRequest(http.MethodPost, "/api/sim/inject", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Patient entities.Patient `json:"patient"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pid-9", body.Patient.ID)
}
