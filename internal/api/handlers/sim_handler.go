package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
)

// SimulationEngine defines the engine control surface consumed by the API
type SimulationEngine interface {
	Start(ctx context.Context) error
	Stop()
	SetSpeed(speed float64) error
	SetMode(mode entities.SimMode) error
	State() entities.SimState
	InjectNow(ctx context.Context) (*entities.Patient, error)
}

// SimHandler handles simulation control requests
type SimHandler struct {
	engine SimulationEngine
}

// NewSimHandler creates a new simulation control handler
func NewSimHandler(engine SimulationEngine) *SimHandler {
	return &SimHandler{engine: engine}
}

// Start handles POST /api/sim/start
func (h *SimHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Start(r.Context()); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// Stop handles POST /api/sim/stop
func (h *SimHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.engine.Stop()
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// SetSpeed handles POST /api/sim/speed
func (h *SimHandler) SetSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.engine.SetSpeed(req.Speed); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]float64{"speed": req.Speed})
}

// SetMode handles POST /api/sim/mode
func (h *SimHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.engine.SetMode(entities.SimMode(req.Mode)); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
}

// Inject handles POST /api/sim/inject
func (h *SimHandler) Inject(w http.ResponseWriter, r *http.Request) {
	patient, err := h.engine.InjectNow(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"patient": patient})
}

// GetState handles GET /api/sim/state
func (h *SimHandler) GetState(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.engine.State())
}
