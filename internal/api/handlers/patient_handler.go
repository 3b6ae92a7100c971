package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/repositories"
	apperrors "github.com/adetayo/edflowsim/backend/pkg/errors"
)

// PatientFlow defines the manual patient operations consumed by the API
type PatientFlow interface {
	Accept(ctx context.Context, id string) (*entities.Patient, error)
	Advance(ctx context.Context, id string) (*entities.Patient, error)
	AssignBed(ctx context.Context, id string, bedNumber int) (*entities.Patient, error)
}

// DischargeEvaluator defines the discharge assessment operations
type DischargeEvaluator interface {
	Evaluate(ctx context.Context, id string) (*entities.DischargeVerdict, error)
	ResolveBlocked(ctx context.Context, id string) (*entities.DischargeVerdict, error)
}

// PatientHandler handles patient requests
type PatientHandler struct {
	repo      repositories.PatientRepository
	flow      PatientFlow
	discharge DischargeEvaluator
}

// NewPatientHandler creates a new patient handler
func NewPatientHandler(repo repositories.PatientRepository, flow PatientFlow, discharge DischargeEvaluator) *PatientHandler {
	return &PatientHandler{
		repo:      repo,
		flow:      flow,
		discharge: discharge,
	}
}

// ListPatients handles GET /api/patients
func (h *PatientHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	filter := repositories.PatientFilter{
		Status: entities.PatientStatus(r.URL.Query().Get("status")),
	}

	patients, err := h.repo.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if patients == nil {
		patients = []*entities.Patient{}
	}
	respondWithJSON(w, http.StatusOK, patients)
}

// GetPatient handles GET /api/patients/{id}
func (h *PatientHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}

	patient, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, patient)
}

// Accept handles POST /api/patients/{id}/accept
func (h *PatientHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	patient, err := h.flow.Accept(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"status": patient.Status})
}

// Advance handles POST /api/patients/{id}/advance
func (h *PatientHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	patient, err := h.flow.Advance(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"status": patient.Status})
}

// AssignBed handles POST /api/patients/{id}/assign-bed
func (h *PatientHandler) AssignBed(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		BedNumber int `json:"bed_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	patient, err := h.flow.AssignBed(r.Context(), id, req.BedNumber)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"bed_number": patient.BedNumber})
}

// EvaluateDischarge handles POST /api/patients/{id}/evaluate-discharge
func (h *PatientHandler) EvaluateDischarge(w http.ResponseWriter, r *http.Request) {
	if h.discharge == nil {
		respondWithError(w, http.StatusServiceUnavailable, "discharge assessment is not configured")
		return
	}

	id := r.PathValue("id")
	verdict, err := h.discharge.Evaluate(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"verdict": verdict})
}

// ResolveBlocked handles POST /api/patients/{id}/resolve-blocked
func (h *PatientHandler) ResolveBlocked(w http.ResponseWriter, r *http.Request) {
	if h.discharge == nil {
		respondWithError(w, http.StatusServiceUnavailable, "discharge assessment is not configured")
		return
	}

	id := r.PathValue("id")
	verdict, err := h.discharge.ResolveBlocked(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"verdict": verdict})
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps the error taxonomy onto HTTP status codes
func respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, appErr.Message)
	case apperrors.ErrorTypeValidation, apperrors.ErrorTypeInvalidState:
		respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.ErrorTypeConflict:
		respondWithError(w, http.StatusConflict, appErr.Message)
	case apperrors.ErrorTypeExternal:
		respondWithError(w, http.StatusBadGateway, appErr.Message)
	default:
		respondWithError(w, http.StatusInternalServerError, appErr.Message)
	}
}
