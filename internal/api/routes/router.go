package routes

import (
	"net/http"

	"github.com/adetayo/edflowsim/backend/internal/api/handlers"
	"github.com/adetayo/edflowsim/backend/internal/api/middleware"
)

// Router holds the API handlers and wires them to routes
type Router struct {
	simHandler     *handlers.SimHandler
	patientHandler *handlers.PatientHandler
	sseHandler     *handlers.SSEHandler
	wsHandler      *handlers.WSHandler
	mux            *http.ServeMux
}

// NewRouter creates a new router with all handlers
func NewRouter(
	simHandler *handlers.SimHandler,
	patientHandler *handlers.PatientHandler,
	sseHandler *handlers.SSEHandler,
	wsHandler *handlers.WSHandler,
) *Router {
	return &Router{
		simHandler:     simHandler,
		patientHandler: patientHandler,
		sseHandler:     sseHandler,
		wsHandler:      wsHandler,
		mux:            http.NewServeMux(),
	}
}

// SetupRoutes configures all API routes and returns the wrapped handler
func (r *Router) SetupRoutes() http.Handler {
	// Health check
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Simulation control
	r.mux.HandleFunc("POST /api/sim/start", r.simHandler.Start)
	r.mux.HandleFunc("POST /api/sim/stop", r.simHandler.Stop)
	r.mux.HandleFunc("POST /api/sim/speed", r.simHandler.SetSpeed)
	r.mux.HandleFunc("POST /api/sim/mode", r.simHandler.SetMode)
	r.mux.HandleFunc("POST /api/sim/inject", r.simHandler.Inject)
	r.mux.HandleFunc("GET /api/sim/state", r.simHandler.GetState)

	// Patients
	r.mux.HandleFunc("GET /api/patients", r.patientHandler.ListPatients)
	r.mux.HandleFunc("GET /api/patients/{id}", r.patientHandler.GetPatient)
	r.mux.HandleFunc("POST /api/patients/{id}/accept", r.patientHandler.Accept)
	r.mux.HandleFunc("POST /api/patients/{id}/advance", r.patientHandler.Advance)
	r.mux.HandleFunc("POST /api/patients/{id}/assign-bed", r.patientHandler.AssignBed)
	r.mux.HandleFunc("POST /api/patients/{id}/evaluate-discharge", r.patientHandler.EvaluateDischarge)
	r.mux.HandleFunc("POST /api/patients/{id}/resolve-blocked", r.patientHandler.ResolveBlocked)

	// Streaming
	r.mux.HandleFunc("GET /api/stream/updates", r.sseHandler.StreamSimUpdates)
	r.mux.HandleFunc("GET /api/stream/patients/{id}", r.sseHandler.StreamPatientUpdates)
	r.mux.HandleFunc("GET /ws", r.wsHandler.StreamUpdates)

	// Apply middleware
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
