/*
handlers.go - HTTP API handlers for the fiscal computation engine

PURPOSE:
  Exposes the variable registry and the simulation engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  the engine and the survey store.

ENDPOINTS:
  Variables:
    GET    /api/variables              List the variable registry
    GET    /api/variables/{name}       One variable's metadata

  Simulations:
    POST   /api/simulations            Run a scenario, optionally as reform

  Scenarios:
    GET    /api/scenarios              List canned demo scenarios
    GET    /api/scenarios/{name}       One demo scenario body

  Surveys:
    GET    /api/surveys                List stored surveys
    POST   /api/surveys                Store a scenario as a survey
    GET    /api/surveys/{id}           Stored survey body
    DELETE /api/surveys/{id}           Remove a survey
    POST   /api/surveys/{id}/runs      Compute and persist results

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Build a simulation, apply the population, compute
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, cycles
  - 404: Unknown variable, scenario or survey
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/fiscal-engine/datatable"
	"github.com/warp/fiscal-engine/engine"
	"github.com/warp/fiscal-engine/factory"
	"github.com/warp/fiscal-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Factory *factory.Factory

	// Store is optional; survey endpoints return 503 without it.
	Store *sqlite.Store
}

// NewHandler creates a new handler around a built factory.
func NewHandler(f *factory.Factory, store *sqlite.Store) *Handler {
	return &Handler{Factory: f, Store: store}
}

// =============================================================================
// VARIABLE HANDLERS
// =============================================================================

// ListVariables returns the full registry schema.
// GET /api/variables
func (h *Handler) ListVariables(w http.ResponseWriter, r *http.Request) {
	schemas := h.Factory.Registry().Schemas()
	dtos := make([]VariableDTO, len(schemas))
	for i, s := range schemas {
		dtos[i] = toVariableDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetVariable returns one variable's metadata.
// GET /api/variables/{name}
func (h *Handler) GetVariable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := h.Factory.Registry().Variable(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown variable", &engine.UnknownVariableError{Variable: name})
		return
	}
	writeJSON(w, http.StatusOK, toVariableDTO(v.Schema()))
}

// =============================================================================
// SIMULATION HANDLER
// =============================================================================

// Simulate runs a scenario and returns the requested columns.
// POST /api/simulations
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Variables) == 0 {
		writeError(w, http.StatusBadRequest, "No variables requested", nil)
		return
	}

	date, ok, err := req.Scenario.EvaluationDate()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scenario date", err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Scenario date is required", nil)
		return
	}

	sim, err := h.newSimulation(date, req.Reform)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build simulation", err)
		return
	}
	if err := req.Scenario.Apply(sim); err != nil {
		writeError(w, statusFor(err), "Failed to apply scenario", err)
		return
	}

	resp := SimulateResponse{
		RunID:   uuid.New().String(),
		Date:    req.Scenario.Date,
		Results: make(map[string][]any, len(req.Variables)),
	}

	var baseline *engine.Simulation
	if req.Reform {
		baseline = sim.BaselineFork()
		resp.Baseline = make(map[string][]any, len(req.Variables))
		resp.Difference = make(map[string][]float64, len(req.Variables))
	}

	for _, name := range req.Variables {
		vec, err := sim.Compute(name)
		if err != nil {
			writeError(w, statusFor(err), fmt.Sprintf("Failed to compute %q", name), err)
			return
		}
		resp.Results[name] = encodeColumn(vec)

		if baseline == nil {
			continue
		}
		base, err := baseline.Compute(name)
		if err != nil {
			writeError(w, statusFor(err), fmt.Sprintf("Failed to compute baseline %q", name), err)
			return
		}
		resp.Baseline[name] = encodeColumn(base)
		if vec.Kind() == engine.KindDate {
			// Dates have no numeric view, so no difference column.
			continue
		}
		diff, err := engine.Difference(vec, base)
		if err != nil {
			writeError(w, statusFor(err), fmt.Sprintf("Failed to diff %q against baseline", name), err)
			return
		}
		resp.Difference[name] = diff
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) newSimulation(date time.Time, reform bool) (*engine.Simulation, error) {
	if reform {
		return h.Factory.NewReformSimulation(date)
	}
	return h.Factory.NewSimulation(date)
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the names of the canned demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Factory.DemoScenarioNames())
}

// GetScenario returns one demo scenario body.
// GET /api/scenarios/{name}
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := h.Factory.DemoScenario(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// =============================================================================
// SURVEY HANDLERS
// =============================================================================

func (h *Handler) surveyStore(w http.ResponseWriter) *sqlite.Store {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "Survey storage is not configured", nil)
		return nil
	}
	return h.Store
}

// ListSurveys returns all stored surveys.
// GET /api/surveys
func (h *Handler) ListSurveys(w http.ResponseWriter, r *http.Request) {
	store := h.surveyStore(w)
	if store == nil {
		return
	}
	surveys, err := store.ListSurveys(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list surveys", err)
		return
	}
	if surveys == nil {
		surveys = []SurveyDTO{}
	}
	writeJSON(w, http.StatusOK, surveys)
}

// SaveSurvey stores a scenario as a named survey.
// POST /api/surveys
func (h *Handler) SaveSurvey(w http.ResponseWriter, r *http.Request) {
	store := h.surveyStore(w)
	if store == nil {
		return
	}
	var req SaveSurveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	id, err := store.SaveSurvey(r.Context(), req.Name, &req.Scenario)
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "UNIQUE") {
			status = http.StatusConflict
		}
		writeError(w, status, "Failed to save survey", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// GetSurvey returns a stored survey's scenario body.
// GET /api/surveys/{id}
func (h *Handler) GetSurvey(w http.ResponseWriter, r *http.Request) {
	store := h.surveyStore(w)
	if store == nil {
		return
	}
	sc, err := store.LoadScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Survey not found", err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// DeleteSurvey removes a stored survey.
// DELETE /api/surveys/{id}
func (h *Handler) DeleteSurvey(w http.ResponseWriter, r *http.Request) {
	store := h.surveyStore(w)
	if store == nil {
		return
	}
	if err := store.DeleteSurvey(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, "Survey not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunSurvey computes variables over a stored survey and persists the
// result columns under a fresh run id.
// POST /api/surveys/{id}/runs
func (h *Handler) RunSurvey(w http.ResponseWriter, r *http.Request) {
	store := h.surveyStore(w)
	if store == nil {
		return
	}
	surveyID := chi.URLParam(r, "id")

	var req RunSurveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Variables) == 0 {
		writeError(w, http.StatusBadRequest, "No variables requested", nil)
		return
	}

	sc, err := store.LoadScenario(r.Context(), surveyID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Survey not found", err)
		return
	}
	date, err := runDate(req.Date, sc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No usable evaluation date", err)
		return
	}

	sim, err := h.Factory.NewSimulation(date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build simulation", err)
		return
	}
	if err := sc.Apply(sim); err != nil {
		writeError(w, statusFor(err), "Failed to apply survey", err)
		return
	}

	vectors := make(map[string]engine.Vector, len(req.Variables))
	for _, name := range req.Variables {
		vec, err := sim.Compute(name)
		if err != nil {
			writeError(w, statusFor(err), fmt.Sprintf("Failed to compute %q", name), err)
			return
		}
		vectors[name] = vec
	}

	runID := uuid.New().String()
	if err := store.SaveResults(r.Context(), surveyID, runID, vectors); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist results", err)
		return
	}

	resp := RunSurveyResponse{
		SurveyID: surveyID,
		RunID:    runID,
		Results:  make(map[string][]any, len(vectors)),
	}
	for name, vec := range vectors {
		resp.Results[name] = encodeColumn(vec)
	}
	writeJSON(w, http.StatusOK, resp)
}

// runDate prefers the explicit override, then the survey's stored date.
func runDate(override string, sc *datatable.Scenario) (time.Time, error) {
	if override != "" {
		t, err := time.ParseInLocation("2006-01-02", override, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("date %q: %w", override, err)
		}
		return t, nil
	}
	date, ok, err := sc.EvaluationDate()
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, fmt.Errorf("survey has no stored date; pass one in the request")
	}
	return date, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// encodeColumn flattens a vector for JSON, dates as ISO day strings.
func encodeColumn(vec engine.Vector) []any {
	out := make([]any, vec.Len())
	for i := range out {
		switch x := vec.At(i).(type) {
		case time.Time:
			out[i] = x.Format("2006-01-02")
		default:
			out[i] = x
		}
	}
	return out
}

// statusFor maps engine errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownVariable):
		return http.StatusNotFound
	case engine.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
