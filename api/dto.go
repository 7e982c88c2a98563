/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal engine model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Variables:
    VariableDTO, EnumItemDTO (projected from engine.Schema)

  Simulations:
    SimulateRequest, SimulateResponse

  Surveys:
    SaveSurveyRequest, SurveyDTO, RunSurveyRequest, RunSurveyResponse

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/variable.go: Schema projection these DTOs mirror
*/
package api

import (
	"github.com/warp/fiscal-engine/datatable"
	"github.com/warp/fiscal-engine/engine"
	"github.com/warp/fiscal-engine/store/sqlite"
)

// =============================================================================
// VARIABLE TYPES
// =============================================================================

// VariableDTO describes a registered variable in API responses.
type VariableDTO struct {
	Name    string        `json:"name"`
	Kind    string        `json:"kind"`
	Entity  string        `json:"entity"`
	Label   string        `json:"label,omitempty"`
	Default any           `json:"default,omitempty"`
	Start   string        `json:"start,omitempty"`
	End     string        `json:"end,omitempty"`
	Formula bool          `json:"formula"`
	Enum    []EnumItemDTO `json:"enum,omitempty"`
}

// EnumItemDTO is one enumeration member.
type EnumItemDTO struct {
	Code  int32  `json:"code"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

func toVariableDTO(s engine.Schema) VariableDTO {
	dto := VariableDTO{
		Name:    s.Name,
		Kind:    s.Type,
		Entity:  s.Entity,
		Label:   s.Label,
		Default: s.Default,
		Start:   s.Start,
		End:     s.End,
		Formula: s.Formula,
	}
	for _, item := range s.Labels {
		dto.Enum = append(dto.Enum, EnumItemDTO{
			Code:  item.Code,
			Label: item.Label,
			Slug:  engine.Slugify(item.Label),
		})
	}
	return dto
}

// =============================================================================
// SIMULATION TYPES
// =============================================================================

// SimulateRequest is the request body of the simulation endpoint. The
// scenario is embedded as-is; Variables names the columns to compute.
type SimulateRequest struct {
	Scenario datatable.Scenario `json:"scenario"`

	// Variables to compute. Required, at least one.
	Variables []string `json:"variables"`

	// Reform switches the evaluation to the reform legislation and adds
	// baseline and difference columns to the response.
	Reform bool `json:"reform,omitempty"`
}

// SimulateResponse carries computed columns keyed by variable name.
type SimulateResponse struct {
	RunID   string           `json:"run_id"`
	Date    string           `json:"date"`
	Results map[string][]any `json:"results"`

	// Baseline and Difference are present only for reform runs.
	Baseline   map[string][]any     `json:"baseline,omitempty"`
	Difference map[string][]float64 `json:"difference,omitempty"`
}

// =============================================================================
// SURVEY TYPES
// =============================================================================

// SaveSurveyRequest stores a scenario as a named survey.
type SaveSurveyRequest struct {
	Name     string             `json:"name"`
	Scenario datatable.Scenario `json:"scenario"`
}

// SurveyDTO wraps the store's listing entry.
type SurveyDTO = sqlite.SurveyInfo

// RunSurveyRequest computes variables over a stored survey.
type RunSurveyRequest struct {
	Variables []string `json:"variables"`

	// Date overrides the survey's stored evaluation date.
	Date string `json:"date,omitempty"`
}

// RunSurveyResponse reports a persisted computation run.
type RunSurveyResponse struct {
	SurveyID string           `json:"survey_id"`
	RunID    string           `json:"run_id"`
	Results  map[string][]any `json:"results"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
