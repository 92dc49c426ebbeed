package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"keyserve/internal/infrastructure"
)

// ProblemDetails implements RFC 7807 problem+json responses.
type ProblemDetails struct {
	Type       string                 `json:"type"`
	Title      string                 `json:"title"`
	Status     int                    `json:"status"`
	Detail     string                 `json:"detail,omitempty"`
	Instance   string                 `json:"instance,omitempty"`
	TraceID    string                 `json:"trace_id,omitempty"`
	Extensions map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Extensions into the top-level object.
func (p *ProblemDetails) MarshalJSON() ([]byte, error) {
	type alias ProblemDetails
	base, err := json.Marshal((*alias)(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extensions) == 0 {
		return base, nil
	}

	var merged map[string]interface{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.Extensions {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Render implements render.Renderer.
func (p *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/problem+json")
	render.Status(r, p.Status)
	return nil
}

// NewProblem creates a ProblemDetails with a stable type URI derived from code.
func NewProblem(status int, code, detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:   "https://keyserve.dev/problems/" + code,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

// WithExtension attaches an extension member to the problem.
func (p *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	if p.Extensions == nil {
		p.Extensions = map[string]interface{}{}
	}
	p.Extensions[key] = value
	return p
}

// MapToProblem converts any service error into a ProblemDetails, stamping
// the request path and trace ID from the request context.
func MapToProblem(err error, r *http.Request) *ProblemDetails {
	p := mapError(err)
	p.Instance = r.URL.Path
	p.TraceID = infrastructure.GetTraceID(r.Context())
	return p
}

func mapError(err error) *ProblemDetails {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return NewProblem(apiErr.Status, codeSlug(apiErr.Code), apiErr.Message)
	}

	switch {
	case errors.Is(err, ErrLicenseNotFound):
		return NewProblem(http.StatusNotFound, "license-not-found", "Invalid license key")
	case errors.Is(err, ErrLicenseRevoked):
		return NewProblem(http.StatusForbidden, "license-revoked", "License has been revoked")
	case errors.Is(err, ErrLicenseExpired):
		return NewProblem(http.StatusForbidden, "license-expired", "License has expired")
	case errors.Is(err, ErrMachineNotActivated):
		return NewProblem(http.StatusForbidden, "machine-not-activated", "This machine is not activated for the license")
	case errors.Is(err, ErrMachineLimitReached):
		return NewProblem(http.StatusConflict, "machine-limit-reached", "Machine limit reached for this license")
	case errors.Is(err, ErrTrialAlreadyUsed):
		return NewProblem(http.StatusConflict, "trial-already-used", "Trial already used on this machine")
	case errors.Is(err, ErrUnknownTier):
		return NewProblem(http.StatusBadRequest, "unknown-tier", "Unknown license tier")
	case errors.Is(err, ErrUnauthorized):
		return NewProblem(http.StatusUnauthorized, "unauthorized", "Unauthorized")
	case errors.Is(err, ErrInvalidRequest):
		return NewProblem(http.StatusBadRequest, "invalid-request", err.Error())
	case errors.Is(err, ErrStoreUnavailable):
		return NewProblem(http.StatusServiceUnavailable, "store-unavailable", "Backing store unavailable")
	default:
		return NewProblem(http.StatusInternalServerError, "internal-error", "An internal error occurred")
	}
}

func codeSlug(code string) string {
	out := make([]byte, len(code))
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out[i] = c + ('a' - 'A')
		case c == '_':
			out[i] = '-'
		default:
			out[i] = c
		}
	}
	return string(out)
}
