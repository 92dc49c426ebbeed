// Package http holds the HTTP handlers for the license API: the
// client-facing license endpoints, the admin surface and health probes.
package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "keyserve/internal/errors"
)

// validate is the shared validator instance; validator instances cache
// struct metadata and are safe for concurrent use.
var validate = validator.New()

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation, translating failures into field-level messages.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		return apperrors.BadRequest("invalid JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, strings.ToLower(fe.Field()))
			}
			return apperrors.BadRequest("invalid or missing fields: " + strings.Join(fields, ", "))
		}
		return apperrors.BadRequest("invalid request")
	}
	return nil
}
