// Package httpio decodes requests, writes JSON bodies and maps service errors
// to HTTP status codes for the endpoint handlers.
package httpio

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/pkg/http/middleware/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/schema"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidTransition),
		errors.Is(err, errs.ErrDuplicateDispute),
		errors.Is(err, errs.ErrDisputeClosed),
		errors.Is(err, errs.ErrOrderLocked),
		errors.Is(err, errs.ErrRequestInProgress):
		return http.StatusConflict
	case errors.Is(err, errs.ErrMissingPaymentReference),
		errors.Is(err, errs.ErrEmptyMessage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as an ErrorBody. Internal errors are logged and their
// text is not exposed.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	body := ErrorBody{Error: errs.Code(err), Message: err.Error()}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body.Message = http.StatusText(status)
	}

	JSON(w, status, body)
}

// Decode reads a JSON body into dst and validates its struct tags. Any
// failure is reported as an invalid argument.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", errs.ErrInvalidArgument, err)
	}

	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	}

	return nil
}

// UUIDParam parses the named chi URL parameter.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid id", errs.ErrInvalidArgument, name)
	}

	return id, nil
}

// Actor returns the authenticated caller. The auth middleware guarantees
// presence on every API route.
func Actor(r *http.Request) (actor.Actor, error) {
	a, ok := auth.ActorFromContext(r.Context())
	if !ok {
		return actor.Actor{}, fmt.Errorf("%w: no authenticated actor", errs.ErrForbidden)
	}

	return a, nil
}

// NewQueryDecoder returns a schema decoder that also understands RFC 3339
// timestamps and plain dates.
func NewQueryDecoder() *schema.Decoder {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	decoder.RegisterConverter(time.Time{}, func(s string) reflect.Value {
		for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
			if t, err := time.Parse(layout, s); err == nil {
				return reflect.ValueOf(t)
			}
		}

		return reflect.Value{}
	})

	return decoder
}

// DecodeQuery fills dst from the URL query.
func DecodeQuery(r *http.Request, dst any) error {
	if err := NewQueryDecoder().Decode(dst, r.URL.Query()); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	}

	return nil
}

// ParseUUIDs parses query ids.
func ParseUUIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a valid id", errs.ErrInvalidArgument, s)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
