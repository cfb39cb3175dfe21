package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type errorBody struct {
	Error      string            `json:"error"`
	Message    string            `json:"message"`
	Violations []string          `json:"violations,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, messageBody{Message: message})
}

// writeError maps an engine error onto a status and body. Unknown errors are
// logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", goIdentity.RequestIDFromContext(r.Context()),
		)
	}
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, errorBody) {
	var policyErr *goIdentity.PolicyError
	var fieldErr *goIdentity.FieldError
	var preErr *goIdentity.PreconditionError

	switch {
	case errors.As(err, &policyErr):
		return http.StatusBadRequest, errorBody{
			Error:      "weak_password",
			Message:    "Password does not meet the requirements.",
			Violations: policyErr.Violations,
		}
	case errors.Is(err, goIdentity.ErrWeakCredential):
		return http.StatusBadRequest, errorBody{Error: "weak_password", Message: "Password does not meet the requirements."}
	case errors.As(err, &fieldErr):
		return http.StatusBadRequest, errorBody{
			Error:   "invalid_input",
			Message: "Request is invalid.",
			Fields:  fieldErr.Fields,
		}
	case errors.Is(err, goIdentity.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: "invalid_input", Message: "Request is invalid."}
	case errors.Is(err, goIdentity.ErrCommitContention):
		return http.StatusConflict, errorBody{Error: "concurrent_update", Message: "The account was updated concurrently. Please try again."}
	case errors.Is(err, goIdentity.ErrConflict):
		return http.StatusBadRequest, errorBody{Error: "conflict", Message: "Email is already in use."}
	case errors.Is(err, goIdentity.ErrInvalidToken):
		return http.StatusBadRequest, errorBody{Error: "invalid_token", Message: "Invalid token"}
	case errors.As(err, &preErr) && preErr.Reason != "":
		return http.StatusBadRequest, errorBody{Error: "precondition_failed", Message: preErr.Reason}
	case errors.Is(err, goIdentity.ErrPreconditionFailed):
		return http.StatusBadRequest, errorBody{Error: "precondition_failed", Message: "Request cannot be applied to this account."}
	case errors.Is(err, goIdentity.ErrInvalidCredential):
		return http.StatusBadRequest, errorBody{Error: "invalid_credential", Message: "Current password is incorrect."}
	case errors.Is(err, goIdentity.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not_found", Message: "User not found"}
	case errors.Is(err, goIdentity.ErrForbidden):
		return http.StatusForbidden, errorBody{Error: "forbidden", Message: "Access denied."}
	case errors.Is(err, goIdentity.ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Error: "rate_limited", Message: "Too many requests. Please slow down."}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "An internal error occurred."}
	}
}
