package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// DecodeJSON decodes JSON request body into the target struct. A malformed
// body is reported as a validation error. Unknown fields are ignored so
// clients may send derived values (totals, balances) the server recomputes.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return NewValidationError("request body required")
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return NewValidationError("malformed request body", err.Error())
	}
	return nil
}
