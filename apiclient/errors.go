package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Error is a non-2xx answer of the API.
type Error struct {
	Status  int
	Message string
	Fields  map[string]string // field -> error, set on validation errors
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		flds := make([]string, 0, len(e.Fields))
		for fld, msg := range e.Fields {
			flds = append(flds, fld+": "+msg)
		}
		sort.Strings(flds)
		return fmt.Sprintf("%d %s", e.Status, strings.Join(flds, "; "))
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *Error) IsValidation() bool   { return e.Status == http.StatusBadRequest }
func (e *Error) IsUnauthorized() bool { return e.Status == http.StatusUnauthorized }
func (e *Error) IsForbidden() bool    { return e.Status == http.StatusForbidden }
func (e *Error) IsNotFound() bool     { return e.Status == http.StatusNotFound }

// AsError returns the *Error behind err, if any.
func AsError(err error) (*Error, bool) {
	apiErr, ok := errors.Cause(err).(*Error)
	return apiErr, ok
}

// IsUnauthorized reports whether err means the session is missing or expired.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.IsUnauthorized()
}

// IsNotFound reports whether err is a 404 of the API.
func IsNotFound(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.IsNotFound()
}

// newError decodes the error body of the API: either {"error": "..."} or a field map.
func newError(status int, body []byte) *Error {
	apiErr := &Error{Status: status, Message: http.StatusText(status)}

	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		if msg := strings.TrimSpace(string(body)); msg != "" {
			apiErr.Message = msg
		}
		return apiErr
	}

	if msg, ok := data["error"].(string); ok && len(data) == 1 {
		apiErr.Message = msg
		return apiErr
	}
	if msg, ok := data["message"].(string); ok && len(data) == 1 {
		apiErr.Message = msg
		return apiErr
	}

	apiErr.Fields = make(map[string]string, len(data))
	for fld, v := range data {
		if msg, ok := v.(string); ok {
			apiErr.Fields[fld] = msg
		}
	}
	return apiErr
}
