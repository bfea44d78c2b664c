package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mediagate/pkg/apperr"
)

// ParseJSON decodes the request body into dest, rejecting unknown fields.
// An empty body leaves dest untouched.
func ParseJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Invalid("invalid JSON: %v", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteAppError(w, err)
		return false
	}
	return true
}

// PathVar returns a mux path variable
func PathVar(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, apperr.Invalid("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// ParseQueryBool extracts and parses a boolean query parameter
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return false, apperr.Invalid("invalid boolean for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseTime parses an optional RFC 3339 timestamp from a request body field
func ParseTime(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, apperr.Invalid("%s must be an RFC 3339 timestamp", field)
	}
	return &t, nil
}

// Page holds limit/offset paging parameters
type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads limit and offset, capping limit at maxLimit
func ParsePage(r *http.Request, defaultLimit, maxLimit int) (Page, error) {
	limit, err := ParseQueryInt(r, "limit", defaultLimit)
	if err != nil {
		return Page{}, err
	}
	offset, err := ParseQueryInt(r, "offset", 0)
	if err != nil {
		return Page{}, err
	}
	if limit <= 0 || offset < 0 {
		return Page{}, apperr.Invalid("limit must be positive and offset non-negative")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Page{Limit: limit, Offset: offset}, nil
}

// Paginate slices items to the page
func Paginate[T any](p Page, items []T) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	end := p.Offset + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[p.Offset:end]
}

// RequireNonEmpty returns an ErrInvalid naming field when value is empty
func RequireNonEmpty(field, value string) error {
	if value == "" {
		return apperr.Invalid("%s is required", field)
	}
	return nil
}
