package httputil

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/mediagate/pkg/apperr"
)

type createRequest struct {
	Title string `json:"title"`
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
		want        string
	}{
		{name: "valid JSON", body: `{"title": "Intro"}`, want: "Intro"},
		{name: "empty body", body: ``},
		{name: "invalid JSON", body: `{invalid}`, expectError: true},
		{name: "unknown field", body: `{"title": "x", "owner": "me"}`, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tt.body))
			var dest createRequest

			err := ParseJSON(req, &dest)

			if tt.expectError {
				assert.True(t, errors.Is(err, apperr.ErrInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dest.Title)
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`nope`))
	w := httptest.NewRecorder()
	var dest createRequest

	assert.False(t, ParseJSONOrError(w, req, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"invalid"`)
}

func TestPathVar(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/content/abc", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "abc"})

	assert.Equal(t, "abc", PathVar(req, "id"))
	assert.Equal(t, "", PathVar(req, "missing"))
}

func TestParseQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?limit=5&draft=true&status=draft&bad=x", nil)

	limit, err := ParseQueryInt(req, "limit", 20)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)

	offset, err := ParseQueryInt(req, "offset", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, offset)

	_, err = ParseQueryInt(req, "bad", 0)
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	draft, err := ParseQueryBool(req, "draft", false)
	require.NoError(t, err)
	assert.True(t, draft)

	_, err = ParseQueryBool(req, "bad", false)
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	assert.Equal(t, "draft", ParseQueryString(req, "status", "any"))
	assert.Equal(t, "any", ParseQueryString(req, "type", "any"))
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("expires_at", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	empty := ""
	got, err = ParseTime("expires_at", &empty)
	require.NoError(t, err)
	assert.Nil(t, got)

	valid := "2026-03-01T10:00:00Z"
	got, err = ParseTime("expires_at", &valid)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))

	invalid := "tomorrow"
	_, err = ParseTime("expires_at", &invalid)
	assert.ErrorContains(t, err, "expires_at must be an RFC 3339 timestamp")
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query   string
		want    Page
		wantErr bool
	}{
		{query: "", want: Page{Limit: 20}},
		{query: "limit=5&offset=10", want: Page{Limit: 5, Offset: 10}},
		{query: "limit=1000", want: Page{Limit: 100}},
		{query: "limit=0", wantErr: true},
		{query: "offset=-1", wantErr: true},
		{query: "limit=abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
			got, err := ParsePage(req, 20, 100)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{1, 2}, Paginate(Page{Limit: 2}, items))
	assert.Equal(t, []int{4, 5}, Paginate(Page{Limit: 10, Offset: 3}, items))
	assert.Empty(t, Paginate(Page{Limit: 2, Offset: 5}, items))
}

func TestRequireNonEmpty(t *testing.T) {
	assert.NoError(t, RequireNonEmpty("title", "Intro"))
	err := RequireNonEmpty("title", "")
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	assert.Contains(t, err.Error(), "title is required")
}
