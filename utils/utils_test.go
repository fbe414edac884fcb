package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/logger"
)

func TestErrorResponderMapsKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"not found", NotFound("Product not found"), http.StatusNotFound, "Product not found"},
		{"unauthorized", Unauthorized("Not authorized, no token"), http.StatusUnauthorized, "Not authorized, no token"},
		{"conflict", Conflict("User already exists"), http.StatusConflict, "User already exists"},
		{"validation", Validation("rating is required"), http.StatusBadRequest, "rating is required"},
		{"upstream", Upstream("Error generating checkout session", errors.New("boom")), http.StatusInternalServerError, "Error generating checkout session"},
		{"plain error", errors.New("mongo down"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ErrorResponder{}.Write(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.msg, body["message"])
			assert.NotContains(t, body, "stack")
		})
	}
}

func TestErrorResponderIncludesStackOutsideProduction(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorResponder{ShowStack: true}.Write(rec, NotFound("Order not found"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["stack"], "Order not found")
	assert.Contains(t, body["stack"], "utils_test.go")
}

func TestErrorResponderLogsServerFailures(t *testing.T) {
	var out, errOut bytes.Buffer
	er := ErrorResponder{Log: logger.New(&out, &errOut)}

	er.Write(httptest.NewRecorder(), NotFound("Order not found"))
	assert.Empty(t, errOut.String())

	er.Write(httptest.NewRecorder(), Internal("Could not load order", errors.New("mongo down")))
	assert.Contains(t, errOut.String(), "ERROR: request failed status=500 err=Could not load order: mongo down")
}

func TestNotFoundHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorResponder{}.NotFoundHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not Found - /api/nope")
}

func TestParsePage(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?pageNumber=3&pageSize=5", nil)
	p := ParsePage(r, 8)
	assert.Equal(t, Page{Number: 3, Size: 5}, p)
	assert.Equal(t, int64(10), p.Skip())
	assert.Equal(t, 3, p.Pages(11))

	r = httptest.NewRequest(http.MethodGet, "/?page=2&pageSize=-1", nil)
	assert.Equal(t, Page{Number: 2, Size: 8}, ParsePage(r, 8))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, Page{Number: 1, Size: 3}, ParsePage(r, 3))
}

func TestSetPaginationHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	SetPaginationHeader(rec, Page{Number: 2, Size: 8}, 17)

	var got Pagination
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get("X-Pagination")), &got))
	assert.Equal(t, Pagination{Page: 2, PageSize: 8, TotalRecords: 17, TotalPages: 3}, got)
}

func TestDecodeJSONValidates(t *testing.T) {
	type input struct {
		Email  string `json:"email" validate:"required,email"`
		Rating int    `json:"rating" validate:"min=1,max=5"`
	}

	var in input
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","rating":9}`))
	err := DecodeJSON(r, &in)
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status())
	assert.Contains(t, httpErr.Message, "email must be a valid email")
	assert.Contains(t, httpErr.Message, "rating must be at most 5")

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","rating":4}`))
	require.NoError(t, DecodeJSON(r, &in))
	assert.Equal(t, 4, in.Rating)
}
