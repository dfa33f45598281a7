package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
)

type addressBody struct {
	City string `json:"city" validate:"required"`
}

type createBody struct {
	Quantity int         `json:"quantity" validate:"gte=1"`
	Address  addressBody `json:"address"`
}

func TestDecodeJSONBodyReportsNestedFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":0,"address":{}}`))

	var body createBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be at least 1", details["quantity"])
	require.Equal(t, "is required", details["address.city"])
}

func TestDecodeJSONBodyRejectsUnknownAndEmpty(t *testing.T) {
	var body createBody
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bogus":1}`)), &body)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &body)
	require.Equal(t, "request body is required", pkgerrors.As(err).Message())
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500&bad=x", nil)

	page, err := ParseQueryInt(req, "page", 1, 1, 1000)
	require.NoError(t, err)
	require.Equal(t, 3, page)

	_, err = ParseQueryInt(req, "limit", 20, 1, 100)
	require.Error(t, err)
	_, err = ParseQueryInt(req, "bad", 1, 1, 10)
	require.Error(t, err)

	def, err := ParseQueryInt(req, "missing", 7, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 7, def)
}

func TestParseURLUUID(t *testing.T) {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("id", "not-a-uuid")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	_, err := ParseURLUUID(req, "id")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestSanitizeStringCountsRunes(t *testing.T) {
	require.Equal(t, "héllo", SanitizeString("  héllo wörld ", 5))
	require.Equal(t, "abc", SanitizeString(" abc ", 0))
}
func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	payload := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))

	var dest struct {
		Name string `json:"name"`
	}
	err := DecodeJSONBody(req, &dest)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if typed.Message() != "request body too large" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}
