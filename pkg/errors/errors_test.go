package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", DetailsAllowed: true},
		CodeConflict:      {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", DetailsAllowed: true},
		CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
		CodeStateConflict: {HTTPStatus: http.StatusConflict, PublicMessage: "state transition disallowed", DetailsAllowed: true},
		CodeIdempotency:   {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true},
		CodeRateLimit:     {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded"},
		CodeExternal:      {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "external service failure", DetailsAllowed: true},
		CodeInvariant:     {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error"},
		CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
	}
	for code, want := range cases {
		require.Equal(t, want, MetadataFor(code), "code %s", code)
	}
	require.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "load cart")

	require.ErrorIs(t, err, cause)
	require.Equal(t, CodeDependency, err.Code())
	require.Equal(t, "load cart", err.Message())
	require.Equal(t, "DEPENDENCY_ERROR: load cart: connection reset", err.Error())
	require.Equal(t, "NOT_FOUND: product not found", Wrap(CodeNotFound, nil, "product not found").Error())
}

func TestNilErrorIsSafe(t *testing.T) {
	var err *Error
	require.Equal(t, CodeInternal, err.Code())
	require.Empty(t, err.Message())
	require.Nil(t, err.Details())
	require.Nil(t, err.WithReason("x"))
	require.Nil(t, err.Unwrap())
}

func TestAsAndIs(t *testing.T) {
	wrapped := fmt.Errorf("checkout: %w", New(CodeStateConflict, "order already paid"))

	typed := As(wrapped)
	require.NotNil(t, typed)
	require.Equal(t, CodeStateConflict, typed.Code())
	require.True(t, Is(wrapped, CodeStateConflict))
	require.False(t, Is(wrapped, CodeConflict))
	require.Nil(t, As(nil))
	require.Nil(t, As(stdErrors.New("plain")))
}

func TestReason(t *testing.T) {
	err := New(CodeStateConflict, "order cannot be cancelled").WithReason("CANNOT_CANCEL_ORDER")
	require.Equal(t, "CANNOT_CANCEL_ORDER", Reason(fmt.Errorf("cancel: %w", err)))
	require.Empty(t, Reason(stdErrors.New("plain")))
	require.Empty(t, Reason(New(CodeValidation, "bad").WithDetails("x")))
}

func TestWithDetailMergesIntoMap(t *testing.T) {
	err := New(CodeStateConflict, "insufficient stock").
		WithDetail("productId", "p-1").
		WithReason("INSUFFICIENT_STOCK")

	require.Equal(t, map[string]any{"productId": "p-1", "reason": "INSUFFICIENT_STOCK"}, err.Details())

	replaced := New(CodeValidation, "bad").WithDetails("raw").WithDetail("field", "email")
	require.Equal(t, map[string]any{"field": "email"}, replaced.Details())
}
