package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/carepoint/internal/gateway"
	"github.com/hongminglow/carepoint/internal/guard"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestGatewayError_KeepsBackendDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	GatewayError(rec, &gateway.Error{Kind: gateway.Forbidden, Status: 403, Detail: "Only admins may approve leave."})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "Only admins may approve leave.", env.Message)
	assert.Equal(t, "forbidden", env.Kind)
}

func TestGatewayError_Validation(t *testing.T) {
	rec := httptest.NewRecorder()
	GatewayError(rec, &gateway.Error{Kind: gateway.Validation, Status: 400, Fields: map[string][]string{"date": {"required"}}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, map[string][]string{"date": {"required"}}, env.Fields)
	assert.Equal(t, "date: required", env.Message)
}

func TestGatewayError_UnauthenticatedRedirects(t *testing.T) {
	rec := httptest.NewRecorder()
	GatewayError(rec, &gateway.Error{Kind: gateway.Unauthenticated, Status: 401})
	env := decode(t, rec)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, guard.LoginPath, env.Redirect)
	assert.Equal(t, "unauthenticated", env.Message)
}

func TestGatewayError_Plain(t *testing.T) {
	rec := httptest.NewRecorder()
	GatewayError(rec, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(gateway.NetworkError))
	assert.Equal(t, http.StatusBadGateway, StatusFor(gateway.ServerError))
	assert.Equal(t, http.StatusBadGateway, StatusFor(gateway.MalformedResponse))
	assert.Equal(t, http.StatusNotFound, StatusFor(gateway.NotFound))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(gateway.InvalidCredentials))
}
