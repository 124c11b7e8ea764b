package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/carepoint/internal/guard"
	"github.com/hongminglow/carepoint/internal/http/respond"
	"github.com/hongminglow/carepoint/internal/models"
)

type staticIdentity struct {
	id      models.Identity
	present bool
}

func (s staticIdentity) Identity() (models.Identity, bool) { return s.id, s.present }

var teapot = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func TestGuard(t *testing.T) {
	patient := staticIdentity{models.Identity{Token: "t", Role: models.Patient}, true}

	cases := []struct {
		name       string
		ids        staticIdentity
		path       string
		accept     string
		wantStatus int
		wantTarget string
	}{
		{"public path", staticIdentity{}, "/health", "", http.StatusTeapot, ""},
		{"own portal", patient, "/patient-portal/appointments", "", http.StatusTeapot, ""},
		{"api without session", staticIdentity{}, "/doctor-portal/leaves", "application/json", http.StatusUnauthorized, "/login"},
		{"api wrong role", patient, "/doctor-portal/leaves", "application/json", http.StatusForbidden, "/"},
		{"browser without session", staticIdentity{}, "/admin-portal", "text/html", http.StatusSeeOther, "/login"},
		{"browser wrong role", patient, "/admin-portal/users", "text/html,application/xhtml+xml", http.StatusSeeOther, "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := Guard(guard.DefaultRoutes(), tc.ids, zerolog.Nop(), teapot)
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.Header.Set("Accept", tc.accept)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tc.wantStatus, rec.Code)
			switch tc.wantStatus {
			case http.StatusSeeOther:
				assert.Equal(t, tc.wantTarget, rec.Header().Get("Location"))
			case http.StatusUnauthorized, http.StatusForbidden:
				var env respond.Envelope
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
				assert.Equal(t, tc.wantTarget, env.Redirect)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://portal.test/"}, teapot)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://portal.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://portal.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://portal.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORS_Wildcard(t *testing.T) {
	h := CORS([]string{"*"}, teapot)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://anything.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	var seen string
	h := Logging(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/login", entry["path"])
	assert.Equal(t, float64(http.StatusCreated), entry["status"])
	assert.Equal(t, seen, entry["request_id"])
}

func TestLogging_KeepsIncomingRequestID(t *testing.T) {
	h := Logging(zerolog.Nop(), teapot)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestLogging_ReplacesUnsafeRequestID(t *testing.T) {
	for _, incoming := range []string{
		strings.Repeat("x", 200),
		`abc" injected="1`,
		"<script>",
	} {
		var seen string
		h := Logging(zerolog.Nop(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, incoming)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		echoed := rec.Header().Get(RequestIDHeader)
		assert.NotEqual(t, incoming, echoed)
		assert.Equal(t, seen, echoed)
		_, err := uuid.Parse(echoed)
		assert.NoError(t, err, incoming)
	}
}
