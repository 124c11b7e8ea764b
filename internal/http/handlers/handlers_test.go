package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/carepoint/internal/gateway"
	"github.com/hongminglow/carepoint/internal/http/respond"
	"github.com/hongminglow/carepoint/internal/models"
	"github.com/hongminglow/carepoint/internal/session"
	"github.com/hongminglow/carepoint/internal/storage/memory"
)

type backendCall struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

// backend is a scripted stand-in for the clinic API.
type backend struct {
	mu     sync.Mutex
	calls  []backendCall
	routes map[string]func(w http.ResponseWriter)
}

func newBackend() *backend {
	b := &backend{routes: map[string]func(w http.ResponseWriter){}}
	b.on("POST /api/auth/login/", `{"access":"tok-admin","refresh":"r","role":"admin"}`, http.StatusOK)
	return b
}

func (b *backend) on(route, body string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[route] = func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.calls = append(b.calls, backendCall{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("Authorization"), string(body)})
	fn, ok := b.routes[r.Method+" "+r.URL.Path]
	b.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Not found."}`)
		return
	}
	fn(w)
}

func (b *backend) last() backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[len(b.calls)-1]
}

func (b *backend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

type fixture struct {
	backend *backend
	sess    *session.Session
	mux     *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := newBackend()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	gw, err := gateway.New(srv.URL, gateway.WithTimeout(2*time.Second))
	require.NoError(t, err)
	sess := session.New(context.Background(), memory.New(), gw)

	mux := http.NewServeMux()
	NewHealthHandler(time.Now(), gw.BaseURL()).Register(mux)
	NewAuthHandler(sess, gw, zerolog.Nop()).Register(mux)
	NewPortalHandler(gw, zerolog.Nop()).Register(mux)
	return &fixture{backend: b, sess: sess, mux: mux}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, respond.Envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, path, rd))
	var env respond.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	rec, _ := f.do(t, http.MethodPost, "/login", `{"username":"root","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func dataMap(t *testing.T, env respond.Envelope) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is %T", env.Data)
	return m
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", dataMap(t, env)["status"])
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodPost, "/login", `{"username":"root","password":"pw"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, env)
	assert.Equal(t, "admin", data["role"])
	assert.Equal(t, "/admin-portal", data["landing"])

	id, ok := f.sess.Identity()
	require.True(t, ok)
	assert.Equal(t, models.Identity{Token: "tok-admin", Role: models.Admin}, id)
}

func TestLogin_RejectedKeepsBackendReason(t *testing.T) {
	f := newFixture(t)
	f.backend.on("POST /api/auth/login/", `{"error":"Invalid credentials"}`, http.StatusUnauthorized)

	rec, env := f.do(t, http.MethodPost, "/login", `{"username":"root","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", env.Message)
	assert.False(t, f.sess.IsAuthenticated())
}

func TestLogin_MissingFieldsNeverReachBackend(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodPost, "/login", `{"username":"","password":""}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, env.Message)
	assert.Zero(t, f.backend.count())
}

func TestLogin_BadJSON(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(t, http.MethodPost, "/login", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	rec, env := f.do(t, http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/login", dataMap(t, env)["landing"])
	assert.False(t, f.sess.IsAuthenticated())
}

func TestSession(t *testing.T) {
	f := newFixture(t)

	_, env := f.do(t, http.MethodGet, "/session", "")
	data := dataMap(t, env)
	assert.Equal(t, false, data["authenticated"])
	assert.Equal(t, "/login", data["landing"])

	f.login(t)
	_, env = f.do(t, http.MethodGet, "/session", "")
	data = dataMap(t, env)
	assert.Equal(t, true, data["authenticated"])
	assert.Equal(t, "admin", data["role"])
	assert.Equal(t, "/admin-portal", data["landing"])
	assert.NotContains(t, data, "claims", "opaque tokens carry no claims")
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	f.backend.on("POST /api/auth/register/", `{"id":7,"username":"carol"}`, http.StatusCreated)

	rec, env := f.do(t, http.MethodPost, "/register",
		`{"username":" carol ","email":"carol@example.com","password":"pw12345678","role":"Patient"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(7), dataMap(t, env)["id"])

	call := f.backend.last()
	assert.Empty(t, call.Auth)
	assert.Contains(t, call.Body, `"username":"carol"`)
	assert.Contains(t, call.Body, `"role":"patient"`)
}

func TestRegister_LocalValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]string{
		"missing fields": `{"username":"carol"}`,
		"bad email":      `{"username":"carol","email":"nope","password":"x","role":"patient"}`,
		"bad role":       `{"username":"carol","email":"c@example.com","password":"x","role":"nurse"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := f.do(t, http.MethodPost, "/register", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Zero(t, f.backend.count())
}

func TestRegister_BackendFieldErrors(t *testing.T) {
	f := newFixture(t)
	f.backend.on("POST /api/auth/register/", `{"username":["A user with that username already exists."]}`, http.StatusBadRequest)

	rec, env := f.do(t, http.MethodPost, "/register",
		`{"username":"carol","email":"carol@example.com","password":"pw","role":"patient"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", env.Kind)
	assert.Equal(t, []string{"A user with that username already exists."}, env.Fields["username"])
}

func TestPortal_ListPassesQueryAndToken(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.on("GET /api/hospitals/", `[{"id":1},{"id":2}]`, http.StatusOK)

	rec, env := f.do(t, http.MethodGet, "/admin-portal/hospitals?latitude=1.5&longitude=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.Data, 2)

	call := f.backend.last()
	assert.Equal(t, "Bearer tok-admin", call.Auth)
	assert.Equal(t, "latitude=1.5&longitude=2", call.Query)
}

func TestPortal_UnmanagedResource(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(t, http.MethodGet, "/patient-portal/leaves", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, f.backend.count())
}

func TestPortal_CRUD(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.on("POST /api/appointments/create/", `{"id":9,"status":"pending"}`, http.StatusCreated)
	f.backend.on("GET /api/appointments/9/", `{"id":9}`, http.StatusOK)
	f.backend.on("PUT /api/appointments/9/", `{"id":9,"status":"confirmed"}`, http.StatusOK)
	f.backend.on("DELETE /api/appointments/9/", ``, http.StatusNoContent)

	rec, env := f.do(t, http.MethodPost, "/admin-portal/appointments", `{"doctor":3,"date":"2026-11-02"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `{"doctor":3,"date":"2026-11-02"}`, f.backend.last().Body)
	assert.Equal(t, "pending", dataMap(t, env)["status"])

	rec, _ = f.do(t, http.MethodGet, "/admin-portal/appointments/9", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = f.do(t, http.MethodPut, "/admin-portal/appointments/9", `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", dataMap(t, env)["status"])

	rec, _ = f.do(t, http.MethodDelete, "/admin-portal/appointments/9", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.MethodDelete, f.backend.last().Method)
}

func TestPortal_RejectsInvalidBody(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(t, http.MethodPost, "/admin-portal/hospitals", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.backend.count())
}

func TestPortal_Users(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.on("PUT /api/users/4/update_profile/", `{"id":4,"phone":"555"}`, http.StatusOK)

	rec, _ := f.do(t, http.MethodPut, "/admin-portal/users/4", `{"phone":"555"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/users/4/update_profile/", f.backend.last().Path)

	rec, _ = f.do(t, http.MethodPost, "/admin-portal/users", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	rec, _ = f.do(t, http.MethodDelete, "/admin-portal/users/4", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPortal_Profile(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.on("GET /api/auth/profile/", `{"username":"root"}`, http.StatusOK)
	f.backend.on("PUT /api/auth/profile/", `{"username":"root","address":"Main St"}`, http.StatusOK)

	rec, env := f.do(t, http.MethodGet, "/admin-portal/profile", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "root", dataMap(t, env)["username"])

	rec, env = f.do(t, http.MethodPut, "/admin-portal/profile", `{"address":"Main St"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Main St", dataMap(t, env)["address"])
}

func TestPortal_Dashboard(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.on("GET /api/hospitals/", `[{"id":1}]`, http.StatusOK)
	f.backend.on("GET /api/doctors/", `[]`, http.StatusOK)
	f.backend.on("GET /api/appointments/", `[{"id":1},{"id":2}]`, http.StatusOK)
	f.backend.on("GET /api/leaves/", `[]`, http.StatusOK)

	rec, env := f.do(t, http.MethodGet, "/admin-portal/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, env)
	assert.Len(t, data, 4)
	assert.Len(t, data["appointments"], 2)
}

func TestPortal_DashboardFailsWhole(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.on("GET /api/hospitals/", `[]`, http.StatusOK)
	f.backend.on("GET /api/doctors/", `[]`, http.StatusOK)
	f.backend.on("GET /api/appointments/", `{"detail":"boom"}`, http.StatusInternalServerError)
	f.backend.on("GET /api/leaves/", `[]`, http.StatusOK)

	rec, env := f.do(t, http.MethodGet, "/admin-portal/dashboard", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "server error", env.Kind)
}

func TestPortal_RejectedTokenLogsOut(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.on("GET /api/doctors/", `{"detail":"Given token not valid for any token type"}`, http.StatusUnauthorized)

	rec, env := f.do(t, http.MethodGet, "/admin-portal/doctors", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/login", env.Redirect)
	assert.False(t, f.sess.IsAuthenticated())
}
