package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hongminglow/carepoint/internal/gateway"
	"github.com/hongminglow/carepoint/internal/guard"
	"github.com/hongminglow/carepoint/internal/http/respond"
	"github.com/hongminglow/carepoint/internal/models"
)

const maxBody = 1 << 20

// PortalHandler relays each role portal's calls to the backend. Access to a
// portal is decided by the guard middleware before a request gets here.
type PortalHandler struct {
	gw     *gateway.Client
	logger zerolog.Logger
}

// NewPortalHandler constructs the handler.
func NewPortalHandler(gw *gateway.Client, logger zerolog.Logger) *PortalHandler {
	return &PortalHandler{gw: gw, logger: logger}
}

// Register attaches the routes of all three portals.
func (h *PortalHandler) Register(mux *http.ServeMux) {
	for _, role := range models.Roles {
		base := guard.LandingFor(role)
		mux.HandleFunc("GET "+base, h.index(role))
		mux.HandleFunc("GET "+base+"/dashboard", h.dashboard(role))
		mux.HandleFunc("GET "+base+"/profile", h.getProfile)
		mux.HandleFunc("PUT "+base+"/profile", h.updateProfile)
		mux.HandleFunc("GET "+base+"/{resource}", h.list(role))
		mux.HandleFunc("POST "+base+"/{resource}", h.create(role))
		mux.HandleFunc("GET "+base+"/{resource}/{id}", h.get(role))
		mux.HandleFunc("PUT "+base+"/{resource}/{id}", h.update(role))
		mux.HandleFunc("DELETE "+base+"/{resource}/{id}", h.remove(role))
	}
}

func (h *PortalHandler) index(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, "ok", map[string]any{
			"role":      role,
			"resources": gateway.PortalResources(role),
		})
	}
}

func (h *PortalHandler) dashboard(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sections, err := h.gw.Dashboard(r.Context(), role)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, "ok", sections)
	}
}

func (h *PortalHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.gw.Profile(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", profile)
}

func (h *PortalHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON(w, r)
	if !ok {
		return
	}
	profile, err := h.gw.UpdateProfile(r.Context(), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Profile updated", profile)
}

func (h *PortalHandler) list(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := h.resource(w, r, role)
		if !ok {
			return
		}
		items, err := res.List(r.Context(), r.URL.Query())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, "ok", items)
	}
}

func (h *PortalHandler) get(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := h.resource(w, r, role)
		if !ok {
			return
		}
		item, err := res.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, "ok", item)
	}
}

func (h *PortalHandler) create(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := h.resource(w, r, role)
		if !ok {
			return
		}
		if res.Name() == gateway.Users {
			respond.Error(w, http.StatusMethodNotAllowed, "users are created through registration")
			return
		}
		body, ok := readJSON(w, r)
		if !ok {
			return
		}
		item, err := res.Create(r.Context(), body)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, "created", item)
	}
}

func (h *PortalHandler) update(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := h.resource(w, r, role)
		if !ok {
			return
		}
		body, ok := readJSON(w, r)
		if !ok {
			return
		}
		var (
			item json.RawMessage
			err  error
		)
		if res.Name() == gateway.Users {
			item, err = h.gw.UpdateUserProfile(r.Context(), r.PathValue("id"), body)
		} else {
			item, err = res.Update(r.Context(), r.PathValue("id"), body)
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, "updated", item)
	}
}

func (h *PortalHandler) remove(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := h.resource(w, r, role)
		if !ok {
			return
		}
		if res.Name() == gateway.Users {
			respond.Error(w, http.StatusMethodNotAllowed, "users cannot be deleted from the portal")
			return
		}
		if _, err := res.Delete(r.Context(), r.PathValue("id")); err != nil {
			h.fail(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, "deleted", nil)
	}
}

func (h *PortalHandler) resource(w http.ResponseWriter, r *http.Request, role models.Role) (*gateway.Resource, bool) {
	name := r.PathValue("resource")
	if !gateway.Manages(role, name) {
		respond.Error(w, http.StatusNotFound, "unknown resource "+name)
		return nil, false
	}
	return h.gw.Resource(name), true
}

func (h *PortalHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Info().Err(err).Str("path", r.URL.Path).Msg("backend call failed")
	respond.GatewayError(w, err)
}

// readJSON returns the request body verbatim after checking it is a single JSON value.
func readJSON(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		respond.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	if !json.Valid(body) {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return nil, false
	}
	return json.RawMessage(body), true
}
