package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Backend resource collections.
const (
	Hospitals     = "hospitals"
	Doctors       = "doctors"
	Appointments  = "appointments"
	Prescriptions = "prescriptions"
	HealthRecords = "health-records"
	Leaves        = "leaves"
	Users         = "users"
)

// ResourceNames lists every collection the gateway knows, in display order.
var ResourceNames = []string{Hospitals, Doctors, Appointments, Prescriptions, HealthRecords, Leaves, Users}

// KnownResource reports whether name is a backend collection.
func KnownResource(name string) bool {
	for _, n := range ResourceNames {
		if n == name {
			return true
		}
	}
	return false
}

// Resource exposes list/create/detail/update/delete for one collection.
// Users is read-only apart from UpdateUserProfile.
type Resource struct {
	client *Client
	name   string
}

// Resource returns the accessor for a named collection.
func (c *Client) Resource(name string) *Resource {
	return &Resource{client: c, name: name}
}

func (c *Client) Hospitals() *Resource     { return c.Resource(Hospitals) }
func (c *Client) Doctors() *Resource       { return c.Resource(Doctors) }
func (c *Client) Appointments() *Resource  { return c.Resource(Appointments) }
func (c *Client) Prescriptions() *Resource { return c.Resource(Prescriptions) }
func (c *Client) HealthRecords() *Resource { return c.Resource(HealthRecords) }
func (c *Client) Leaves() *Resource        { return c.Resource(Leaves) }
func (c *Client) Users() *Resource         { return c.Resource(Users) }

// Name returns the collection name.
func (r *Resource) Name() string {
	return r.name
}

// List fetches the collection. The backend must answer with a JSON array.
func (r *Resource) List(ctx context.Context, query url.Values) ([]json.RawMessage, error) {
	path := "/api/" + r.name + "/"
	raw, err := r.client.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Auth: true})
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		if string(raw) == "null" {
			return []json.RawMessage{}, nil
		}
		return nil, &Error{
			Kind:   MalformedResponse,
			Status: http.StatusOK,
			Method: http.MethodGet,
			Path:   path,
			Err:    fmt.Errorf("expected a JSON array of %s", r.name),
		}
	}
	return items, nil
}

// Get fetches one item.
func (r *Resource) Get(ctx context.Context, id string) (json.RawMessage, error) {
	path, err := r.itemPath(id, "")
	if err != nil {
		return nil, err
	}
	return r.client.Do(ctx, Request{Method: http.MethodGet, Path: path, Auth: true})
}

// Create posts a new item to the collection's create endpoint.
func (r *Resource) Create(ctx context.Context, body any) (json.RawMessage, error) {
	return r.client.Do(ctx, Request{Method: http.MethodPost, Path: "/api/" + r.name + "/create/", Body: body, Auth: true})
}

// Update replaces an item.
func (r *Resource) Update(ctx context.Context, id string, body any) (json.RawMessage, error) {
	path, err := r.itemPath(id, "")
	if err != nil {
		return nil, err
	}
	return r.client.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body, Auth: true})
}

// Delete removes an item.
func (r *Resource) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	path, err := r.itemPath(id, "")
	if err != nil {
		return nil, err
	}
	return r.client.Do(ctx, Request{Method: http.MethodDelete, Path: path, Auth: true})
}

func (r *Resource) itemPath(id, suffix string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/?#") {
		return "", &Error{
			Kind:   Validation,
			Detail: fmt.Sprintf("invalid %s id %q", r.name, id),
			Fields: map[string][]string{"id": {"must be a single path segment"}},
		}
	}
	return "/api/" + r.name + "/" + url.PathEscape(id) + "/" + suffix, nil
}

// NearQuery builds the optional location filter accepted by the hospital list.
func NearQuery(latitude, longitude float64) url.Values {
	return url.Values{
		"latitude":  {strconv.FormatFloat(latitude, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(longitude, 'f', -1, 64)},
	}
}

// UpdateUserProfile updates another user's profile (admin).
func (c *Client) UpdateUserProfile(ctx context.Context, id string, body any) (json.RawMessage, error) {
	path, err := c.Users().itemPath(id, "update_profile/")
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body, Auth: true})
}

// IsKind reports whether err is a gateway error of kind k.
func IsKind(err error, k Kind) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Kind == k
}
