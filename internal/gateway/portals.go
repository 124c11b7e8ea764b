package gateway

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/hongminglow/carepoint/internal/models"
)

var portalResources = map[models.Role][]string{
	models.Patient: {Hospitals, Doctors, Appointments, Prescriptions, HealthRecords},
	models.Doctor:  {Hospitals, Appointments, Prescriptions, HealthRecords, Leaves},
	models.Admin:   {Hospitals, Doctors, Appointments, Prescriptions, Leaves, Users},
}

var dashboardResources = map[models.Role][]string{
	models.Patient: {Appointments, Prescriptions, HealthRecords},
	models.Doctor:  {Appointments, Prescriptions, Leaves},
	models.Admin:   {Hospitals, Doctors, Appointments, Leaves},
}

// PortalResources lists the collections a role's portal manages.
func PortalResources(role models.Role) []string {
	return slices.Clone(portalResources[role])
}

// DashboardResources lists the collections shown on a role's dashboard.
func DashboardResources(role models.Role) []string {
	return slices.Clone(dashboardResources[role])
}

// Manages reports whether the role's portal exposes the named collection.
func Manages(role models.Role, name string) bool {
	return slices.Contains(portalResources[role], name)
}

// Dashboard lists every dashboard collection for role concurrently. It fails
// as a whole when any list fails.
func (c *Client) Dashboard(ctx context.Context, role models.Role) (map[string][]json.RawMessage, error) {
	names := dashboardResources[role]
	var mu sync.Mutex
	out := make(map[string][]json.RawMessage, len(names))

	calls := make([]Call, 0, len(names))
	for _, name := range names {
		calls = append(calls, func(ctx context.Context) error {
			items, err := c.Resource(name).List(ctx, nil)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = items
			mu.Unlock()
			return nil
		})
	}
	if err := FetchAll(ctx, calls...); err != nil {
		return nil, err
	}
	return out, nil
}
