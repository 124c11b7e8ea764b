package cli

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hongminglow/carepoint/internal/gateway"
)

func (c *cli) resourceCommands() []*cobra.Command {
	return []*cobra.Command{
		c.listCommand(),
		c.getCommand(),
		c.createCommand(),
		c.updateCommand(),
		c.deleteCommand(),
	}
}

func (c *cli) listCommand() *cobra.Command {
	var (
		filters []string
		near    string
	)
	cmd := &cobra.Command{
		Use:     "list <resource>",
		Aliases: []string{"ls"},
		Short:   "List a collection",
		Long: `List one of: ` + strings.Join(gateway.ResourceNames, ", ") + `.

Examples:
  carectl list appointments
  carectl list hospitals --near 3.139,101.6869
  carectl list doctors --filter specialization=cardiology --json`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: gateway.ResourceNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if near != "" {
				lat, lon, err := parseNear(near)
				if err != nil {
					return err
				}
				query = gateway.NearQuery(lat, lon)
			}
			for _, f := range filters {
				k, v, ok := strings.Cut(f, "=")
				if !ok || k == "" {
					return usageErr("--filter " + f + ": expected key=value")
				}
				query.Add(k, v)
			}

			items, err := c.core.Gateway.Resource(args[0]).List(cmd.Context(), query)
			if err != nil {
				return err
			}
			return c.printer.Items(items)
		},
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "query filter, key=value (repeatable)")
	cmd.Flags().StringVar(&near, "near", "", "latitude,longitude to sort hospitals by distance")
	return c.guarded(cmd, resourceRoles)
}

func (c *cli) getCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "get <resource> <id>",
		Short:     "Show one item",
		Args:      cobra.ExactArgs(2),
		ValidArgs: gateway.ResourceNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := c.core.Gateway.Resource(args[0]).Get(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return c.printer.Item(item)
		},
	}
	return c.guarded(cmd, resourceRoles)
}

func (c *cli) createCommand() *cobra.Command {
	var body bodyFlags
	cmd := &cobra.Command{
		Use:   "create <resource>",
		Short: "Create an item",
		Long: `Create an item from a JSON body.

Examples:
  carectl create appointments --set doctor=3 --set date=2026-11-02 --set time=09:30
  carectl create hospitals --file hospital.json`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: gateway.ResourceNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == gateway.Users {
				return usageErr("users are created with 'carectl register'")
			}
			payload, err := body.build(cmd.InOrStdin())
			if err != nil {
				return err
			}
			item, err := c.core.Gateway.Resource(args[0]).Create(cmd.Context(), payload)
			if err != nil {
				return err
			}
			c.printer.Success("Created %s", singular(args[0]))
			return c.printer.Item(item)
		},
	}
	body.register(cmd)
	return c.guarded(cmd, resourceRoles)
}

func (c *cli) updateCommand() *cobra.Command {
	var body bodyFlags
	cmd := &cobra.Command{
		Use:       "update <resource> <id>",
		Short:     "Update an item",
		Args:      cobra.ExactArgs(2),
		ValidArgs: gateway.ResourceNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := body.build(cmd.InOrStdin())
			if err != nil {
				return err
			}
			var item json.RawMessage
			if args[0] == gateway.Users {
				item, err = c.core.Gateway.UpdateUserProfile(cmd.Context(), args[1], payload)
			} else {
				item, err = c.core.Gateway.Resource(args[0]).Update(cmd.Context(), args[1], payload)
			}
			if err != nil {
				return err
			}
			c.printer.Success("Updated %s %s", singular(args[0]), args[1])
			return c.printer.Item(item)
		},
	}
	body.register(cmd)
	return c.guarded(cmd, resourceRoles)
}

func (c *cli) deleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "delete <resource> <id>",
		Aliases:   []string{"rm"},
		Short:     "Delete an item",
		Args:      cobra.ExactArgs(2),
		ValidArgs: gateway.ResourceNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == gateway.Users {
				return usageErr("users cannot be deleted from carectl")
			}
			if _, err := c.core.Gateway.Resource(args[0]).Delete(cmd.Context(), args[1]); err != nil {
				return err
			}
			if c.printer.JSONMode() {
				return c.printer.JSON(map[string]string{"deleted": args[1]})
			}
			c.printer.Success("Deleted %s %s", singular(args[0]), args[1])
			return nil
		},
	}
	return c.guarded(cmd, resourceRoles)
}

func parseNear(s string) (float64, float64, error) {
	latS, lonS, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, usageErr("--near: expected latitude,longitude")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return 0, 0, usageErr("--near: invalid latitude")
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonS), 64)
	if err != nil {
		return 0, 0, usageErr("--near: invalid longitude")
	}
	return lat, lon, nil
}

func singular(resource string) string {
	switch resource {
	case gateway.Leaves:
		return "leave"
	case gateway.HealthRecords:
		return "health record"
	}
	return strings.TrimSuffix(resource, "s")
}
