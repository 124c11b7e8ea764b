package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hongminglow/carepoint/internal/gateway"
	"github.com/hongminglow/carepoint/internal/output"
)

func (c *cli) dashboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Overview of your portal",
		Long: `Fetch every collection on your role's dashboard at once. If any of them
fails, nothing is shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := c.core.Session.Identity()
			names := gateway.DashboardResources(id.Role)
			sections, err := c.core.Gateway.Dashboard(cmd.Context(), id.Role)
			if err != nil {
				return err
			}

			if c.printer.JSONMode() {
				return c.printer.JSON(sections)
			}
			c.printer.Header("Dashboard (" + id.Role.String() + ")")
			summary := output.NewTable(c.printer.Out(), []string{"SECTION", "COUNT"})
			for _, name := range names {
				summary.AddRow([]string{name, strconv.Itoa(len(sections[name]))})
			}
			if err := summary.Render(); err != nil {
				return err
			}
			for _, name := range names {
				if len(sections[name]) == 0 {
					continue
				}
				c.printer.Header(name)
				if err := c.printer.Items(sections[name]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return c.guarded(cmd, anyRole)
}
