package cli

import (
	"github.com/spf13/cobra"
)

func (c *cli) profileCommand() *cobra.Command {
	get := func(cmd *cobra.Command, args []string) error {
		profile, err := c.core.Gateway.Profile(cmd.Context())
		if err != nil {
			return err
		}
		return c.printer.Item(profile)
	}

	cmd := c.guarded(&cobra.Command{
		Use:   "profile",
		Short: "Show or update your own profile",
		Args:  cobra.NoArgs,
		RunE:  get,
	}, anyRole)

	cmd.AddCommand(c.guarded(&cobra.Command{
		Use:   "get",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE:  get,
	}, anyRole))

	var body bodyFlags
	update := &cobra.Command{
		Use:   "update",
		Short: "Update your profile",
		Long: `Update fields of your profile.

Example:
  carectl profile update --set phone=555-0101 --set address="12 Main St"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := body.build(cmd.InOrStdin())
			if err != nil {
				return err
			}
			profile, err := c.core.Gateway.UpdateProfile(cmd.Context(), payload)
			if err != nil {
				return err
			}
			c.printer.Success("Profile updated")
			return c.printer.Item(profile)
		},
	}
	body.register(update)
	cmd.AddCommand(c.guarded(update, anyRole))
	return cmd
}
