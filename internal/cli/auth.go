package cli

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hongminglow/carepoint/internal/guard"
	"github.com/hongminglow/carepoint/internal/models"
	"github.com/hongminglow/carepoint/internal/models/dto"
	"github.com/hongminglow/carepoint/internal/output"
	"github.com/hongminglow/carepoint/internal/session"
)

func (c *cli) loginCommand() *cobra.Command {
	var (
		username      string
		password      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Long: `Sign in with a username and password. On success the access token and role
are saved to the credential store and later commands use them.

Examples:
  carectl login -u alice -p secret
  echo secret | carectl login -u alice --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				var err error
				if password, err = readSecret(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			landing, err := c.core.Session.Login(cmd.Context(), username, password)
			if err != nil {
				var loginErr *session.LoginError
				if errors.As(err, &loginErr) {
					return &output.CLIError{Summary: loginErr.Reason, ExitCode: output.ExitAuth, Err: err}
				}
				return err
			}

			id, _ := c.core.Session.Identity()
			if c.printer.JSONMode() {
				return c.printer.JSON(map[string]string{"role": id.Role.String(), "landing": landing})
			}
			c.printer.Success("Logged in as %s", c.printer.RoleBadge(id.Role.String()))
			c.printer.Info("Portal: %s", landing)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	return cmd
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			landing := c.core.Session.Logout(cmd.Context())
			if c.printer.JSONMode() {
				return c.printer.JSON(map[string]string{"landing": landing})
			}
			c.printer.Success("Logged out")
			return nil
		},
	}
}

type whoami struct {
	Role      models.Role `json:"role"`
	Landing   string      `json:"landing"`
	Subject   string      `json:"subject,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	ExpiresAt time.Time   `json:"expires_at,omitzero"`
}

func (c *cli) whoamiCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in role and token details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := c.core.Session.Identity()
			view := whoami{Role: id.Role, Landing: guard.LandingFor(id.Role)}
			if claims, ok := c.core.Session.Claims(); ok {
				view.Subject = claims.Subject
				view.UserID = claims.UserID
				view.ExpiresAt = claims.ExpiresAt
			}
			if c.printer.JSONMode() {
				return c.printer.JSON(view)
			}

			table := output.NewTable(c.printer.Out(), []string{"FIELD", "VALUE"})
			table.AddRow([]string{"role", c.printer.RoleBadge(view.Role.String())})
			table.AddRow([]string{"portal", view.Landing})
			if view.UserID != "" {
				table.AddRow([]string{"user id", view.UserID})
			}
			if view.Subject != "" {
				table.AddRow([]string{"subject", view.Subject})
			}
			if !view.ExpiresAt.IsZero() {
				table.AddRow([]string{"expires", view.ExpiresAt.Local().Format(time.RFC1123)})
			}
			return table.Render()
		},
	}
	return c.guarded(cmd, anyRole)
}

func (c *cli) registerCommand() *cobra.Command {
	var (
		req           dto.RegisterRequest
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Long: `Create an account on the backend. Registration does not sign in.

Example:
  carectl register --username carol --email carol@example.com --role patient --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				var err error
				if req.Password, err = readSecret(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			role, ok := models.ParseRole(req.Role)
			if !ok {
				return &output.CLIError{Summary: "role must be one of patient, doctor, admin", ExitCode: output.ExitUsageError}
			}
			req.Role = role.String()
			if req.Password == "" {
				return &output.CLIError{Summary: "a password is required", Suggestion: "pass --password or --password-stdin", ExitCode: output.ExitUsageError}
			}

			created, err := c.core.Gateway.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			c.printer.Success("Registered %s", req.Username)
			return c.printer.Item(created)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Username, "username", "", "username")
	f.StringVar(&req.Email, "email", "", "email address")
	f.StringVar(&req.Password, "password", "", "password")
	f.BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	f.StringVar(&req.Role, "role", "patient", "patient, doctor or admin")
	f.StringVar(&req.Phone, "phone", "", "phone number")
	f.StringVar(&req.Address, "address", "", "postal address")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	return cmd
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
