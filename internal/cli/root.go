// Package cli implements carectl, the terminal client for the clinic portals.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hongminglow/carepoint/internal/app"
	"github.com/hongminglow/carepoint/internal/config"
	"github.com/hongminglow/carepoint/internal/gateway"
	"github.com/hongminglow/carepoint/internal/guard"
	"github.com/hongminglow/carepoint/internal/logging"
	"github.com/hongminglow/carepoint/internal/models"
	"github.com/hongminglow/carepoint/internal/output"
)

var version = "dev"

// SetVersion sets the version string reported by `carectl version`.
func SetVersion(v string) {
	version = v
}

// Env is the process environment a command runs against.
type Env struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// guardFunc returns the roles allowed to run a command with args. A nil slice
// admits any logged-in role.
type guardFunc func(args []string) ([]models.Role, error)

type cli struct {
	env Env

	jsonOut   bool
	colorMode string
	verbose   bool
	apiURL    string
	profile   string

	core    *app.Core
	printer *output.Printer
	logger  zerolog.Logger
	guards  map[*cobra.Command]guardFunc
}

// Execute runs carectl with args and returns the process exit code.
func Execute(ctx context.Context, env Env, args []string) int {
	c := &cli{env: env, logger: zerolog.Nop(), guards: map[*cobra.Command]guardFunc{}}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetIn(env.In)
	root.SetOut(env.Out)
	root.SetErr(env.Err)

	err := root.ExecuteContext(ctx)
	if c.core != nil {
		c.core.Close()
	}
	if err == nil {
		return output.ExitSuccess
	}

	p := c.printer
	if p == nil {
		p = output.NewPrinter(env.Out, env.Err, false, false)
	}
	cliErr := output.FromError(err)
	p.FormatError(cliErr)
	return cliErr.ExitCode
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "carectl",
		Short: "Terminal client for the clinic patient, doctor and admin portals",
		Long: `carectl signs in to the clinic backend and works with the records your role's
portal exposes. The session is kept between invocations in the configured
credential store.

Example usage:
  carectl login -u alice --password-stdin   # Sign in, reading the password from stdin
  carectl whoami                            # Show the current role and token claims
  carectl list appointments                 # List appointments
  carectl create leaves --set start=2026-11-02 --set end=2026-11-04
  carectl dashboard                         # Overview for your portal
  carectl logout`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}
			return c.guard(cmd, args)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.BoolVar(&c.jsonOut, "json", false, "print results as JSON")
	flags.StringVar(&c.colorMode, "color", "auto", "color output: auto, always, never")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log backend calls to stderr")
	flags.StringVar(&c.apiURL, "api-url", "", "backend base URL (overrides API_BASE_URL)")
	flags.StringVar(&c.profile, "profile", "", "credential profile (overrides CREDENTIAL_PROFILE)")

	root.AddCommand(
		c.versionCommand(),
		c.loginCommand(),
		c.logoutCommand(),
		c.whoamiCommand(),
		c.registerCommand(),
		c.profileCommand(),
		c.dashboardCommand(),
	)
	root.AddCommand(c.resourceCommands()...)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	mode, err := output.ParseColorMode(c.colorMode)
	if err != nil {
		return &output.CLIError{Summary: err.Error(), ExitCode: output.ExitUsageError}
	}
	c.printer = output.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ResolveColors(mode), c.jsonOut)
	if cmd.Annotations["offline"] == "true" {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return &output.CLIError{Summary: "invalid configuration", Detail: err.Error(), ExitCode: output.ExitConfig, Err: err}
	}
	if c.apiURL != "" {
		cfg.APIBaseURL = strings.TrimRight(c.apiURL, "/")
	}
	if c.profile != "" {
		cfg.CredentialProfile = c.profile
	}

	level := "warn"
	if _, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = cfg.LogLevel
	}
	if c.verbose {
		level = "debug"
	}
	c.logger = logging.New(cmd.ErrOrStderr(), level, "console")

	core, err := app.New(cmd.Context(), cfg, c.logger)
	if err != nil {
		return &output.CLIError{Summary: "could not start", Detail: err.Error(), ExitCode: output.ExitConfig, Err: err}
	}
	c.core = core
	return nil
}

// guard runs the route guard for commands that navigate into a portal.
func (c *cli) guard(cmd *cobra.Command, args []string) error {
	fn, ok := c.guards[cmd]
	if !ok {
		return nil
	}
	roles, err := fn(args)
	if err != nil {
		return err
	}

	id, present := c.core.Session.Identity()
	decision := guard.Evaluate(id, present, roles)
	if decision.Allowed {
		return nil
	}
	c.logger.Debug().Str("command", cmd.CommandPath()).Str("redirect", decision.Redirect).Msg("navigation denied")
	if decision.Redirect == guard.LoginPath {
		return &output.CLIError{
			Summary:    "not logged in",
			Suggestion: "run 'carectl login'",
			ExitCode:   output.ExitAuth,
		}
	}
	return &output.CLIError{
		Summary:  fmt.Sprintf("'%s' is not available in the %s portal", strings.Join(append([]string{cmd.Name()}, args...), " "), id.Role),
		ExitCode: output.ExitAuth,
	}
}

func (c *cli) guarded(cmd *cobra.Command, fn guardFunc) *cobra.Command {
	c.guards[cmd] = fn
	return cmd
}

func anyRole([]string) ([]models.Role, error) {
	return nil, nil
}

// resourceRoles admits the roles whose portal manages the resource named by args[0].
func resourceRoles(args []string) ([]models.Role, error) {
	name := args[0]
	if !gateway.KnownResource(name) {
		return nil, &output.CLIError{
			Summary:    fmt.Sprintf("unknown resource %q", name),
			Suggestion: "one of: " + strings.Join(gateway.ResourceNames, ", "),
			ExitCode:   output.ExitUsageError,
		}
	}
	var roles []models.Role
	for _, role := range models.Roles {
		if gateway.Manages(role, name) {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func (c *cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the carectl version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"offline": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.printer.JSONMode() {
				return c.printer.JSON(map[string]string{"version": version})
			}
			c.printer.Info("carectl %s", version)
			return nil
		},
	}
}
