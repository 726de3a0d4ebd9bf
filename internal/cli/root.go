package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	core "pagecal/internal/app"
	"pagecal/internal/config"
	"pagecal/internal/format"
	"pagecal/internal/tui"
)

type App struct {
	ConfigPath string
	APIURL     string
	PrettyJSON bool
	Format     string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "pagecal",
		Short:        "Team task calendar: TUI + scriptable CLI",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive week calendar
  pagecal

  # Scriptable commands
  pagecal pages list --from 2025-06-02 --to 2025-06-08
  pagecal pages set-status 12 done

  # Direct page lookup (shortcut for: pagecal pages show <id>)
  pagecal 12

  # Run the reference API locally
  pagecal devserver --listen 127.0.0.1:8000
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("PAGECAL_CONFIG", ""), "Path to config.yaml (default: ~/.pagecal/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.APIURL, "api", "", "API base URL (overrides config and PAGECAL_API_URL)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("PAGECAL_FORMAT", "json"), "Output format ("+strings.Join(format.Formats, "|")+")")

	cmd.AddCommand(newPagesCmd(app))
	cmd.AddCommand(newUsersCmd(app))
	cmd.AddCommand(newMetricsCmd(app))
	cmd.AddCommand(newUploadCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newPolicyCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDevServerCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newWebTUICmd(app))

	return cmd
}

func runTUI(cmd *cobra.Command, app *App) error {
	a, err := loadApp(cmd, app, true)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer a.Close()
	return tui.Run(cmd.Context(), a)
}

func configPath(app *App) (string, error) {
	if p := strings.TrimSpace(app.ConfigPath); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}

// loadConfig resolves config.yaml, then env, then flags.
func loadConfig(app *App) (*config.Config, string, error) {
	path, err := configPath(app)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, path, err
	}
	if v := strings.TrimSpace(app.APIURL); v != "" {
		cfg.API.BaseURL = v
	}
	return cfg, path, nil
}

func loadApp(cmd *cobra.Command, app *App, withState bool) (*core.App, error) {
	cfg, path, err := loadConfig(app)
	if err != nil {
		return nil, err
	}
	a, err := core.New(cmd.Context(), core.Options{Config: cfg, ConfigPath: path, WithState: withState})
	if err != nil {
		if errors.Is(err, config.ErrNoSession) {
			return nil, fmt.Errorf("%w; run `pagecal config set session.user_id <id>`", err)
		}
		return nil, err
	}
	return a, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
