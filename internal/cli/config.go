package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pagecal/internal/config"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit config.yaml",
	}
	cmd.AddCommand(newConfigPathCmd(app))
	cmd.AddCommand(newConfigShowCmd(app))
	cmd.AddCommand(newConfigSetCmd(app))
	return cmd
}

func newConfigPathCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := configPath(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": p})
		},
	}
}

func newConfigShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config (file, env and flags; the token is never printed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": cfg,
				"path": path,
				"auth": cfg.API.Token != "",
			})
		},
	}
}

// configSetters maps dotted keys onto config fields.
var configSetters = map[string]func(c *config.Config, v string) error{
	"api.base_url": func(c *config.Config, v string) error { c.API.BaseURL = v; return nil },
	"api.token":    func(c *config.Config, v string) error { c.API.Token = v; return nil },
	"session.user_id": func(c *config.Config, v string) error {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("session.user_id: %w", err)
		}
		c.Session.UserID = id
		return nil
	},
	"session.role": func(c *config.Config, v string) error { c.Session.Role = v; return nil },
	"session.team_id": func(c *config.Config, v string) error {
		if v == "" || v == "none" {
			c.Session.TeamID = nil
			return nil
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("session.team_id: %w", err)
		}
		c.Session.TeamID = &id
		return nil
	},
	"tui.week_start": func(c *config.Config, v string) error { c.TUI.WeekStart = v; return nil },
	"tui.state_db":   func(c *config.Config, v string) error { c.TUI.StateDB = v; return nil },
	"log.file":       func(c *config.Config, v string) error { c.Log.File = v; return nil },
	"log.level":      func(c *config.Config, v string) error { c.Log.Level = v; return nil },
	"metrics.listen": func(c *config.Config, v string) error { c.Metrics.Listen = v; return nil },
}

func configKeys() []string {
	keys := make([]string, 0, len(configSetters))
	for k := range configSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newConfigSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one config value",
		Long:  "Keys: " + strings.Join(configKeys(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, ok := configSetters[strings.ToLower(strings.TrimSpace(args[0]))]
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown config key %q (valid: %s)", args[0], strings.Join(configKeys(), ", ")))
			}
			path, err := configPath(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			// Edit the file as stored; env overrides must not leak into it.
			cfg, err := config.Load(path)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := set(cfg, strings.TrimSpace(args[1])); err != nil {
				return writeErr(cmd, err)
			}
			if err := config.Save(path, cfg); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": cfg, "path": path})
		},
	}
}
