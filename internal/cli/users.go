package cli

import (
	"github.com/spf13/cobra"

	"pagecal/internal/model"
)

func newUsersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "User directory commands",
	}
	cmd.AddCommand(newUsersListCmd(app))
	cmd.AddCommand(newUsersAssignableCmd(app))
	return cmd
}

func newUsersListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users the API returns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer a.Close()

			users, err := a.Gateway.Users(a.Context(cmd.Context()))
			if err != nil {
				return writeErr(cmd, userErr(err))
			}
			if users == nil {
				users = []model.User{}
			}
			return writeOut(cmd, app, map[string]any{"data": users})
		},
	}
}

func newUsersAssignableCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assignable",
		Short: "List users you may assign pages to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer a.Close()

			d, err := a.LoadDirectory(cmd.Context())
			if err != nil {
				return writeErr(cmd, userErr(err))
			}
			users := d.Assignable()
			if users == nil {
				users = []model.User{}
			}
			return writeOut(cmd, app, map[string]any{"data": users})
		},
	}
}
