package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"pagecal/internal/perm"
	"pagecal/internal/statusutil"
)

func newPolicyCmd(app *App) *cobra.Command {
	var role string
	var isNew, owned bool

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the editor field policy for a role",
		Example: strings.TrimSpace(`
  pagecal policy --role member --owned
  pagecal policy --role manager --new
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(role) == "" {
				cfg, _, err := loadConfig(app)
				if err != nil {
					return writeErr(cmd, err)
				}
				role = cfg.Session.Role
			}
			r, known := statusutil.NormalizeRole(role)
			p := perm.ComputePolicy(r, isNew, owned)
			editable := make([]string, 0, len(perm.Fields))
			for _, f := range p.EditableFields() {
				editable = append(editable, string(f))
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"role":      r,
				"knownRole": known,
				"new":       isNew,
				"owned":     owned,
				"policy":    p,
				"editable":  editable,
			}})
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Role (admin|manager|member); default: the configured session role")
	cmd.Flags().BoolVar(&isNew, "new", false, "Policy for a page that does not exist yet")
	cmd.Flags().BoolVar(&owned, "owned", false, "The page is assigned to the viewer")
	return cmd
}
