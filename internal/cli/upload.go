package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pagecal/internal/editor"
)

func newUploadCmd(app *App) *cobra.Command {
	var pageID int64

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image (optionally appending it to a page's content)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer a.Close()
			ctx := a.Context(cmd.Context())

			// Check the page first so a refused edit does not leave an orphan upload.
			var ed *editor.Controller
			if pageID != 0 {
				p, err := loadForEdit(ctx, a, pageID)
				if err != nil {
					return writeErr(cmd, err)
				}
				ed = a.NewEditor(&headlessView{})
				ed.OpenExisting(p)
				if !ed.Policy().Content.Editable {
					return writeErr(cmd, errPermission(a.Session.Role, "edit the content of", pageID))
				}
			}

			f, err := os.Open(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			defer f.Close()
			up, err := a.Gateway.Upload(ctx, filepath.Base(args[0]), f)
			if err != nil {
				return writeErr(cmd, userErr(err))
			}
			out := map[string]any{"url": up.URL, "resolvedUrl": a.Gateway.ResolveURL(up.URL)}

			if ed != nil {
				if err := ed.InsertImage(up.URL); err != nil {
					return writeErr(cmd, err)
				}
				saved, err := savePage(ctx, a, ed)
				if err != nil {
					return writeErr(cmd, err)
				}
				out["page"] = saved.Page
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}

	cmd.Flags().Int64Var(&pageID, "page", 0, "Append the image to this page's content and save it")
	return cmd
}
