package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pagecal/internal/logging"
	"pagecal/internal/webtui"
)

func newWebTUICmd(app *App) *cobra.Command {
	var addr string
	var level string

	cmd := &cobra.Command{
		Use:   "webtui",
		Short: "Serve the calendar TUI in a browser (PTY + WebSocket)",
		Long: strings.TrimSpace(`
Serve the calendar TUI over the web through a server-side PTY and a browser
terminal emulator. Each browser tab starts its own TUI process with this
command's --config and --api.

There is no authentication of its own; bind to localhost.
`),
		Example: strings.TrimSpace(`
pagecal webtui --addr 127.0.0.1:3334
pagecal --api http://localhost:8000 webtui
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Fail here rather than in every browser tab.
			cfg, path, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if _, err := cfg.BuildSession(); err != nil {
				return writeErr(cmd, err)
			}
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logging.ParseLevel(level)}))
			srv, err := webtui.NewServer(webtui.ServerConfig{
				Addr:       strings.TrimSpace(addr),
				ConfigPath: path,
				APIURL:     strings.TrimSpace(app.APIURL),
				Logger:     logger,
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", srv.Addr())
			if err != nil {
				return writeErr(cmd, err)
			}
			url := "http://" + ln.Addr().String()
			if err := writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"url":       url,
					"config":    path,
					"api":       cfg.API.BaseURL,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				"_hints": []string{"open " + url},
			}); err != nil {
				_ = ln.Close()
				return err
			}

			hs := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}
			errCh := make(chan error, 1)
			go func() { errCh <- hs.Serve(ln) }()
			logger.Info("webtui listening", "url", url)
			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return hs.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return writeErr(cmd, err)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3334", "Bind address (host:port or :port)")
	cmd.Flags().StringVar(&level, "log-level", "info", "Log level for stderr (debug|info|warn|error)")
	return cmd
}
