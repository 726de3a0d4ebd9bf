package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"pagecal/internal/fakeapi"
	"pagecal/internal/logging"
)

func newDevServerCmd(app *App) *cobra.Command {
	var listen string
	var noSeed bool
	var level string

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run the in-memory reference API (seeded demo team) for local use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api := fakeapi.New()
			if !noSeed {
				fakeapi.Seed(api, time.Now())
			}

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return writeErr(cmd, err)
			}
			srv := &http.Server{Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}

			tokens := map[string]string{}
			if !noSeed {
				tokens = map[string]string{
					"admin (user 1)":                fakeapi.TokenAdmin,
					"manager team 10 (user 2)":      fakeapi.TokenManager,
					"member team 10 (user 7)":       fakeapi.TokenMember,
					"member team 20 (user 8)":       fakeapi.TokenOtherMember,
					"manager without team (user 9)": fakeapi.TokenTeamlessLead,
				}
			}
			if err := writeOut(cmd, app, map[string]any{"data": map[string]any{
				"url":    "http://" + ln.Addr().String(),
				"tokens": tokens,
			}}); err != nil {
				_ = ln.Close()
				return err
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logging.ParseLevel(level)}))
			logger.Info("devserver listening", "addr", ln.Addr().String(), "seeded", !noSeed)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()
			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				logger.Info("devserver shutting down")
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return writeErr(cmd, err)
			}
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8000", "Listen address")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Start with no users or pages")
	cmd.Flags().StringVar(&level, "log-level", "info", "Log level for stderr (debug|info|warn|error)")
	return cmd
}
