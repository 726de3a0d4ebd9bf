package webtui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/gorilla/websocket"
)

const (
	defaultCols = 120
	defaultRows = 40
)

type wsMsg struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// session is one child process attached to a terminal.
type session struct {
	tty     io.ReadWriteCloser
	resize  func(cols, rows int) error
	cleanup func()
}

type sessionStarter func() (*session, error)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin allows requests without an Origin header (non-browser clients)
// and browser requests from the page this server rendered.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, strings.TrimSpace(r.Host))
}

// parseControl decodes a resize frame. Keystrokes are sent as plain text or
// binary frames; only text frames starting with '{' are control messages.
func parseControl(mt int, data []byte) (cols, rows int, isControl bool) {
	if mt != websocket.TextMessage || len(data) == 0 || data[0] != '{' {
		return 0, 0, false
	}
	var m wsMsg
	if err := json.Unmarshal(data, &m); err != nil {
		return 0, 0, true
	}
	if strings.EqualFold(strings.TrimSpace(m.Type), "resize") && m.Cols > 0 && m.Rows > 0 {
		return m.Cols, m.Rows, true
	}
	return 0, 0, true
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.cfg.Logger.Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess, err := s.start()
	if err != nil {
		s.cfg.Logger.Error("start terminal session", "err", err)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("failed to start session: "+err.Error()))
		return
	}
	defer sess.cleanup()
	s.cfg.Logger.Info("terminal session started", "remote", r.RemoteAddr)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- pumpTTYToWS(ctx, sess.tty, conn)
	}()
	go func() {
		defer wg.Done()
		errCh <- pumpWSToTTY(ctx, conn, sess)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			s.cfg.Logger.Warn("terminal session ended", "err", err)
		}
	}
	cancel()
	// Unblock both pumps.
	sess.cleanup()
	_ = conn.Close()
	wg.Wait()
	s.cfg.Logger.Info("terminal session closed", "remote", r.RemoteAddr)
}

func (s *Server) childArgs() []string {
	var args []string
	if p := strings.TrimSpace(s.cfg.ConfigPath); p != "" {
		args = append(args, "--config", p)
	}
	if u := strings.TrimSpace(s.cfg.APIURL); u != "" {
		args = append(args, "--api", u)
	}
	// No subcommand runs the TUI.
	return args
}

func (s *Server) startPTYSession() (*session, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(exe, s.childArgs()...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: defaultCols, Rows: defaultRows})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return &session{
		tty: ptmx,
		resize: func(cols, rows int) error {
			return pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
		},
		cleanup: func() {
			once.Do(func() {
				_ = ptmx.Close()
				_ = cmd.Process.Kill()
				_, _ = cmd.Process.Wait()
			})
		},
	}, nil
}

func pumpTTYToWS(ctx context.Context, tty io.Reader, conn *websocket.Conn) error {
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := tty.Read(buf)
		if n > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func pumpWSToTTY(ctx context.Context, conn *websocket.Conn, sess *session) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if cols, rows, ok := parseControl(mt, data); ok {
			if cols > 0 && sess.resize != nil {
				_ = sess.resize(cols, rows)
			}
			continue
		}
		if len(data) == 0 {
			continue
		}
		if _, err := sess.tty.Write(data); err != nil {
			return err
		}
	}
}
