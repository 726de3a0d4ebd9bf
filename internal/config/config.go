// Package config loads and saves ~/.pagecal/config.yaml and resolves the
// session the client runs as.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pagecal/internal/model"
	"pagecal/internal/statusutil"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	fileName       = "config.yaml"
)

type APIConfig struct {
	BaseURL string `yaml:"base_url" json:"baseUrl"`
	// Token is sent as a bearer token. Prefer PAGECAL_TOKEN over storing it here.
	Token string `yaml:"token,omitempty" json:"-"`
}

// SessionConfig identifies the signed-in viewer. It drives UI gating only;
// the server enforces its own rules.
type SessionConfig struct {
	UserID int64  `yaml:"user_id" json:"userId"`
	Role   string `yaml:"role" json:"role"`
	TeamID *int64 `yaml:"team_id,omitempty" json:"teamId,omitempty"`
}

type TUIConfig struct {
	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"weekStart"`
	// StateDB is the sqlite file for UI state. Empty means <config dir>/state.sqlite.
	StateDB string `yaml:"state_db,omitempty" json:"stateDb,omitempty"`
}

type LogConfig struct {
	// File is the log destination. Empty means <config dir>/pagecal.log; "-" disables logging.
	File  string `yaml:"file,omitempty" json:"file,omitempty"`
	Level string `yaml:"level" json:"level"`
}

type MetricsConfig struct {
	// Listen enables the /metrics listener when set, e.g. "127.0.0.1:9464".
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`
}

type Config struct {
	API     APIConfig     `yaml:"api" json:"api"`
	Session SessionConfig `yaml:"session" json:"session"`
	TUI     TUIConfig     `yaml:"tui" json:"tui"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

func Default() *Config {
	return &Config{
		API: APIConfig{BaseURL: DefaultBaseURL},
		TUI: TUIConfig{WeekStart: "monday"},
		Log: LogConfig{Level: "info"},
	}
}

// Normalize fills zero values with defaults so older files keep working.
func (c *Config) Normalize() {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.Session.Role = strings.TrimSpace(c.Session.Role)
	switch strings.ToLower(strings.TrimSpace(c.TUI.WeekStart)) {
	case "sunday":
		c.TUI.WeekStart = "sunday"
	default:
		c.TUI.WeekStart = "monday"
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) WeekStartDay() time.Weekday {
	if c.TUI.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Dir is PAGECAL_CONFIG_DIR when set, else ~/.pagecal.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("PAGECAL_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pagecal"), nil
}

func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// StatePath resolves the UI state database next to the config file.
func (c *Config) StatePath(configPath string) string {
	if p := strings.TrimSpace(c.TUI.StateDB); p != "" {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), "state.sqlite")
}

// LogPath resolves the log file; an empty result disables logging.
func (c *Config) LogPath(configPath string) string {
	switch p := strings.TrimSpace(c.Log.File); p {
	case "-":
		return ""
	case "":
		return filepath.Join(filepath.Dir(configPath), "pagecal.log")
	default:
		return p
	}
}

// Load reads path. On first run the file does not exist: a default config is
// written with 0600 perms and returned.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg atomically with 0600 perms.
func Save(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicWriteFile(dir, ".config.yaml.*.tmp", path, b, 0o600)
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ApplyEnv overrides file values with PAGECAL_* variables. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("PAGECAL_API_URL")); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(getenv("PAGECAL_TOKEN")); v != "" {
		c.API.Token = v
	}
	if v := strings.TrimSpace(getenv("PAGECAL_USER_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PAGECAL_USER_ID: %w", err)
		}
		c.Session.UserID = id
	}
	if v := strings.TrimSpace(getenv("PAGECAL_ROLE")); v != "" {
		c.Session.Role = v
	}
	if v, ok := lookup(getenv, "PAGECAL_TEAM_ID"); ok {
		if strings.EqualFold(v, "none") {
			c.Session.TeamID = nil
		} else {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("PAGECAL_TEAM_ID: %w", err)
			}
			c.Session.TeamID = &id
		}
	}
	c.Normalize()
	return nil
}

// lookup returns the trimmed value of key. Blank counts as unset.
func lookup(getenv func(string) string, key string) (string, bool) {
	v := strings.TrimSpace(getenv(key))
	return v, v != ""
}

var ErrNoSession = errors.New("session user id is not configured (set session.user_id or PAGECAL_USER_ID)")

// BuildSession returns the viewer. Legacy role names are migrated; an
// unrecognised role is kept as-is and the UI treats it as read-only.
func (c *Config) BuildSession() (model.Session, error) {
	if c.Session.UserID <= 0 {
		return model.Session{}, ErrNoSession
	}
	role, _ := statusutil.NormalizeRole(c.Session.Role)
	s := model.Session{UserID: c.Session.UserID, Role: role}
	if c.Session.TeamID != nil {
		id := *c.Session.TeamID
		s.TeamID = &id
	}
	return s, nil
}
