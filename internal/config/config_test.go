package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pagecal/internal/model"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != DefaultBaseURL || cfg.TUI.WeekStart != "monday" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	team := int64(10)
	in := Default()
	in.API.BaseURL = "https://pages.example.com/"
	in.Session = SessionConfig{UserID: 2, Role: "editor", TeamID: &team}
	in.TUI.WeekStart = "Sunday"
	if err := Save(path, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.API.BaseURL != "https://pages.example.com" {
		t.Fatalf("base url = %q", got.API.BaseURL)
	}
	if got.WeekStartDay() != time.Sunday {
		t.Fatalf("week start = %v", got.WeekStartDay())
	}
	s, err := got.BuildSession()
	if err != nil {
		t.Fatalf("BuildSession: %v", err)
	}
	if s.Role != model.RoleManager || s.TeamID == nil || *s.TeamID != 10 {
		t.Fatalf("session = %+v", s)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"PAGECAL_API_URL": "http://127.0.0.1:9000",
		"PAGECAL_TOKEN":   "tok",
		"PAGECAL_USER_ID": "7",
		"PAGECAL_ROLE":    "viewer",
		"PAGECAL_TEAM_ID": "none",
	}
	team := int64(3)
	cfg := Default()
	cfg.Session.TeamID = &team
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	s, err := cfg.BuildSession()
	if err != nil {
		t.Fatalf("BuildSession: %v", err)
	}
	if cfg.API.Token != "tok" || s.UserID != 7 || s.Role != model.RoleMember || s.TeamID != nil {
		t.Fatalf("unexpected result: cfg=%+v session=%+v", cfg, s)
	}

	bad := func(k string) string {
		if k == "PAGECAL_USER_ID" {
			return "seven"
		}
		return ""
	}
	if err := Default().ApplyEnv(bad); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyEnv_BlankTeamIsUnset(t *testing.T) {
	t.Parallel()

	team := int64(3)
	cfg := Default()
	cfg.Session.TeamID = &team
	blank := func(k string) string {
		if k == "PAGECAL_TEAM_ID" {
			return "   "
		}
		return ""
	}
	if err := cfg.ApplyEnv(blank); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Session.TeamID == nil || *cfg.Session.TeamID != 3 {
		t.Fatalf("blank PAGECAL_TEAM_ID changed the team: %v", cfg.Session.TeamID)
	}
}

func TestBuildSession(t *testing.T) {
	t.Parallel()

	if _, err := Default().BuildSession(); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	cfg := Default()
	cfg.Session = SessionConfig{UserID: 4, Role: "auditor"}
	s, err := cfg.BuildSession()
	if err != nil {
		t.Fatalf("BuildSession: %v", err)
	}
	if s.Role != "auditor" {
		t.Fatalf("unknown roles must be kept so the UI fails closed; got %q", s.Role)
	}
}

func TestPaths(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if got := cfg.StatePath("/home/u/.pagecal/config.yaml"); got != "/home/u/.pagecal/state.sqlite" {
		t.Fatalf("StatePath = %q", got)
	}
	cfg.Log.File = "-"
	if got := cfg.LogPath("/x/config.yaml"); got != "" {
		t.Fatalf("LogPath = %q", got)
	}
}
