package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

const (
	tuiStateKey = "tui_state"
	// RecentLimit caps the recently opened pages list.
	RecentLimit = 10
)

// TUIState restores the last screen on relaunch. It is best effort: callers
// should tolerate missing or invalid data.
type TUIState struct {
	Version int `json:"version"`

	// View is one of: calendar|dashboard
	View string `json:"view,omitempty"`

	// WeekAnchor is the first day of the week last shown, as YYYY-MM-DD.
	WeekAnchor string `json:"weekAnchor,omitempty"`

	// SelectedPageID is the calendar cursor; zero when on an empty slot.
	SelectedPageID int64 `json:"selectedPageId,omitempty"`

	ShowPreview bool `json:"showPreview,omitempty"`
}

// Anchor parses WeekAnchor in loc. ok is false when unset or invalid.
func (st TUIState) Anchor(loc *time.Location) (time.Time, bool) {
	v := strings.TrimSpace(st.WeekAnchor)
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *Store) LoadTUIState(ctx context.Context) (*TUIState, error) {
	raw, ok, err := s.Get(ctx, tuiStateKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &TUIState{Version: 1}, nil
	}
	var st TUIState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		// Corrupt state is treated as missing.
		return &TUIState{Version: 1}, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	return &st, nil
}

func (s *Store) SaveTUIState(ctx context.Context, st *TUIState) error {
	if st == nil {
		return nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.Set(ctx, tuiStateKey, string(b))
}

type RecentPage struct {
	PageID   int64     `json:"pageId"`
	Title    string    `json:"title"`
	OpenedAt time.Time `json:"openedAt"`
}

// TouchRecent records that a page was opened and trims the list.
func (s *Store) TouchRecent(ctx context.Context, pageID int64, title string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recent_pages(page_id, title, opened_at_unixms) VALUES(?, ?, ?)
		 ON CONFLICT(page_id) DO UPDATE SET title = excluded.title, opened_at_unixms = excluded.opened_at_unixms`,
		pageID, title, at.UTC().UnixMilli()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM recent_pages WHERE page_id NOT IN (
			SELECT page_id FROM recent_pages ORDER BY opened_at_unixms DESC, page_id DESC LIMIT ?
		)`, RecentLimit); err != nil {
		return err
	}
	return tx.Commit()
}

// ForgetRecent drops a page, e.g. after it was deleted.
func (s *Store) ForgetRecent(ctx context.Context, pageID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM recent_pages WHERE page_id = ?`, pageID)
	return err
}

// RecentPages returns recently opened pages, newest first.
func (s *Store) RecentPages(ctx context.Context) ([]RecentPage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT page_id, title, opened_at_unixms FROM recent_pages ORDER BY opened_at_unixms DESC, page_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecentPage
	for rows.Next() {
		var r RecentPage
		var ms int64
		if err := rows.Scan(&r.PageID, &r.Title, &ms); err != nil {
			return nil, err
		}
		r.OpenedAt = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
