package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "state.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTUIState_SaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()

	st0, err := s.LoadTUIState(ctx)
	if err != nil {
		t.Fatalf("LoadTUIState: %v", err)
	}
	if st0 == nil || st0.Version != 1 {
		t.Fatalf("expected default Version=1; got %#v", st0)
	}

	want := &TUIState{Version: 1, View: "dashboard", WeekAnchor: "2025-06-02", SelectedPageID: 4, ShowPreview: true}
	if err := s.SaveTUIState(ctx, want); err != nil {
		t.Fatalf("SaveTUIState: %v", err)
	}
	got, err := s.LoadTUIState(ctx)
	if err != nil {
		t.Fatalf("LoadTUIState (after save): %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("roundtrip mismatch:\nwant: %#v\ngot:  %#v", want, got)
	}
	anchor, ok := got.Anchor(time.UTC)
	if !ok || !anchor.Equal(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Anchor = %v %v", anchor, ok)
	}
}

func TestTUIState_CorruptTreatedAsMissing(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()
	if err := s.Set(ctx, tuiStateKey, "{not json"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	st, err := s.LoadTUIState(ctx)
	if err != nil || st.Version != 1 || st.View != "" {
		t.Fatalf("expected default state, got %#v %v", st, err)
	}
}

func TestRecentPages_TrimmedNewestFirst(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= RecentLimit+3; i++ {
		if err := s.TouchRecent(ctx, int64(i), "page", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("TouchRecent: %v", err)
		}
	}
	// Re-opening an old page moves it to the front.
	if err := s.TouchRecent(ctx, 5, "renamed", base.Add(time.Hour)); err != nil {
		t.Fatalf("TouchRecent: %v", err)
	}
	got, err := s.RecentPages(ctx)
	if err != nil {
		t.Fatalf("RecentPages: %v", err)
	}
	if len(got) != RecentLimit || got[0].PageID != 5 || got[0].Title != "renamed" {
		t.Fatalf("unexpected recent list: %+v", got)
	}
	if err := s.ForgetRecent(ctx, 5); err != nil {
		t.Fatalf("ForgetRecent: %v", err)
	}
	got, _ = s.RecentPages(ctx)
	if got[0].PageID == 5 {
		t.Fatalf("page 5 should be forgotten")
	}
}

func TestKV(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()
	if _, ok, _ := s.Get(ctx, "missing"); ok {
		t.Fatalf("missing key reported present")
	}
	if err := s.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, err := s.Get(ctx, "k"); err != nil || !ok || v != "v2" {
		t.Fatalf("Get = %q %v %v", v, ok, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("deleted key still present")
	}
}
