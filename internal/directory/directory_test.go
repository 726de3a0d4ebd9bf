package directory

import (
	"context"
	"errors"
	"testing"

	"pagecal/internal/model"
)

func i64(v int64) *int64 { return &v }

var testUsers = []model.User{
	{ID: 7, Username: "chloe", Role: model.RoleMember, TeamID: i64(10)},
	{ID: 1, Username: "alice", Role: model.RoleAdmin},
	{ID: 8, Username: "dmitri", Role: model.RoleMember, TeamID: i64(20)},
	{ID: 2, Username: "bruno", Role: model.RoleManager, TeamID: i64(10)},
	{ID: 9, Username: "eva", Role: model.RoleManager},
}

func ids(us []model.User) []int64 {
	out := make([]int64, 0, len(us))
	for _, u := range us {
		out = append(out, u.ID)
	}
	return out
}

func TestAssignable_ByRole(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		session model.Session
		want    []int64
	}{
		{name: "admin", session: model.Session{UserID: 1, Role: model.RoleAdmin}, want: []int64{1, 2, 7, 8, 9}},
		{name: "manager", session: model.Session{UserID: 2, Role: model.RoleManager, TeamID: i64(10)}, want: []int64{2, 7}},
		{name: "manager without team", session: model.Session{UserID: 9, Role: model.RoleManager}, want: []int64{9}},
		{name: "member", session: model.Session{UserID: 7, Role: model.RoleMember, TeamID: i64(10)}, want: []int64{7}},
		{name: "unknown", session: model.Session{UserID: 7, Role: "auditor"}, want: []int64{}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ids(New(testUsers, tc.session).Assignable())
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestLabel_FallsBackToID(t *testing.T) {
	t.Parallel()

	d := New(testUsers, model.Session{UserID: 7, Role: model.RoleMember})
	if got := d.Label(8); got != "dmitri" {
		t.Fatalf("Label(8) = %q", got)
	}
	if got := d.Label(42); got != "#42" {
		t.Fatalf("Label(42) = %q", got)
	}
	if got := d.LabelPtr(nil); got != "unassigned" {
		t.Fatalf("LabelPtr(nil) = %q", got)
	}
	if d.CanAssign(8) {
		t.Fatalf("member must not be able to assign others")
	}
}

type failingSource struct{ err error }

func (f failingSource) Users(context.Context) ([]model.User, error) { return nil, f.err }

func TestLoad_PropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	if _, err := Load(context.Background(), failingSource{err: boom}, model.Session{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
