package main

import (
	"reflect"
	"testing"
)

func TestRewritePageLookupArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"pagecal"},
			want: []string{"pagecal"},
		},
		{
			name: "direct page id first token",
			in:   []string{"pagecal", "42"},
			want: []string{"pagecal", "pages", "show", "42"},
		},
		{
			name: "direct page id after value flag",
			in:   []string{"pagecal", "--api", "http://localhost:8000", "42"},
			want: []string{"pagecal", "--api", "http://localhost:8000", "pages", "show", "42"},
		},
		{
			name: "direct page id after equals flag",
			in:   []string{"pagecal", "--config=./cfg.yaml", "42"},
			want: []string{"pagecal", "--config=./cfg.yaml", "pages", "show", "42"},
		},
		{
			name: "direct page id after bool flag",
			in:   []string{"pagecal", "--pretty", "42"},
			want: []string{"pagecal", "--pretty", "pages", "show", "42"},
		},
		{
			name: "direct page id after double dash",
			in:   []string{"pagecal", "--format", "yaml", "--", "42"},
			want: []string{"pagecal", "--format", "yaml", "--", "pages", "show", "42"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"pagecal", "pages", "show", "42"},
			want: []string{"pagecal", "pages", "show", "42"},
		},
		{
			name: "zero id not rewritten",
			in:   []string{"pagecal", "0"},
			want: []string{"pagecal", "0"},
		},
		{
			name: "unknown command not rewritten",
			in:   []string{"pagecal", "wat"},
			want: []string{"pagecal", "wat"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewritePageLookupArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewritePageLookupArgs:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}
