package tenant

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeSchemaName(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare identifier gets prefix", input: "acme", want: "tenant_acme"},
		{name: "already prefixed unchanged", input: "tenant_acme", want: "tenant_acme"},
		{name: "uppercase folded", input: "Acme_Corp", want: "tenant_acme_corp"},
		{name: "surrounding space trimmed", input: "  acme  ", want: "tenant_acme"},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "hyphen rejected", input: "acme-corp", wantErr: true},
		{name: "leading digit rejected", input: "1acme", wantErr: true},
		{name: "semicolon injection rejected", input: "acme; drop schema public", wantErr: true},
		{name: "over 63 chars rejected", input: strings.Repeat("a", 64), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeSchemaName(DefaultSchemaPrefix, tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidSchemaName) {
					t.Fatalf("expected ErrInvalidSchemaName, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
