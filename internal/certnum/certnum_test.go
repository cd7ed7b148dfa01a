package certnum_test

import (
	"testing"

	"github.com/Spok95/drillcert/internal/certnum"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		format string
		year   int
		seq    int64
		want   string
	}{
		{certnum.DefaultFormat, 2026, 1, "CERT-2026-0001"},
		{"DRL/{YEAR}/{SEQ:6}", 2025, 42, "DRL/2025/000042"},
		{"{SEQ}", 2026, 12345, "12345"},
		{"EMS-{SEQ:2}-{YEAR}", 2026, 7, "EMS-07-2026"},
	}
	for _, tc := range cases {
		if got := certnum.Format(tc.format, tc.year, tc.seq); got != tc.want {
			t.Fatalf("Format(%q) = %q, want %q", tc.format, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	ok := []string{certnum.DefaultFormat, "X{SEQ:8}", "{YEAR}{SEQ}"}
	for _, f := range ok {
		if err := certnum.Validate(f); err != nil {
			t.Fatalf("%q: %v", f, err)
		}
	}
	bad := []string{"", "CERT-{YEAR}", "{SEQ}-{SEQ}", "A{SEQ:0}", "A{SEQ:99}"}
	for _, f := range bad {
		if err := certnum.Validate(f); err == nil {
			t.Fatalf("%q: want error", f)
		}
	}
}

func TestScope(t *testing.T) {
	if got := certnum.Scope("CERT-{YEAR}-{SEQ}", 2026); got != "CERT-2026-{SEQ}" {
		t.Fatalf("scope = %q", got)
	}
	if certnum.Scope("N-{SEQ}", 2025) != certnum.Scope("N-{SEQ}", 2026) {
		t.Fatal("format without {YEAR} must share one counter across years")
	}
}
