package normalize

import "testing"

func TestFold(t *testing.T) {
	tests := []struct {
		name string
		in   string
		out  string
	}{
		{"identity", "awesome list", "awesome list"},
		{"case fold", "LeetCode Solutions", "leetcode solutions"},
		{"invalid utf8 dropped", string([]byte{0xff, 'a', 'p', 'i', 0x80}), "api"},
		{"zero widths removed", "tu\u200btor\u200dial", "tutorial"},
		{"combining marks removed", "cafe\u0301 app", "cafe app"},
		{"precomposed accents stripped", "Caf\u00e9 R\u00c9SUM\u00c9", "cafe resume"},
		{"fullwidth folded", "\uff33\uff24\uff2b", "sdk"},
		{"ligature expanded", "o\ufb03cial", "official"},
		{"whitespace collapsed", "  my\t\tdot\nfiles ", "my dot files"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Fold(tc.in)
			if got != tc.out {
				t.Fatalf("Fold(%q) = %q, want %q", tc.in, got, tc.out)
			}
			if again := Fold(got); again != got {
				t.Fatalf("Fold not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestClean(t *testing.T) {
	in := "\ufeff# Title  \r\n\r\n\r\n\r\nBody\x00 text\t\n\n\x07end   "
	want := "# Title\n\nBody text\n\nend"
	if got := Clean(in); got != want {
		t.Fatalf("Clean = %q, want %q", got, want)
	}
	if Clean("") != "" {
		t.Fatalf("Clean(empty) should be empty")
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"日本語テキスト", 3, "日本語"},
		{"abc", 0, ""},
		{"abc", 3, "abc"},
	}
	for _, c := range cases {
		if got := Truncate(c.in, c.n); got != c.want {
			t.Fatalf("Truncate(%q,%d) = %q, want %q", c.in, c.n, got, c.want)
		}
	}
}
