package ingest

import (
	"strings"
	"testing"
)

func TestClean_PlainMarkdownUntouched(t *testing.T) {
	in := "# Title\r\n\r\n\r\n\r\nUses Vec<T> and <https://example.com>.   \n"
	got := NewReadmeCleaner(true, 0).Clean(in)
	want := "# Title\n\nUses Vec<T> and <https://example.com>."
	if got != want {
		t.Fatalf("Clean = %q, want %q", got, want)
	}
}

func TestClean_StripsEmbeddedHTML(t *testing.T) {
	in := `<p align="center"><img src="logo.png" alt="Acme &amp; Co"><br>Fast notes app</p>
<details><summary>Install</summary>npm i acme</details>
<script>alert(1)</script>
## Usage`
	got := NewReadmeCleaner(true, 0).Clean(in)
	for _, want := range []string{"Acme & Co", "Fast notes app", "Install", "npm i acme", "## Usage"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Clean = %q, missing %q", got, want)
		}
	}
	for _, bad := range []string{"<p", "<img", "alert(1)", "logo.png"} {
		if strings.Contains(got, bad) {
			t.Fatalf("Clean = %q, still has %q", got, bad)
		}
	}
}

func TestClean_OnlyHTMLBlocksAreParsed(t *testing.T) {
	in := "<p align=\"center\"><img src=\"logo.png\" alt=\"Acme\"></p>\n\n" +
		"Returns Option<String> from a Vec<T>.\n\n" +
		"```rust\nlet v: Vec<T> = vec![];\n// <div>not markup</div>\n```\n"
	got := NewReadmeCleaner(true, 0).Clean(in)
	for _, want := range []string{"Acme", "Returns Option<String> from a Vec<T>.", "let v: Vec<T> = vec![];", "// <div>not markup</div>", "```rust"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Clean = %q, missing %q", got, want)
		}
	}
	if strings.Contains(got, "<img") || strings.Contains(got, "<p ") {
		t.Fatalf("Clean = %q, header markup kept", got)
	}
}

func TestClean_StripDisabledKeepsMarkup(t *testing.T) {
	in := `<div>keep</div>`
	if got := NewReadmeCleaner(false, 0).Clean(in); got != in {
		t.Fatalf("Clean = %q", got)
	}
}

func TestClean_MaxRunes(t *testing.T) {
	got := NewReadmeCleaner(true, 5).Clean("héllo wörld")
	if got != "héllo" {
		t.Fatalf("Clean = %q", got)
	}
}
