package head

import (
	"strings"
	"testing"
)

func TestBuilder_HTML(t *testing.T) {
	b := New()
	b.SetTitle("first")
	b.SetTitle(`acme <shop>`)
	b.SetDescription(`Custom domain page for "acme"`)
	b.Icon("🚀")
	b.Meta(`<meta charset="utf-8">`)
	b.Meta(`<meta charset="utf-8">`)

	got := string(b.HTML())

	if !strings.HasPrefix(got, "<title>acme &lt;shop&gt;</title>") {
		t.Fatalf("title not escaped or not first: %s", got)
	}
	if !strings.Contains(got, `content="Custom domain page for &#34;acme&#34;"`) {
		t.Fatalf("description missing: %s", got)
	}
	if !strings.Contains(got, `rel="icon" href="data:image/svg+xml,`) {
		t.Fatalf("icon missing: %s", got)
	}
	if n := strings.Count(got, "charset"); n != 1 {
		t.Fatalf("meta not deduplicated, %d copies", n)
	}
}

func TestBuilder_Empty(t *testing.T) {
	if got := New().HTML(); got != "" {
		t.Fatalf("empty builder rendered %q", got)
	}
}
