package extractor

import (
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"
)

const fixtureHTML = `<!DOCTYPE html>
<html>
<head>
	<title> Acme Widgets </title>
	<meta name="description" content="Widgets for every occasion">
	<meta name="generator" content="WordPress 6.4">
	<link rel="stylesheet" href="/css/site.css">
</head>
<body>
	<header id="top"><nav>Menu</nav></header>
	<main>
		<h1>Welcome</h1>
		<h2>Products</h2>
		<a href="/products">Products</a>
		<a href="https://example.com/about/">About</a>
		<a href="https://partner.example.org/deal">Partner</a>
		<a href="mailto:sales@example.com">Mail us</a>
		<a href="javascript:void(0)">Noop</a>
		<a href="/products#pricing">Pricing</a>
		<img src="/img/widget.png" alt="A widget" width="640" height="480">
	</main>
	<footer>© Acme</footer>
	<script src="https://cdn.example.com/app.js"></script>
	<script>window.dataLayer = window.dataLayer || [];</script>
</body>
</html>`

func extractFixture(t *testing.T) *Extraction {
	t.Helper()
	base, err := url.Parse("https://example.com/")
	if err != nil {
		t.Fatalf("parse base: %v", err)
	}
	ex, err := Extract(base, fixtureHTML, "example.com")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return ex
}

func TestExtractTitleAndMeta(t *testing.T) {
	ex := extractFixture(t)
	if ex.Title != "Acme Widgets" {
		t.Fatalf("title = %q", ex.Title)
	}
	if ex.MetaDescription != "Widgets for every occasion" {
		t.Fatalf("meta description = %q", ex.MetaDescription)
	}
	if got := ex.MetaTags["generator"]; got != "WordPress 6.4" {
		t.Fatalf("generator tag = %q", got)
	}
}

func TestExtractHeadings(t *testing.T) {
	ex := extractFixture(t)
	if len(ex.Headings) != 2 {
		t.Fatalf("got %d headings, want 2", len(ex.Headings))
	}
	if ex.Headings[0].Level != 1 || ex.Headings[0].Text != "Welcome" {
		t.Fatalf("first heading = %+v", ex.Headings[0])
	}
}

func TestExtractLinks(t *testing.T) {
	ex := extractFixture(t)

	byHref := make(map[string]bool)
	for _, link := range ex.Links {
		byHref[link.Href] = link.Internal
	}

	// Relative links resolve against the page URL.
	internal, ok := byHref["https://example.com/products"]
	if !ok || !internal {
		t.Fatalf("relative link missing or external: %v", byHref)
	}
	if internal, ok := byHref["https://example.com/about/"]; !ok || !internal {
		t.Fatal("same-host absolute link not marked internal")
	}
	if internal, ok := byHref["https://partner.example.org/deal"]; !ok || internal {
		t.Fatal("cross-host link not marked external")
	}
	for href := range byHref {
		if strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			t.Fatalf("non-navigational link kept: %s", href)
		}
		if strings.Contains(href, "#") {
			t.Fatalf("fragment survived resolution: %s", href)
		}
	}
}

func TestExtractImages(t *testing.T) {
	ex := extractFixture(t)
	if len(ex.Images) != 1 {
		t.Fatalf("got %d images, want 1", len(ex.Images))
	}
	img := ex.Images[0]
	if img.Src != "https://example.com/img/widget.png" {
		t.Fatalf("img src = %q", img.Src)
	}
	if img.Alt != "A widget" || img.Width != 640 || img.Height != 480 {
		t.Fatalf("img attrs = %+v", img)
	}
}

func TestExtractScriptsAndStylesheets(t *testing.T) {
	ex := extractFixture(t)
	if len(ex.ScriptSrcs) != 1 || ex.ScriptSrcs[0] != "https://cdn.example.com/app.js" {
		t.Fatalf("script srcs = %v", ex.ScriptSrcs)
	}
	if len(ex.InlineScripts) != 1 || !strings.Contains(ex.InlineScripts[0], "dataLayer") {
		t.Fatalf("inline scripts = %v", ex.InlineScripts)
	}
	if len(ex.Stylesheets) != 1 || ex.Stylesheets[0] != "/css/site.css" {
		t.Fatalf("stylesheets = %v", ex.Stylesheets)
	}
}

func TestExtractStructuralElements(t *testing.T) {
	ex := extractFixture(t)
	tags := make(map[string]bool)
	for _, el := range ex.Elements {
		tags[el.Tag] = true
	}
	for _, want := range []string{"header", "nav", "main", "footer"} {
		if !tags[want] {
			t.Fatalf("structural element %q missing: %v", want, ex.Elements)
		}
	}
}

func TestExtractTextExcludesScripts(t *testing.T) {
	ex := extractFixture(t)
	if !strings.Contains(ex.Text, "Welcome") {
		t.Fatalf("body text missing content: %q", ex.Text)
	}
	if strings.Contains(ex.Text, "dataLayer") {
		t.Fatalf("script text leaked into body text: %q", ex.Text)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"under limit untouched", "short", 10, "short"},
		{"ascii cut at limit", "abcdef", 3, "abc"},
		{"multi-byte rune not split", "abécd", 3, "ab"},
		{"cut lands on rune start", "abécd", 4, "abé"},
		{"wide rune backed off", "世界", 4, "世"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.limit)
			if got != tt.want {
				t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("truncate produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestExtractElementTextTruncatedOnRuneBoundary(t *testing.T) {
	base, err := url.Parse("https://example.com/")
	if err != nil {
		t.Fatalf("parse base: %v", err)
	}
	long := strings.Repeat("é", 80)
	html := `<html><body><section id="s">` + long + `</section></body></html>`
	ex, err := Extract(base, html, "example.com")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, el := range ex.Elements {
		if el.ID != "s" {
			continue
		}
		if !utf8.ValidString(el.Text) {
			t.Fatalf("element text is invalid UTF-8: %q", el.Text)
		}
		if len(el.Text) > elementTextLimit {
			t.Fatalf("element text %d bytes, cap is %d", len(el.Text), elementTextLimit)
		}
		return
	}
	t.Fatal("section element missing from extraction")
}

func TestHasSelector(t *testing.T) {
	ex := extractFixture(t)
	if !ex.HasSelector("header#top") {
		t.Fatal("HasSelector missed an existing element")
	}
	if ex.HasSelector(".does-not-exist") {
		t.Fatal("HasSelector matched a missing element")
	}
}
