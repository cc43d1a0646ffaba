// Package extractor turns a rendered document into the structured page
// record the crawler persists: links, images, headings, structural
// elements, text, and metadata.
package extractor

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/MacphersonDesigns/site-scraper/pkg/types"
)

const (
	maxTextLength    = 50000
	maxElements      = 60
	elementTextLimit = 100
)

var structuralTags = []string{"header", "nav", "main", "footer", "section", "article", "aside"}

// Extraction is the structured result for one rendered page. Besides the
// user-facing fields it carries the raw signals the technology detector
// evaluates, so the document is parsed exactly once.
type Extraction struct {
	Title           string
	MetaDescription string
	Text            string
	Headings        []types.Heading
	Links           []types.Link
	Images          []types.Image
	Elements        []types.Element

	ScriptSrcs    []string
	InlineScripts []string
	Stylesheets   []string
	MetaTags      map[string]string

	doc *goquery.Document
}

// Extract parses rendered HTML and collects the page record fields. Links
// are resolved against pageURL; internalHost anchors the internal/external
// flag (the run's first seed hostname).
func Extract(pageURL *url.URL, html string, internalHost string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	ex := &Extraction{
		MetaTags: make(map[string]string),
		doc:      doc,
	}

	ex.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		ex.MetaDescription = strings.TrimSpace(desc)
	}

	ex.collectMeta(doc)
	ex.collectHeadings(doc)
	ex.collectLinks(doc, pageURL, internalHost)
	ex.collectImages(doc, pageURL)
	ex.collectElements(doc)
	ex.collectScripts(doc)
	ex.collectText(doc)

	return ex, nil
}

// HasSelector reports whether the document matches a CSS selector. Used by
// the technology detector's selector signals.
func (ex *Extraction) HasSelector(selector string) bool {
	if ex.doc == nil {
		return false
	}
	return ex.doc.Find(selector).Length() > 0
}

func (ex *Extraction) collectMeta(doc *goquery.Document) {
	doc.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return
		}
		content, _ := s.Attr("content")
		if _, exists := ex.MetaTags[name]; !exists {
			ex.MetaTags[name] = strings.TrimSpace(content)
		}
	})
}

func (ex *Extraction) collectHeadings(doc *goquery.Document) {
	for level := 1; level <= 6; level++ {
		doc.Find(fmt.Sprintf("h%d", level)).Each(func(_ int, s *goquery.Selection) {
			text := collapseWhitespace(s.Text())
			if text == "" {
				return
			}
			ex.Headings = append(ex.Headings, types.Heading{Level: level, Text: text})
		})
	}
}

func (ex *Extraction) collectLinks(doc *goquery.Document, base *url.URL, internalHost string) {
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		resolved.Fragment = ""
		scheme := strings.ToLower(resolved.Scheme)
		if scheme != "http" && scheme != "https" {
			return
		}
		ex.Links = append(ex.Links, types.Link{
			Text:     collapseWhitespace(s.Text()),
			Href:     resolved.String(),
			Internal: strings.EqualFold(resolved.Hostname(), internalHost),
		})
	})
}

func (ex *Extraction) collectImages(doc *goquery.Document, base *url.URL) {
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		if resolved, err := base.Parse(src); err == nil {
			src = resolved.String()
		}
		alt, _ := s.Attr("alt")
		img := types.Image{Src: src, Alt: strings.TrimSpace(alt)}
		if w, ok := s.Attr("width"); ok {
			img.Width, _ = strconv.Atoi(w)
		}
		if h, ok := s.Attr("height"); ok {
			img.Height, _ = strconv.Atoi(h)
		}
		ex.Images = append(ex.Images, img)
	})
}

func (ex *Extraction) collectElements(doc *goquery.Document) {
	selector := strings.Join(structuralTags, ", ") + ", [id]"
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		node := s.Get(0)
		if node == nil {
			return true
		}
		tag := strings.ToLower(node.Data)
		if tag == "html" || tag == "head" || tag == "body" || tag == "script" || tag == "style" || tag == "meta" || tag == "link" {
			return true
		}

		el := types.Element{
			Tag:        tag,
			ChildCount: s.Children().Length(),
		}
		if id, ok := s.Attr("id"); ok {
			el.ID = strings.TrimSpace(id)
		}
		if class, ok := s.Attr("class"); ok {
			el.Classes = strings.Fields(class)
		}
		el.Text = truncate(collapseWhitespace(s.Text()), elementTextLimit)

		ex.Elements = append(ex.Elements, el)
		return len(ex.Elements) < maxElements
	})
}

func (ex *Extraction) collectScripts(doc *goquery.Document) {
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			src = strings.TrimSpace(src)
			if src != "" {
				ex.ScriptSrcs = append(ex.ScriptSrcs, src)
			}
			return
		}
		body := strings.TrimSpace(s.Text())
		if body != "" {
			ex.InlineScripts = append(ex.InlineScripts, body)
		}
	})
	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			href = strings.TrimSpace(href)
			if href != "" {
				ex.Stylesheets = append(ex.Stylesheets, href)
			}
		}
	})
}

func (ex *Extraction) collectText(doc *goquery.Document) {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	ex.Text = truncate(collapseWhitespace(body.Text()), maxTextLength)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate caps s at limit bytes, backing off so a multi-byte rune is
// never split.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
