package extractor

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pageMeta is the Open Graph / Twitter card metadata of a page
type pageMeta struct {
	Title       string
	Description string
	Image       string
	Video       string
}

func readMeta(html string) pageMeta {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return pageMeta{}
	}

	content := func(selectors ...string) string {
		for _, sel := range selectors {
			if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	return pageMeta{
		Title:       content(`meta[property="og:title"]`, `meta[name="twitter:title"]`),
		Description: content(`meta[property="og:description"]`, `meta[name="description"]`),
		Image:       content(`meta[property="og:image"]`, `meta[name="twitter:image"]`),
		Video:       content(`meta[property="og:video"]`, `meta[property="og:video:secure_url"]`, `meta[property="og:video:url"]`),
	}
}

// urlPattern is one regex of a scan table. The first capture group (or the
// whole match) is the candidate.
type urlPattern struct {
	re *regexp.Regexp
}

func patterns(exprs ...string) []urlPattern {
	out := make([]urlPattern, len(exprs))
	for i, e := range exprs {
		out[i] = urlPattern{re: regexp.MustCompile(e)}
	}
	return out
}

// scan walks the table in order and returns the first cleaned candidate
// accepted by accept
func scan(table []urlPattern, html string, accept func(string) bool) string {
	for _, p := range table {
		for _, m := range p.re.FindAllStringSubmatch(html, -1) {
			candidate := m[0]
			if len(m) > 1 {
				candidate = m[1]
			}
			candidate = cleanURL(candidate)
			if candidate != "" && accept(candidate) {
				return candidate
			}
		}
	}
	return ""
}

// cleanURL undoes JSON and HTML escaping of a URL embedded in page source
func cleanURL(s string) string {
	s = strings.TrimSpace(s)
	// double-escaped payloads embedded in JSON strings
	s = strings.ReplaceAll(s, `\\/`, `/`)
	s = strings.ReplaceAll(s, `\\u`, `\u`)

	var decoded string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &decoded); err == nil {
		s = decoded
	}
	s = strings.ReplaceAll(s, `\/`, "/")
	s = strings.ReplaceAll(s, `\u0025`, "%")
	s = strings.ReplaceAll(s, `\u0026`, "&")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
