// Package credentials holds platform session cookies loaded from a Netscape
// cookies.txt export. Values are opaque: they are only ever forwarded.
package credentials

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/guiyumin/vresolve/internal/core/media"
)

// platformDomains maps cookie domains to platforms
var platformDomains = map[media.Platform][]string{
	media.PlatformInstagram: {"instagram.com"},
	media.PlatformFacebook:  {"facebook.com", "fb.com"},
	media.PlatformTikTok:    {"tiktok.com"},
	media.PlatformPinterest: {"pinterest.com"},
}

// Bag is a read-only set of cookies grouped by platform
type Bag struct {
	cookies map[media.Platform]map[string]string
}

// Empty returns a bag without any cookies
func Empty() *Bag {
	return &Bag{cookies: map[media.Platform]map[string]string{}}
}

// LoadFile reads a cookies.txt file. A missing file yields an empty bag.
func LoadFile(path string) (*Bag, error) {
	if path == "" {
		return Empty(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("open cookies file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads Netscape cookie lines:
// domain  include_subdomains  path  secure  expiry  name  value
func Parse(r io.Reader) (*Bag, error) {
	bag := Empty()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		// #HttpOnly_ prefixed lines are real cookies
		line = strings.TrimPrefix(line, "#HttpOnly_")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			return nil, fmt.Errorf("cookies line %d: expected 7 tab-separated fields, got %d", lineNo, len(fields))
		}

		domain := strings.TrimPrefix(strings.ToLower(fields[0]), ".")
		platform, ok := platformOf(domain)
		if !ok {
			continue
		}
		if bag.cookies[platform] == nil {
			bag.cookies[platform] = map[string]string{}
		}
		bag.cookies[platform][fields[5]] = fields[6]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	return bag, nil
}

func platformOf(domain string) (media.Platform, bool) {
	for platform, domains := range platformDomains {
		for _, d := range domains {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				return platform, true
			}
		}
	}
	return "", false
}

// Cookies returns a copy of the cookies for platform
func (b *Bag) Cookies(platform media.Platform) map[string]string {
	src := b.cookies[platform]
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Has reports whether the bag carries cookie name for platform
func (b *Bag) Has(platform media.Platform, name string) bool {
	_, ok := b.cookies[platform][name]
	return ok
}
