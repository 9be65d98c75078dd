// Package classify turns a raw user URL into a media.Target: it validates the
// input, enforces the platform allow-list, resolves share-link wrappers and
// infers the content kind from the path.
package classify

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/guiyumin/vresolve/internal/core/media"
)

// MaxURLLength bounds accepted input
const MaxURLLength = 2048

// shellMetachars never appear in a legitimate content URL. "&" is allowed
// because query strings need it.
const shellMetachars = ";|`$()<>"

// allowedDomains is the security boundary: only these hosts (and their
// subdomains) are ever contacted on behalf of a caller
var allowedDomains = []struct {
	domain   string
	platform media.Platform
}{
	{"instagram.com", media.PlatformInstagram},
	{"instagr.am", media.PlatformInstagram},
	{"facebook.com", media.PlatformFacebook},
	{"fb.com", media.PlatformFacebook},
	{"fb.watch", media.PlatformFacebook},
	{"tiktok.com", media.PlatformTikTok},
	{"pinterest.com", media.PlatformPinterest},
	{"pin.it", media.PlatformPinterest},
}

// Validate checks raw syntactically. It never touches the network.
func Validate(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty url", media.ErrInputValidation)
	}
	if len(raw) > MaxURLLength {
		return nil, fmt.Errorf("%w: url longer than %d bytes", media.ErrInputValidation, MaxURLLength)
	}
	for _, r := range raw {
		if unicode.IsControl(r) {
			return nil, fmt.Errorf("%w: url contains control characters", media.ErrInputValidation)
		}
		if strings.ContainsRune(shellMetachars, r) {
			return nil, fmt.Errorf("%w: url contains invalid character %q", media.ErrInputValidation, r)
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrInputValidation, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q not allowed", media.ErrInputValidation, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: url has no host", media.ErrInputValidation)
	}
	u.Scheme = scheme
	return u, nil
}

// PlatformOf maps a host to its platform using exact or dot-suffix matching.
// Look-alikes such as instagram.com.evil.io are rejected.
func PlatformOf(host string) (media.Platform, bool) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, d := range allowedDomains {
		if host == d.domain || strings.HasSuffix(host, "."+d.domain) {
			return d.platform, true
		}
	}
	return "", false
}

// Allowed reports whether rawURL parses and its host is on the allow-list
func Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := PlatformOf(u.Hostname())
	return ok
}
