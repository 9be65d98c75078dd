package classify

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guiyumin/vresolve/internal/core/httpclient"
	"github.com/guiyumin/vresolve/internal/core/logging"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/sirupsen/logrus"
)

// DefaultShareTimeout bounds share-link resolution
const DefaultShareTimeout = 15 * time.Second

// Doer sends HTTP requests, following redirects
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Classifier classifies URLs. The zero value is not usable; call New.
type Classifier struct {
	client       Doer
	shareTimeout time.Duration
	log          *logrus.Entry
}

// New creates a classifier. client is only used to resolve share links.
func New(client Doer, shareTimeout time.Duration) *Classifier {
	if shareTimeout <= 0 {
		shareTimeout = DefaultShareTimeout
	}
	return &Classifier{
		client:       client,
		shareTimeout: shareTimeout,
		log:          logging.For("classify"),
	}
}

// Classify validates raw, checks the allow-list, resolves share wrappers and
// detects the content kind. Validation and allow-list failures happen before
// any network call.
func (c *Classifier) Classify(ctx context.Context, raw string) (media.Target, error) {
	u, err := Validate(raw)
	if err != nil {
		return media.Target{}, err
	}

	platform, ok := PlatformOf(u.Hostname())
	if !ok {
		return media.Target{}, media.ErrUnsupportedDomain
	}

	original := u.String()
	resolved := u
	if IsShareWrapper(u) {
		resolved = c.resolveShare(ctx, u)
	}

	det := DetectKind(platform, resolved)
	if det.Kind == media.KindUnknown && resolved != u {
		det = DetectKind(platform, u)
	}

	target := media.Target{
		Platform: platform,
		Kind:     det.Kind,
		URL:      resolved.String(),
		Original: original,
		Username: det.Username,
		ID:       det.ID,
	}

	c.log.WithFields(logrus.Fields{
		"platform": target.Platform,
		"kind":     target.Kind,
		"url":      target.URL,
	}).Debug("classified")

	return target, nil
}

// IsShareWrapper reports whether u is a redirecting share link
func IsShareWrapper(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)

	switch {
	case host == "fb.watch", strings.HasSuffix(host, ".fb.watch"):
		return true
	case host == "vm.tiktok.com", host == "vt.tiktok.com":
		return true
	case host == "pin.it":
		return true
	}

	platform, _ := PlatformOf(host)
	switch platform {
	case media.PlatformFacebook:
		return strings.HasPrefix(path, "/share/")
	case media.PlatformTikTok:
		return strings.HasPrefix(path, "/t/")
	}
	return false
}

// resolveShare follows redirects of a share link once. The landing URL is
// only used if it is still on the allow-list; on any failure the original is
// returned.
func (c *Classifier) resolveShare(ctx context.Context, u *url.URL) *url.URL {
	if c.client == nil {
		return u
	}

	ctx, cancel := context.WithTimeout(ctx, c.shareTimeout)
	defer cancel()

	log := c.log.WithField("url", u.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return u
	}
	httpclient.ApplyBrowserHeaders(req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("share link resolution failed, using original url")
		return u
	}
	resp.Body.Close()

	landing := resp.Request.URL
	if _, ok := PlatformOf(landing.Hostname()); !ok {
		log.WithField("landing", landing.String()).Warn("share link left the allow-list, using original url")
		return u
	}

	log.WithField("landing", landing.String()).Debug("share link resolved")
	return landing
}
