package extractor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/guiyumin/vresolve/internal/core/credentials"
	"github.com/guiyumin/vresolve/internal/core/httpclient"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/registry"
)

// fbVideoPatterns are tried in order against the page source
var fbVideoPatterns = patterns(
	`"playable_url_quality_hd":"([^"]+)"`,
	`"browser_native_hd_url":"([^"]+)"`,
	`"playable_url":"([^"]+)"`,
	`"browser_native_sd_url":"([^"]+)"`,
	`hd_src:"([^"]+)"`,
	`sd_src:"([^"]+)"`,
	`"videoUrl":"([^"]+)"`,
	`"video_url":"([^"]+)"`,
	`playable_url_quality_hd\\":\\"([^"\\]+)\\"`,
	`playable_url\\":\\"([^"\\]+)\\"`,
	`"src":"(https://[^"]*video[^"]*\.mp4[^"]*)"`,
	`src="(https://[^"]*video[^"]*\.mp4[^"]*)"`,
	`(https://video[^"'\s\\]+\.fbcdn\.net/[^"'\s\\]+)`,
	`(https://[^"'\s\\]*\.fbcdn\.net/[^"'\s\\]*video[^"'\s\\]*)`,
)

// fbPhotoPatterns find full-size photos on scontent CDNs
var fbPhotoPatterns = patterns(
	`"image":\s*\{\s*"uri":\s*"([^"]+)"`,
	`"url":"(https://scontent[^"]+\.jpg[^"]*)"`,
	`"src":"(https://scontent[^"]+\.jpg[^"]*)"`,
	`(https://scontent[^"'\s\\]+\.jpg[^"'\s\\]*)`,
)

func isFacebookVideoURL(u string) bool {
	return strings.Contains(u, "fbcdn.net") || strings.Contains(u, ".mp4")
}

func isFacebookPhotoURL(u string) bool {
	return containsAll(u, "scontent", ".jpg")
}

// fetchFacebook GETs a Facebook page with session cookies. Share links that
// fail on the desktop site are retried with a mobile user agent.
func fetchFacebook(ctx context.Context, client *httpclient.Client, cookies map[string]string, target media.Target) (*httpclient.Response, error) {
	req := httpclient.Request{URL: target.URL, Cookies: cookies}
	resp, err := client.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	isShare := strings.Contains(target.URL, "/share/") || strings.Contains(target.Original, "/share/")
	if resp.StatusCode != http.StatusOK && isShare {
		req.Headers = map[string]string{"User-Agent": httpclient.MobileUserAgent}
		if resp, err = client.Fetch(ctx, req); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facebook returned status %d", resp.StatusCode)
	}
	return resp, nil
}

// FacebookHTML scrapes video CDN URLs out of the page source without a browser
type FacebookHTML struct {
	client  *httpclient.Client
	cookies *credentials.Bag
}

func NewFacebookHTML(client *httpclient.Client, cookies *credentials.Bag) *FacebookHTML {
	return &FacebookHTML{client: client, cookies: cookies}
}

func (e *FacebookHTML) Name() string { return registry.FacebookHTML }

func (e *FacebookHTML) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	resp, err := fetchFacebook(ctx, e.client, e.cookies.Cookies(media.PlatformFacebook), target)
	if err != nil {
		return nil, err
	}
	html := string(resp.Body)

	meta := readMeta(html)
	videoURL := scan(fbVideoPatterns, html, isFacebookVideoURL)
	if videoURL == "" {
		videoURL = meta.Video
	}
	if videoURL == "" {
		return nil, fmt.Errorf("could not extract video URL from facebook page")
	}

	return &media.Single{
		Meta: media.Meta{Title: meta.Title, Thumbnail: meta.Image},
		Variants: []media.Variant{{
			URL:         videoURL,
			Ext:         "mp4",
			FormatID:    "hd",
			QualityNote: "HD",
		}},
	}, nil
}

// FacebookPhotoHTML finds the full-size image of a photo page
type FacebookPhotoHTML struct {
	client  *httpclient.Client
	cookies *credentials.Bag
}

func NewFacebookPhotoHTML(client *httpclient.Client, cookies *credentials.Bag) *FacebookPhotoHTML {
	return &FacebookPhotoHTML{client: client, cookies: cookies}
}

func (e *FacebookPhotoHTML) Name() string { return registry.FacebookPhotoHTML }

func (e *FacebookPhotoHTML) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	resp, err := fetchFacebook(ctx, e.client, e.cookies.Cookies(media.PlatformFacebook), target)
	if err != nil {
		return nil, err
	}
	html := string(resp.Body)

	meta := readMeta(html)
	photoURL := scan(fbPhotoPatterns, html, isFacebookPhotoURL)
	if photoURL == "" {
		photoURL = meta.Image
	}
	if photoURL == "" {
		return nil, fmt.Errorf("could not extract photo URL from facebook page")
	}

	return photoResult(meta.Title, "Facebook Photo", photoURL), nil
}

func photoResult(title, defaultTitle, photoURL string) *media.Single {
	if title == "" {
		title = defaultTitle
	}
	return &media.Single{
		Meta: media.Meta{Title: title, Thumbnail: photoURL},
		Variants: []media.Variant{{
			URL:         photoURL,
			Ext:         "jpg",
			FormatID:    "photo",
			QualityNote: "HD",
		}},
	}
}

// FacebookProfileHTML resolves a profile picture from the profile page's
// Open Graph tags
type FacebookProfileHTML struct {
	client  *httpclient.Client
	cookies *credentials.Bag
}

func NewFacebookProfileHTML(client *httpclient.Client, cookies *credentials.Bag) *FacebookProfileHTML {
	return &FacebookProfileHTML{client: client, cookies: cookies}
}

func (e *FacebookProfileHTML) Name() string { return registry.FacebookProfileHTML }

func (e *FacebookProfileHTML) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	resp, err := e.client.Fetch(ctx, httpclient.Request{
		URL:     target.URL,
		Cookies: e.cookies.Cookies(media.PlatformFacebook),
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facebook returned status %d", resp.StatusCode)
	}
	html := string(resp.Body)

	meta := readMeta(html)
	fullName := strings.TrimSpace(strings.TrimSuffix(meta.Title, " | Facebook"))
	if fullName == "" {
		fullName = "Facebook User"
	}

	if meta.Image == "" {
		lower := strings.ToLower(html)
		if strings.Contains(lower, "log into facebook") || strings.Contains(resp.FinalURL, "login") {
			return nil, fmt.Errorf("facebook refused access, cookies need c_user and xs: %w", ErrLoginRequired)
		}
		return nil, fmt.Errorf("could not find profile picture in page meta tags")
	}

	username := target.Username
	if username == "" {
		username = strings.ToLower(strings.ReplaceAll(fullName, " ", "_"))
	}

	return &media.Single{
		Meta: media.Meta{Title: fullName, Thumbnail: meta.Image, Uploader: username},
		Variants: []media.Variant{{
			URL:         meta.Image,
			Ext:         "jpg",
			FormatID:    "profile_pic",
			QualityNote: "HD",
		}},
	}, nil
}
