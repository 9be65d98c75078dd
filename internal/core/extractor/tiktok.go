package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/guiyumin/vresolve/internal/core/httpclient"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/registry"
	"github.com/tidwall/gjson"
)

const (
	ssstikBaseURL = "https://ssstik.io"
	tikwmBaseURL  = "https://www.tikwm.com"
)

var ssstikTokenRegex = regexp.MustCompile(`s_tt\s*=\s*["']([^"']+)["']`)

// SSSTik submits the TikTok URL to ssstik.io and reads the watermark-free
// link from the returned HTML fragment
type SSSTik struct {
	client  *httpclient.Client
	baseURL string
}

func NewSSSTik(client *httpclient.Client) *SSSTik {
	return &SSSTik{client: client, baseURL: ssstikBaseURL}
}

func (e *SSSTik) Name() string { return registry.SSSTik }

func (e *SSSTik) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	home := e.baseURL + "/en"

	resp, err := e.client.Fetch(ctx, httpclient.Request{URL: home, Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("ssstik homepage: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ssstik homepage failed: %d", resp.StatusCode)
	}

	token := ssstikToken(string(resp.Body))

	post, err := e.client.Fetch(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    e.baseURL + "/abc?url=dl",
		Form:   url.Values{"id": {target.URL}, "locale": {"en"}, "tt": {token}},
		Headers: map[string]string{
			"Origin":         e.baseURL,
			"Referer":        home,
			"Hx-Request":     "true",
			"Hx-Target":      "target",
			"Hx-Current-Url": home,
		},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("ssstik post: %w", err)
	}
	if post.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ssstik post failed: %d", post.StatusCode)
	}

	return parseSSSTik(string(post.Body))
}

func ssstikToken(html string) string {
	if m := ssstikTokenRegex.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		if v, ok := doc.Find(`input[name="tt"]`).First().Attr("value"); ok && v != "" {
			return v
		}
	}
	return "0"
}

func parseSSSTik(html string) (media.RawResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse ssstik response: %w", err)
	}

	meta := media.Meta{Title: "TikTok Video", Uploader: "TikTok User"}
	if h2 := strings.TrimSpace(doc.Find("h2").First().Text()); h2 != "" {
		meta.Uploader = h2
	}
	if p := strings.TrimSpace(doc.Find("p.maintext").First().Text()); p != "" {
		meta.Title = p
	}
	if src, ok := doc.Find("img.result_author").First().Attr("src"); ok {
		meta.Thumbnail = src
	}

	var downloadURL string
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return true
		}
		text := strings.ToLower(a.Text())
		if a.HasClass("without_watermark") || strings.Contains(text, "without watermark") {
			downloadURL = href
			return false
		}
		if strings.Contains(href, "tiktokcdn") && !strings.Contains(text, "mp3") {
			downloadURL = href
		}
		return true
	})

	if downloadURL == "" {
		return nil, fmt.Errorf("no download link found in ssstik response")
	}

	return &media.Single{
		Meta: meta,
		Variants: []media.Variant{{
			URL:         downloadURL,
			Ext:         "mp4",
			FormatID:    "ssstik_hd",
			VideoCodec:  "h264",
			QualityNote: "HD (No Watermark)",
		}},
	}, nil
}

// TikWM queries the tikwm.com JSON API. It also handles photo slideshows.
type TikWM struct {
	client  *httpclient.Client
	baseURL string
}

func NewTikWM(client *httpclient.Client) *TikWM {
	return &TikWM{client: client, baseURL: tikwmBaseURL}
}

func (e *TikWM) Name() string { return registry.TikWM }

func (e *TikWM) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	resp, err := e.client.Fetch(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    e.baseURL + "/api/",
		Form:   url.Values{"url": {target.URL}, "hd": {"1"}},
		Headers: map[string]string{
			"Accept": "application/json",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tikwm request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tikwm returned status %d", resp.StatusCode)
	}

	return parseTikWM(resp.Body, e.baseURL)
}

func parseTikWM(body []byte, baseURL string) (media.RawResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("tikwm returned invalid JSON")
	}
	root := gjson.ParseBytes(body)
	if code := root.Get("code").Int(); code != 0 {
		return nil, fmt.Errorf("tikwm error %d: %s", code, root.Get("msg").String())
	}

	data := root.Get("data")
	meta := media.Meta{
		Title:     firstNonEmpty(data.Get("title").String(), "TikTok Video"),
		Thumbnail: absolute(baseURL, firstNonEmpty(data.Get("cover").String(), data.Get("origin_cover").String())),
		Uploader:  firstNonEmpty(data.Get("author.nickname").String(), "TikTok"),
		Duration:  int(data.Get("duration").Int()),
	}

	if images := data.Get("images").Array(); len(images) > 0 {
		items := make([]media.Item, 0, len(images))
		for i, img := range images {
			items = append(items, media.Item{
				URL:      absolute(baseURL, img.String()),
				FormatID: fmt.Sprintf("photo_%d", i+1),
				Label:    fmt.Sprintf("Photo %d", i+1),
			})
		}
		return &media.MultiItem{Meta: meta, Items: items}, nil
	}

	videoURL := firstNonEmpty(data.Get("hdplay").String(), data.Get("play").String())
	if videoURL == "" {
		return nil, fmt.Errorf("tikwm response has no play URL")
	}
	size := data.Get("hd_size").Int()
	if size == 0 {
		size = data.Get("size").Int()
	}

	return &media.Single{
		Meta: meta,
		Variants: []media.Variant{{
			URL:         absolute(baseURL, videoURL),
			Ext:         "mp4",
			FormatID:    "hd",
			Filesize:    size,
			VideoCodec:  "h264",
			QualityNote: "HD",
		}},
	}, nil
}

// absolute resolves the API's site-relative media paths
func absolute(baseURL, u string) string {
	if strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//") {
		return baseURL + u
	}
	return u
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
