package extractor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/guiyumin/vresolve/internal/core/httpclient"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/registry"
)

var pinVideoPatterns = patterns(
	`"contentUrl":"(https://v1\.pinimg\.com/videos/[^"]+\.mp4)"`,
	`"url":"(https://v1\.pinimg\.com/videos/mc/720p/[^"]+\.mp4)"`,
	`(https://v1\.pinimg\.com/videos/[^"'\s\\]+\.mp4)`,
)

var pinImagePatterns = patterns(
	`"url":"(https://i\.pinimg\.com/originals/[^"]+)"`,
	`(https://i\.pinimg\.com/originals/[^"'\s\\]+\.(?:jpg|jpeg|png|gif|webp))`,
)

// PinterestHTML reads the pin page for its video or original-size image
type PinterestHTML struct {
	client *httpclient.Client
}

func NewPinterestHTML(client *httpclient.Client) *PinterestHTML {
	return &PinterestHTML{client: client}
}

func (e *PinterestHTML) Name() string { return registry.PinterestHTML }

func (e *PinterestHTML) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	resp, err := e.client.Fetch(ctx, httpclient.Request{URL: target.URL})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pinterest returned status %d", resp.StatusCode)
	}

	return parsePin(string(resp.Body))
}

func parsePin(html string) (media.RawResult, error) {
	meta := readMeta(html)
	info := media.Meta{Title: meta.Title, Thumbnail: meta.Image}

	if videoURL := scan(pinVideoPatterns, html, func(string) bool { return true }); videoURL != "" {
		return &media.Single{Meta: info, Variants: []media.Variant{{
			URL:         videoURL,
			Ext:         "mp4",
			FormatID:    "pin_video",
			QualityNote: qualityFromPath(videoURL),
		}}}, nil
	}
	if meta.Video != "" {
		return &media.Single{Meta: info, Variants: []media.Variant{{
			URL: meta.Video, Ext: "mp4", FormatID: "pin_video", QualityNote: "HD",
		}}}, nil
	}

	imageURL := scan(pinImagePatterns, html, func(string) bool { return true })
	if imageURL == "" {
		imageURL = meta.Image
	}
	if imageURL == "" {
		return nil, fmt.Errorf("no media found on pin page")
	}

	return &media.Single{Meta: info, Variants: []media.Variant{{
		URL:         imageURL,
		Ext:         extFromURL(imageURL, "jpg"),
		FormatID:    "pin_image",
		QualityNote: "Original",
	}}}, nil
}

// qualityFromPath reads "720p" out of pinimg video paths
func qualityFromPath(u string) string {
	for _, q := range []string{"1080p", "720p", "480p", "360p"} {
		if strings.Contains(u, "/"+q+"/") {
			return q
		}
	}
	return "HD"
}

func extFromURL(u, fallback string) string {
	path := u
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndex(path, "."); i >= 0 && i > strings.LastIndex(path, "/") {
		ext := strings.ToLower(path[i+1:])
		if ext != "" && len(ext) <= 4 {
			return ext
		}
	}
	return fallback
}
