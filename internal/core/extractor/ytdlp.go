package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/registry"
	"github.com/tidwall/gjson"
)

// YtDlp shells out to yt-dlp as the generic last resort
type YtDlp struct {
	path        string
	cookiesFile string
}

func NewYtDlp(path, cookiesFile string) *YtDlp {
	if path == "" {
		path = "yt-dlp"
	}
	return &YtDlp{path: path, cookiesFile: cookiesFile}
}

func (e *YtDlp) Name() string { return registry.YtDlp }

// args keeps playlists only for stories, whose items arrive as entries
func (e *YtDlp) args(target media.Target) []string {
	args := []string{"-J", "--no-warnings"}
	if target.Kind != media.KindStory {
		args = append(args, "--no-playlist")
	}
	if e.cookiesFile != "" {
		if _, err := os.Stat(e.cookiesFile); err == nil {
			args = append(args, "--cookies", e.cookiesFile)
		}
	}
	return append(args, target.URL)
}

func (e *YtDlp) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.path, e.args(target)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("yt-dlp not installed: %w", err)
		}
		msg := strings.TrimSpace(stderr.String())
		if i := strings.LastIndex(msg, "\n"); i >= 0 {
			msg = msg[i+1:]
		}
		return nil, fmt.Errorf("yt-dlp failed: %s", firstNonEmpty(msg, err.Error()))
	}

	return parseYtDlp(stdout.Bytes())
}

func parseYtDlp(body []byte) (media.RawResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("yt-dlp printed invalid JSON")
	}
	info := gjson.ParseBytes(body)

	meta := media.Meta{
		Title:     info.Get("title").String(),
		Thumbnail: info.Get("thumbnail").String(),
		Uploader:  firstNonEmpty(info.Get("uploader").String(), info.Get("channel").String()),
		Duration:  int(info.Get("duration").Float()),
	}

	if entries := info.Get("entries").Array(); len(entries) > 0 {
		items := make([]media.Item, 0, len(entries))
		for i, entry := range entries {
			u, width, height := entryURL(entry)
			if u == "" {
				continue
			}
			isVideo := entry.Get("vcodec").String() != "none" && !media.IsImageExt(entry.Get("ext").String())
			kind := "Image"
			if isVideo {
				kind = "Video"
			}
			items = append(items, media.Item{
				URL:      u,
				IsVideo:  isVideo,
				FormatID: fmt.Sprintf("entry_%d", i+1),
				Width:    width,
				Height:   height,
				Label:    fmt.Sprintf("Story %d (%s)", i+1, kind),
			})
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("yt-dlp entries carry no media URLs")
		}
		return &media.MultiItem{Meta: meta, Items: items}, nil
	}

	formats := info.Get("formats").Array()
	variants := make([]media.Variant, 0, len(formats)+1)
	for _, f := range formats {
		if v, ok := ytdlpVariant(f); ok {
			variants = append(variants, v)
		}
	}

	// the top-level url is what yt-dlp itself would download
	if root := info.Get("url").String(); root != "" {
		formatID := "direct"
		if len(formats) == 0 {
			formatID = "direct_fallback"
		}
		variants = append(variants, media.Variant{
			URL:         root,
			Ext:         firstNonEmpty(info.Get("ext").String(), "mp4"),
			FormatID:    formatID,
			Width:       int(info.Get("width").Int()),
			Height:      int(info.Get("height").Int()),
			QualityNote: "HD",
		})
	}

	if len(variants) == 0 {
		return nil, fmt.Errorf("yt-dlp found no downloadable formats")
	}
	return &media.Single{Meta: meta, Variants: variants}, nil
}

// ytdlpVariant keeps playable formats. Storyboards, thumbnails and
// codec-less manifests are skipped.
func ytdlpVariant(f gjson.Result) (media.Variant, bool) {
	u := f.Get("url").String()
	ext := f.Get("ext").String()
	vcodec := f.Get("vcodec").String()
	acodec := f.Get("acodec").String()
	width := int(f.Get("width").Int())

	switch {
	case u == "":
		return media.Variant{}, false
	case media.IsImageExt(ext), ext == "mhtml":
		return media.Variant{}, false
	case vcodec == "none" && acodec == "none":
		return media.Variant{}, false
	case vcodec == "none" && width == 0:
		// audio-only
		return media.Variant{}, false
	}

	return media.Variant{
		URL:         u,
		Ext:         ext,
		FormatID:    f.Get("format_id").String(),
		Width:       width,
		Height:      int(f.Get("height").Int()),
		Filesize:    firstPositive(f.Get("filesize").Int(), f.Get("filesize_approx").Int()),
		VideoCodec:  vcodec,
		QualityNote: f.Get("format_note").String(),
	}, true
}

// entryURL picks an entry's own url, else its tallest format
func entryURL(entry gjson.Result) (string, int, int) {
	if u := entry.Get("url").String(); u != "" {
		return u, int(entry.Get("width").Int()), int(entry.Get("height").Int())
	}
	var best gjson.Result
	for _, f := range entry.Get("formats").Array() {
		if f.Get("url").String() == "" {
			continue
		}
		if !best.Exists() || f.Get("height").Int() > best.Get("height").Int() {
			best = f
		}
	}
	if !best.Exists() {
		return "", 0, 0
	}
	return best.Get("url").String(), int(best.Get("width").Int()), int(best.Get("height").Int())
}

func firstPositive(values ...int64) int64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
