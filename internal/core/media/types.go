package media

import (
	"fmt"
	"math"
	"strings"
)

// Platform identifies a supported source site
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTikTok    Platform = "tiktok"
	PlatformPinterest Platform = "pinterest"
)

// Platforms lists every supported platform in display order
var Platforms = []Platform{PlatformInstagram, PlatformFacebook, PlatformTikTok, PlatformPinterest}

// DisplayName returns the branded name of the platform (e.g., "TikTok")
func (p Platform) DisplayName() string {
	switch p {
	case PlatformInstagram:
		return "Instagram"
	case PlatformFacebook:
		return "Facebook"
	case PlatformTikTok:
		return "TikTok"
	case PlatformPinterest:
		return "Pinterest"
	}
	return string(p)
}

// ContentKind is the shape of content a URL points at
type ContentKind string

const (
	KindVideo   ContentKind = "video"
	KindPhoto   ContentKind = "photo"
	KindStory   ContentKind = "story"
	KindPost    ContentKind = "post" // single item or carousel, known only after extraction
	KindProfile ContentKind = "profile"
	KindUnknown ContentKind = "unknown"
)

// Target is a classified URL, ready for strategy lookup
type Target struct {
	Platform Platform
	Kind     ContentKind

	// URL is the canonical landing URL (after share-link resolution)
	URL string

	// Original is the URL as submitted by the caller
	Original string

	// Username is set for stories and profiles
	Username string

	// ID is the platform content ID when the path carries one (shortcode, video ID)
	ID string
}

// Status of a resolution
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// MediaAsset is a single downloadable deliverable
type MediaAsset struct {
	Quality    string  `json:"quality"`
	Ext        string  `json:"ext"`
	URL        string  `json:"url"`
	FormatID   string  `json:"format_id"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Filesize   int64   `json:"filesize,omitempty"`
	FilesizeMB float64 `json:"filesize_mb,omitempty"`
	VideoCodec string  `json:"vcodec,omitempty"`
	Note       string  `json:"note,omitempty"`
}

// Key is the dedup identity of an asset
func (a MediaAsset) Key() string {
	return a.Quality + "_" + a.Ext
}

// IsImage reports whether the asset is a still image
func (a MediaAsset) IsImage() bool {
	return IsImageExt(a.Ext)
}

// MediaBundle is the canonical resolution result returned to callers
type MediaBundle struct {
	Status     Status       `json:"status"`
	Title      string       `json:"title"`
	Thumbnail  string       `json:"thumbnail,omitempty"`
	Duration   int          `json:"duration"`
	Uploader   string       `json:"uploader"`
	IsCarousel bool         `json:"is_carousel"`
	Assets     []MediaAsset `json:"formats"`
}

// QualityLabel derives the display label for an asset: "{height}p", then the
// adapter's own note, then "Unknown"
func QualityLabel(height int, note string) string {
	if height > 0 {
		return fmt.Sprintf("%dp", height)
	}
	if note = strings.TrimSpace(note); note != "" {
		return note
	}
	return "Unknown"
}

// FilesizeMB converts a byte count to megabytes rounded to two decimals
func FilesizeMB(bytes int64) float64 {
	if bytes <= 0 {
		return 0
	}
	return math.Round(float64(bytes)/(1024*1024)*100) / 100
}

var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true, "gif": true, "heic": true,
}

// IsImageExt reports whether ext (without dot) is a still-image extension
func IsImageExt(ext string) bool {
	return imageExts[strings.ToLower(strings.TrimPrefix(ext, "."))]
}
