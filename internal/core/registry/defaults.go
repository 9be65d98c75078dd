package registry

import (
	"sync"
	"time"

	"github.com/guiyumin/vresolve/internal/core/media"
)

// Strategy names known to the default table
const (
	FacebookCapture     = "facebook-capture"
	FacebookRender      = "facebook-render"
	FacebookHTML        = "facebook-html"
	FacebookPhotoHTML   = "facebook-photo-html"
	FacebookPhotoRender = "facebook-photo-render"
	FacebookProfileHTML = "facebook-profile-html"
	InstagramGraph      = "instagram-graph"
	InstagramStories    = "instagram-stories"
	InstagramProfile    = "instagram-profile"
	SSSTik              = "ssstik"
	TikWM               = "tikwm"
	PinterestHTML       = "pinterest-html"
	YtDlp               = "ytdlp"
)

var (
	facebook  = []media.Platform{media.PlatformFacebook}
	instagram = []media.Platform{media.PlatformInstagram}
	tiktok    = []media.Platform{media.PlatformTikTok}
	pinterest = []media.Platform{media.PlatformPinterest}
)

func kinds(k ...media.ContentKind) []media.ContentKind { return k }

// DefaultDescriptors returns the built-in strategy table. Priorities leave
// gaps so strategies.yml entries can slot in between.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		// Facebook videos: race the fast capture against the full render and
		// the direct fetch, then check whether the "video" is really a photo
		{Name: FacebookCapture, Mode: Race, Group: "fb-video", Timeout: 8 * time.Second, Priority: 10, Platforms: facebook, Kinds: kinds(media.KindVideo)},
		{Name: FacebookRender, Mode: Race, Group: "fb-video", Timeout: 35 * time.Second, Priority: 10, Platforms: facebook, Kinds: kinds(media.KindVideo)},
		{Name: FacebookHTML, Mode: Race, Group: "fb-video", Timeout: 12 * time.Second, Priority: 10, Platforms: facebook, Kinds: kinds(media.KindVideo)},
		{Name: FacebookPhotoHTML, Mode: Sequential, Timeout: 15 * time.Second, Priority: 20, Platforms: facebook, Kinds: kinds(media.KindVideo, media.KindPhoto)},
		{Name: FacebookPhotoRender, Mode: Sequential, Timeout: 25 * time.Second, Priority: 30, Platforms: facebook, Kinds: kinds(media.KindPhoto)},
		{Name: FacebookProfileHTML, Mode: Sequential, Timeout: 15 * time.Second, Priority: 10, Platforms: facebook, Kinds: kinds(media.KindProfile)},

		{Name: InstagramGraph, Mode: Sequential, Timeout: 20 * time.Second, Priority: 10, Platforms: instagram, Kinds: kinds(media.KindPost, media.KindVideo)},
		{Name: InstagramStories, Mode: Sequential, Timeout: 20 * time.Second, Priority: 10, Platforms: instagram, Kinds: kinds(media.KindStory)},
		{Name: InstagramProfile, Mode: Sequential, Timeout: 15 * time.Second, Priority: 10, Platforms: instagram, Kinds: kinds(media.KindProfile)},

		{Name: SSSTik, Mode: Race, Group: "tt-video", Timeout: 15 * time.Second, Priority: 10, Platforms: tiktok, Kinds: kinds(media.KindVideo)},
		{Name: TikWM, Mode: Race, Group: "tt-video", Timeout: 15 * time.Second, Priority: 10, Platforms: tiktok, Kinds: kinds(media.KindVideo)},
		{Name: TikWM, Mode: Sequential, Timeout: 15 * time.Second, Priority: 10, Platforms: tiktok, Kinds: kinds(media.KindPhoto)},

		{Name: PinterestHTML, Mode: Sequential, Timeout: 15 * time.Second, Priority: 10, Platforms: pinterest, Kinds: kinds(media.KindPost)},

		// yt-dlp is the general fallback everywhere except profiles
		{Name: YtDlp, Mode: Sequential, Timeout: 90 * time.Second, Priority: 100,
			Platforms: []media.Platform{media.PlatformFacebook, media.PlatformInstagram, media.PlatformTikTok, media.PlatformPinterest},
			Kinds:     kinds(media.KindVideo, media.KindPhoto, media.KindStory, media.KindPost)},
	}
}

// DefaultPolicies returns the built-in platform policy table
func DefaultPolicies() map[media.Platform]Policy {
	return map[media.Platform]Policy{
		media.PlatformFacebook:  {CollapseSingle: true, DefaultTitle: "Facebook Video", DefaultUploader: "Facebook"},
		media.PlatformTikTok:    {CollapseSingle: true, DefaultTitle: "TikTok Video", DefaultUploader: "TikTok"},
		media.PlatformPinterest: {CollapseSingle: true, DefaultTitle: "Pinterest Media", DefaultUploader: "Pinterest"},
		media.PlatformInstagram: {CollapseSingle: false, DefaultTitle: "Instagram Media", DefaultUploader: "Instagram"},
	}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the shared built-in registry
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := New(DefaultDescriptors(), DefaultPolicies())
		if err != nil {
			panic(err)
		}
		defaultReg = reg
	})
	return defaultReg
}
