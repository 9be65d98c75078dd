package classify

import (
	"net/url"
	"strings"

	"github.com/guiyumin/vresolve/internal/core/media"
)

// instagramReserved are first path segments that are never usernames
var instagramReserved = map[string]bool{
	"p": true, "reel": true, "reels": true, "tv": true, "stories": true,
	"explore": true, "accounts": true, "direct": true, "about": true,
	"developer": true, "legal": true, "web": true,
}

// facebookReserved are first path segments that are never profile names
var facebookReserved = map[string]bool{
	"watch": true, "reel": true, "reels": true, "videos": true, "video.php": true,
	"photo": true, "photo.php": true, "photos": true, "stories": true, "story.php": true,
	"share": true, "groups": true, "events": true, "marketplace": true,
	"permalink.php": true, "login": true, "help": true, "pages": true,
}

// Detected is the path-derived part of a Target
type Detected struct {
	Kind     media.ContentKind
	Username string
	ID       string
}

// DetectKind infers the content kind of u for platform from its path shape
func DetectKind(platform media.Platform, u *url.URL) Detected {
	segs := segments(u.Path)
	host := strings.ToLower(u.Hostname())

	switch platform {
	case media.PlatformInstagram:
		return instagramKind(segs)
	case media.PlatformFacebook:
		return facebookKind(host, segs, u.Query())
	case media.PlatformTikTok:
		return tiktokKind(host, segs)
	case media.PlatformPinterest:
		return pinterestKind(host, segs)
	}
	return Detected{Kind: media.KindUnknown}
}

func instagramKind(segs []string) Detected {
	if len(segs) == 0 {
		return Detected{Kind: media.KindUnknown}
	}
	switch segs[0] {
	case "reels":
		if len(segs) > 1 && segs[1] == "audio" {
			return Detected{Kind: media.KindUnknown}
		}
		return Detected{Kind: media.KindVideo, ID: at(segs, 1)}
	case "reel", "tv":
		return Detected{Kind: media.KindVideo, ID: at(segs, 1)}
	case "p":
		return Detected{Kind: media.KindPost, ID: at(segs, 1)}
	case "stories":
		user := at(segs, 1)
		if user == "" || user == "highlights" {
			return Detected{Kind: media.KindUnknown}
		}
		return Detected{Kind: media.KindStory, Username: user, ID: at(segs, 2)}
	}
	// instagram.com/<user>/p/<code> carries the username too
	if len(segs) >= 3 && (segs[1] == "p" || segs[1] == "reel") {
		kind := media.KindPost
		if segs[1] == "reel" {
			kind = media.KindVideo
		}
		return Detected{Kind: kind, Username: segs[0], ID: segs[2]}
	}
	if len(segs) == 1 && !instagramReserved[segs[0]] {
		return Detected{Kind: media.KindProfile, Username: segs[0]}
	}
	return Detected{Kind: media.KindUnknown}
}

func facebookKind(host string, segs []string, q url.Values) Detected {
	if host == "fb.watch" || strings.HasSuffix(host, ".fb.watch") {
		return Detected{Kind: media.KindVideo, ID: at(segs, 0)}
	}
	if len(segs) == 0 {
		return Detected{Kind: media.KindUnknown}
	}

	if q.Get("fbid") != "" {
		return Detected{Kind: media.KindPhoto, ID: q.Get("fbid")}
	}

	switch segs[0] {
	case "stories", "story.php":
		return Detected{Kind: media.KindStory, Username: at(segs, 1)}
	case "photo", "photo.php", "photos":
		return Detected{Kind: media.KindPhoto}
	case "reel", "reels":
		return Detected{Kind: media.KindVideo, ID: at(segs, 1)}
	case "watch", "video.php":
		return Detected{Kind: media.KindVideo, ID: q.Get("v")}
	case "videos":
		return Detected{Kind: media.KindVideo, ID: last(segs)}
	case "share":
		// unresolved share link: /share/p/ is a post, /share/v/ and /share/r/ are videos
		if at(segs, 1) == "p" {
			return Detected{Kind: media.KindPost}
		}
		return Detected{Kind: media.KindVideo}
	case "permalink.php", "groups":
		return Detected{Kind: media.KindPost}
	case "profile.php":
		return Detected{Kind: media.KindProfile, ID: q.Get("id")}
	}

	// /<page>/videos/<id>, /<page>/photos/..., /<page>/posts/<id>
	if len(segs) >= 2 {
		switch segs[1] {
		case "videos", "reel", "reels":
			return Detected{Kind: media.KindVideo, Username: segs[0], ID: last(segs)}
		case "photos":
			return Detected{Kind: media.KindPhoto, Username: segs[0]}
		case "posts":
			return Detected{Kind: media.KindPost, Username: segs[0], ID: last(segs)}
		}
	}
	if len(segs) == 1 && !facebookReserved[segs[0]] {
		return Detected{Kind: media.KindProfile, Username: segs[0]}
	}
	return Detected{Kind: media.KindUnknown}
}

func tiktokKind(host string, segs []string) Detected {
	if host == "vm.tiktok.com" || host == "vt.tiktok.com" || at(segs, 0) == "t" {
		// unresolved short link
		return Detected{Kind: media.KindVideo}
	}
	for i, s := range segs {
		switch s {
		case "video":
			return Detected{Kind: media.KindVideo, Username: strings.TrimPrefix(at(segs, i-1), "@"), ID: at(segs, i+1)}
		case "photo":
			return Detected{Kind: media.KindPhoto, Username: strings.TrimPrefix(at(segs, i-1), "@"), ID: at(segs, i+1)}
		}
	}
	if len(segs) == 1 && strings.HasPrefix(segs[0], "@") {
		return Detected{Kind: media.KindProfile, Username: strings.TrimPrefix(segs[0], "@")}
	}
	return Detected{Kind: media.KindUnknown}
}

func pinterestKind(host string, segs []string) Detected {
	if host == "pin.it" {
		return Detected{Kind: media.KindPost, ID: at(segs, 0)}
	}
	if at(segs, 0) == "pin" && at(segs, 1) != "" {
		return Detected{Kind: media.KindPost, ID: segs[1]}
	}
	if len(segs) == 1 {
		return Detected{Kind: media.KindProfile, Username: segs[0]}
	}
	return Detected{Kind: media.KindUnknown}
}

func segments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func at(segs []string, i int) string {
	if i < 0 || i >= len(segs) {
		return ""
	}
	return segs[i]
}

func last(segs []string) string {
	return at(segs, len(segs)-1)
}
