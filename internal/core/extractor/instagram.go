package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/guiyumin/vresolve/internal/core/credentials"
	"github.com/guiyumin/vresolve/internal/core/httpclient"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/registry"
	"github.com/tidwall/gjson"
)

const (
	instagramBaseURL = "https://www.instagram.com"
	instagramAppID   = "936619743392459"

	// persisted GraphQL query for a post by shortcode
	instagramPostDocID = "8845758582119845"
)

var shortcodeRegex = regexp.MustCompile(`/(?:p|reels?|tv)/([A-Za-z0-9_-]+)`)

// instagramAPI carries what every Instagram web API call needs
type instagramAPI struct {
	client  *httpclient.Client
	cookies *credentials.Bag
	baseURL string
}

func (a instagramAPI) headers() map[string]string {
	h := map[string]string{
		"X-IG-App-ID":      instagramAppID,
		"X-Requested-With": "XMLHttpRequest",
		"X-ASBD-ID":        "129477",
		"Accept":           "*/*",
		"Referer":          a.baseURL + "/",
		"Origin":           a.baseURL,
		"Sec-Fetch-Dest":   "empty",
		"Sec-Fetch-Mode":   "cors",
		"Sec-Fetch-Site":   "same-origin",
	}
	if csrf := a.cookies.Cookies(media.PlatformInstagram)["csrftoken"]; csrf != "" {
		h["X-CSRFToken"] = csrf
	}
	return h
}

func (a instagramAPI) call(ctx context.Context, req httpclient.Request) (gjson.Result, error) {
	req.Headers = a.headers()
	req.Cookies = a.cookies.Cookies(media.PlatformInstagram)

	resp, err := a.client.Fetch(ctx, req)
	if err != nil {
		return gjson.Result{}, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return gjson.Result{}, fmt.Errorf("instagram: not found")
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return gjson.Result{}, fmt.Errorf("instagram returned %d: %w", resp.StatusCode, ErrLoginRequired)
	case resp.StatusCode != http.StatusOK:
		return gjson.Result{}, fmt.Errorf("instagram returned status %d", resp.StatusCode)
	}

	if !gjson.ValidBytes(resp.Body) {
		// the login page comes back as HTML with a 200
		return gjson.Result{}, fmt.Errorf("instagram returned a non-JSON page: %w", ErrLoginRequired)
	}
	root := gjson.ParseBytes(resp.Body)
	if root.Get("require_login").Bool() {
		return gjson.Result{}, fmt.Errorf("instagram: %w", ErrLoginRequired)
	}
	return root, nil
}

// profile fetches web_profile_info for username
func (a instagramAPI) profile(ctx context.Context, username string) (gjson.Result, error) {
	username = strings.TrimSpace(strings.TrimPrefix(username, "@"))
	if username == "" {
		return gjson.Result{}, fmt.Errorf("instagram: missing username")
	}
	root, err := a.call(ctx, httpclient.Request{
		URL: a.baseURL + "/api/v1/users/web_profile_info/?username=" + url.QueryEscape(username),
	})
	if err != nil {
		return gjson.Result{}, err
	}
	user := root.Get("data.user")
	if !user.Exists() || user.Type == gjson.Null {
		return gjson.Result{}, fmt.Errorf("instagram: user not found")
	}
	return user, nil
}

// InstagramGraph resolves posts, reels and carousels through the web GraphQL API
type InstagramGraph struct {
	api instagramAPI
}

func NewInstagramGraph(client *httpclient.Client, cookies *credentials.Bag) *InstagramGraph {
	return &InstagramGraph{api: instagramAPI{client: client, cookies: cookies, baseURL: instagramBaseURL}}
}

func (e *InstagramGraph) Name() string { return registry.InstagramGraph }

func (e *InstagramGraph) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	shortcode, err := instagramShortcode(target)
	if err != nil {
		return nil, err
	}

	variables := fmt.Sprintf(`{"shortcode":%q,"fetch_tagged_user_count":null,"hoisted_comment_id":null,"hoisted_reply_id":null}`, shortcode)
	root, err := e.api.call(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    e.api.baseURL + "/graphql/query",
		Form:   url.Values{"doc_id": {instagramPostDocID}, "variables": {variables}},
	})
	if err != nil {
		return nil, err
	}

	node := root.Get("data.xdt_shortcode_media")
	if !node.Exists() || node.Type == gjson.Null {
		node = root.Get("data.shortcode_media")
	}
	if !node.Exists() || node.Type == gjson.Null {
		return nil, fmt.Errorf("instagram: post %s not available", shortcode)
	}

	return parseInstagramPost(node, shortcode), nil
}

func instagramShortcode(target media.Target) (string, error) {
	code := target.ID
	if code == "" {
		if m := shortcodeRegex.FindStringSubmatch(target.URL); m != nil {
			code = m[1]
		}
	}
	if code == "" || strings.EqualFold(code, "audio") {
		return "", fmt.Errorf("instagram: no post shortcode in %s", target.URL)
	}
	return code, nil
}

func parseInstagramPost(node gjson.Result, shortcode string) media.RawResult {
	meta := media.Meta{
		Title:     firstNonEmpty(node.Get("edge_media_to_caption.edges.0.node.text").String(), "Instagram Post "+shortcode),
		Thumbnail: node.Get("display_url").String(),
		Uploader:  node.Get("owner.username").String(),
	}
	if node.Get("is_video").Bool() {
		meta.Duration = int(node.Get("video_duration").Float())
	}

	if strings.Contains(node.Get("__typename").String(), "Sidecar") {
		edges := node.Get("edge_sidecar_to_children.edges").Array()
		items := make([]media.Item, 0, len(edges))
		for i, edge := range edges {
			child := edge.Get("node")
			isVideo := child.Get("is_video").Bool()
			kind := "Image"
			u := child.Get("display_url").String()
			if isVideo {
				kind = "Video"
				u = child.Get("video_url").String()
			}
			items = append(items, media.Item{
				URL:      u,
				IsVideo:  isVideo,
				FormatID: fmt.Sprintf("slide_%d", i+1),
				Width:    int(child.Get("dimensions.width").Int()),
				Height:   int(child.Get("dimensions.height").Int()),
				Label:    fmt.Sprintf("Slide %d (%s)", i+1, kind),
			})
		}
		return &media.MultiItem{Meta: meta, Items: items}
	}

	isVideo := node.Get("is_video").Bool()
	v := media.Variant{
		URL:         node.Get("display_url").String(),
		Ext:         "jpg",
		FormatID:    "original",
		Width:       int(node.Get("dimensions.width").Int()),
		Height:      int(node.Get("dimensions.height").Int()),
		QualityNote: "Best Quality",
	}
	if isVideo {
		v.URL = node.Get("video_url").String()
		v.Ext = "mp4"
	}
	return &media.Single{Meta: meta, Variants: []media.Variant{v}}
}

// InstagramStories lists a user's active stories. It needs a logged-in
// session cookie.
type InstagramStories struct {
	api instagramAPI
}

func NewInstagramStories(client *httpclient.Client, cookies *credentials.Bag) *InstagramStories {
	return &InstagramStories{api: instagramAPI{client: client, cookies: cookies, baseURL: instagramBaseURL}}
}

func (e *InstagramStories) Name() string { return registry.InstagramStories }

func (e *InstagramStories) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	if !e.api.cookies.Has(media.PlatformInstagram, "sessionid") {
		return nil, fmt.Errorf("instagram stories need a sessionid cookie: %w", ErrLoginRequired)
	}

	user, err := e.api.profile(ctx, target.Username)
	if err != nil {
		return nil, err
	}
	userID := user.Get("id").String()
	username := firstNonEmpty(user.Get("username").String(), target.Username)

	root, err := e.api.call(ctx, httpclient.Request{
		URL: e.api.baseURL + "/api/v1/feed/reels_media/?reel_ids=" + url.QueryEscape(userID),
	})
	if err != nil {
		return nil, err
	}

	items := root.Get("reels_media.0.items")
	if !items.Exists() {
		items = root.Get("reels." + gjson.Escape(userID) + ".items")
	}

	meta := media.Meta{
		Title:     "Stories from " + username,
		Uploader:  username,
		Thumbnail: user.Get("profile_pic_url").String(),
	}
	result := &media.MultiItem{Meta: meta, Items: parseStoryItems(items.Array())}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("no stories found for %s", username)
	}
	return result, nil
}

func parseStoryItems(raw []gjson.Result) []media.Item {
	items := make([]media.Item, 0, len(raw))
	for _, it := range raw {
		isVideo := it.Get("media_type").Int() == 2
		best := it.Get("image_versions2.candidates.0")
		if isVideo {
			best = it.Get("video_versions.0")
		}
		if best.Get("url").String() == "" {
			continue
		}
		takenAt := it.Get("taken_at").Int()
		items = append(items, media.Item{
			URL:      best.Get("url").String(),
			IsVideo:  isVideo,
			FormatID: fmt.Sprintf("story_%d", takenAt),
			Width:    int(best.Get("width").Int()),
			Height:   int(best.Get("height").Int()),
			Label:    time.Unix(takenAt, 0).UTC().Format("2006-01-02 15:04:05"),
		})
	}
	return items
}

// InstagramProfile resolves a user's profile picture
type InstagramProfile struct {
	api instagramAPI
}

func NewInstagramProfile(client *httpclient.Client, cookies *credentials.Bag) *InstagramProfile {
	return &InstagramProfile{api: instagramAPI{client: client, cookies: cookies, baseURL: instagramBaseURL}}
}

func (e *InstagramProfile) Name() string { return registry.InstagramProfile }

func (e *InstagramProfile) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	user, err := e.api.profile(ctx, target.Username)
	if err != nil {
		return nil, err
	}

	username := firstNonEmpty(user.Get("username").String(), target.Username)
	hd := user.Get("profile_pic_url_hd").String()
	sd := user.Get("profile_pic_url").String()

	single := &media.Single{
		Meta: media.Meta{
			Title:     firstNonEmpty(user.Get("full_name").String(), username),
			Uploader:  username,
			Thumbnail: firstNonEmpty(sd, hd),
		},
	}
	if hd != "" {
		single.Variants = append(single.Variants, media.Variant{URL: hd, Ext: "jpg", FormatID: "profile_pic_hd", QualityNote: "HD"})
	}
	if sd != "" && sd != hd {
		single.Variants = append(single.Variants, media.Variant{URL: sd, Ext: "jpg", FormatID: "profile_pic", QualityNote: "SD"})
	}
	return single, nil
}
