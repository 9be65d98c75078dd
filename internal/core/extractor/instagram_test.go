package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/guiyumin/vresolve/internal/core/credentials"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/tidwall/gjson"
)

const sidecarJSON = `{"data":{"xdt_shortcode_media":{
	"__typename":"XDTGraphSidecar",
	"display_url":"https://cdn/cover.jpg",
	"owner":{"username":"alice"},
	"edge_media_to_caption":{"edges":[{"node":{"text":"beach day"}}]},
	"edge_sidecar_to_children":{"edges":[
		{"node":{"is_video":false,"display_url":"https://cdn/1.jpg","dimensions":{"width":1080,"height":1350}}},
		{"node":{"is_video":true,"video_url":"https://cdn/2.mp4","display_url":"https://cdn/2.jpg","dimensions":{"width":720,"height":1280}}},
		{"node":{"is_video":false,"display_url":"https://cdn/3.jpg","dimensions":{"width":1080,"height":1080}}}
	]}
}}}`

func TestParseInstagramPostCarousel(t *testing.T) {
	node := gjson.Get(sidecarJSON, "data.xdt_shortcode_media")
	raw := parseInstagramPost(node, "ABC")

	m, ok := raw.(*media.MultiItem)
	if !ok {
		t.Fatalf("got %T, want *media.MultiItem", raw)
	}
	if m.Title != "beach day" || m.Uploader != "alice" {
		t.Errorf("meta = %+v", m.Meta)
	}
	wantLabels := []string{"Slide 1 (Image)", "Slide 2 (Video)", "Slide 3 (Image)"}
	for i, it := range m.Items {
		if it.Label != wantLabels[i] {
			t.Errorf("item %d label = %q, want %q", i, it.Label, wantLabels[i])
		}
	}
	if m.Items[1].URL != "https://cdn/2.mp4" || !m.Items[1].IsVideo {
		t.Errorf("video slide = %+v", m.Items[1])
	}
}

func TestParseInstagramPostSingleVideo(t *testing.T) {
	node := gjson.Parse(`{"__typename":"XDTGraphVideo","is_video":true,"video_url":"https://cdn/v.mp4","display_url":"https://cdn/v.jpg","video_duration":14.6,"dimensions":{"width":720,"height":1280}}`)
	raw := parseInstagramPost(node, "XYZ")

	s := raw.(*media.Single)
	if s.Title != "Instagram Post XYZ" || s.Duration != 14 {
		t.Errorf("meta = %+v", s.Meta)
	}
	if v := s.Variants[0]; v.Ext != "mp4" || v.Height != 1280 || v.URL != "https://cdn/v.mp4" {
		t.Errorf("variant = %+v", v)
	}
}

func TestInstagramShortcode(t *testing.T) {
	tests := []struct {
		target  media.Target
		want    string
		wantErr bool
	}{
		{media.Target{ID: "ID1"}, "ID1", false},
		{media.Target{URL: "https://www.instagram.com/reel/Cx_9-a/"}, "Cx_9-a", false},
		{media.Target{URL: "https://www.instagram.com/alice/"}, "", true},
	}
	for _, tt := range tests {
		got, err := instagramShortcode(tt.target)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("instagramShortcode(%+v) = %q, %v", tt.target, got, err)
		}
	}
}

func TestInstagramGraphAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphql/query" || r.Header.Get("X-IG-App-ID") != instagramAppID {
			http.NotFound(w, r)
			return
		}
		if !strings.Contains(r.FormValue("variables"), `"shortcode":"ABC"`) {
			http.Error(w, "bad variables", http.StatusBadRequest)
			return
		}
		w.Write([]byte(sidecarJSON))
	}))
	defer srv.Close()

	e := NewInstagramGraph(testClient(t), credentials.Empty())
	e.api.baseURL = srv.URL

	raw, err := e.Attempt(context.Background(), media.Target{URL: "https://www.instagram.com/p/ABC/", ID: "ABC"})
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if len(raw.(*media.MultiItem).Items) != 3 {
		t.Errorf("items = %+v", raw)
	}
}

func TestInstagramGraphLoginPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<!DOCTYPE html><html>Login</html>`))
	}))
	defer srv.Close()

	e := NewInstagramGraph(testClient(t), credentials.Empty())
	e.api.baseURL = srv.URL

	_, err := e.Attempt(context.Background(), media.Target{ID: "ABC"})
	if !errors.Is(err, ErrLoginRequired) {
		t.Errorf("error = %v, want ErrLoginRequired", err)
	}
}

func TestInstagramProfileAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("username") != "alice" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"data":{"user":{"id":"42","username":"alice","full_name":"Alice A","profile_pic_url":"https://cdn/sd.jpg","profile_pic_url_hd":"https://cdn/hd.jpg"}}}`))
	}))
	defer srv.Close()

	e := NewInstagramProfile(testClient(t), credentials.Empty())
	e.api.baseURL = srv.URL

	raw, err := e.Attempt(context.Background(), media.Target{Username: "alice"})
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	s := raw.(*media.Single)
	if s.Title != "Alice A" || s.Uploader != "alice" || len(s.Variants) != 2 {
		t.Errorf("got %+v", s)
	}
	if s.Variants[0].QualityNote != "HD" {
		t.Errorf("first variant = %+v, want HD", s.Variants[0])
	}

	if _, err := e.Attempt(context.Background(), media.Target{Username: "bob"}); err == nil {
		t.Error("unknown user should fail")
	}
}

func TestInstagramStoriesNeedSession(t *testing.T) {
	e := NewInstagramStories(testClient(t), credentials.Empty())
	_, err := e.Attempt(context.Background(), media.Target{Username: "alice"})
	if !errors.Is(err, ErrLoginRequired) {
		t.Errorf("error = %v, want ErrLoginRequired", err)
	}
}

func TestInstagramStoriesAttempt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/users/web_profile_info/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"user":{"id":"42","username":"alice","profile_pic_url":"https://cdn/p.jpg"}}}`))
	})
	mux.HandleFunc("/api/v1/feed/reels_media/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("reel_ids") != "42" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"reels_media":[{"items":[
			{"media_type":1,"taken_at":1700000000,"image_versions2":{"candidates":[{"url":"https://cdn/s1.jpg","width":1080,"height":1920}]}},
			{"media_type":2,"taken_at":1700000100,"video_versions":[{"url":"https://cdn/s2.mp4","width":720,"height":1280}]}
		]}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	bag, err := credentials.Parse(strings.NewReader(".instagram.com\tTRUE\t/\tTRUE\t0\tsessionid\tsecret\n"))
	if err != nil {
		t.Fatal(err)
	}
	e := NewInstagramStories(testClient(t), bag)
	e.api.baseURL = srv.URL

	raw, err := e.Attempt(context.Background(), media.Target{Username: "alice"})
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	m := raw.(*media.MultiItem)
	if m.Title != "Stories from alice" || len(m.Items) != 2 {
		t.Fatalf("got %+v", m)
	}
	if m.Items[0].Label != "2023-11-14 22:13:20" || !m.Items[1].IsVideo {
		t.Errorf("items = %+v", m.Items)
	}
}
