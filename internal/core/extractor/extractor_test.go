package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/guiyumin/vresolve/internal/core/credentials"
	"github.com/guiyumin/vresolve/internal/core/httpclient"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/registry"
)

func testClient(t *testing.T) *httpclient.Client {
	t.Helper()
	c, err := httpclient.New(httpclient.Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestDefaultsCoverRegistry(t *testing.T) {
	set := Defaults(Deps{HTTP: testClient(t)})
	if err := set.Check(registry.Default()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if _, err := set.Get("nope"); err == nil {
		t.Error("Get(nope) should fail")
	}
}

func TestCleanURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`https:\/\/video.fbcdn.net\/v\/a.mp4?x=1&y=2`, "https://video.fbcdn.net/v/a.mp4?x=1&y=2"},
		{`https:\\/\\/scontent.xx.fbcdn.net\\/a.jpg`, "https://scontent.xx.fbcdn.net/a.jpg"},
		{"https://example.com/a.mp4?x=1&amp;y=2", "https://example.com/a.mp4?x=1&y=2"},
		{"  https://plain.example/a.mp4  ", "https://plain.example/a.mp4"},
	}

	for _, tt := range tests {
		if got := cleanURL(tt.in); got != tt.want {
			t.Errorf("cleanURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScanHonoursTableOrder(t *testing.T) {
	html := `{"playable_url":"https:\/\/video.xx.fbcdn.net\/sd.mp4","playable_url_quality_hd":"https:\/\/video.xx.fbcdn.net\/hd.mp4"}`
	got := scan(fbVideoPatterns, html, isFacebookVideoURL)
	if got != "https://video.xx.fbcdn.net/hd.mp4" {
		t.Errorf("scan() = %q, want the HD URL", got)
	}

	if got := scan(fbVideoPatterns, `<p>nothing here</p>`, isFacebookVideoURL); got != "" {
		t.Errorf("scan() on empty page = %q", got)
	}
}

func TestIsCaptureCandidate(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://video.xx.fbcdn.net/v/t42/abc.mp4?oh=1", true},
		{"https://video.xx.fbcdn.net/v/t42/abc.mp4?bytestart=0&byteend=1000", false},
		{"https://example.com/abc.mp4", false},
		{"https://video.xx.fbcdn.net/v/t42/abc.m4s", false},
	}
	for _, tt := range tests {
		if got := isCaptureCandidate(tt.url); got != tt.want {
			t.Errorf("isCaptureCandidate(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestReadMeta(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="A title">
		<meta name="twitter:image" content="https://img.example/t.jpg">
		<meta property="og:video:secure_url" content="https://v.example/v.mp4">
	</head></html>`

	m := readMeta(html)
	if m.Title != "A title" || m.Image != "https://img.example/t.jpg" || m.Video != "https://v.example/v.mp4" {
		t.Errorf("readMeta() = %+v", m)
	}
}

func TestFacebookHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:title" content="Clip"><meta property="og:image" content="https://scontent.example/t.jpg"></head>
			<script>{"browser_native_hd_url":"https:\/\/video.xx.fbcdn.net\/v\/clip.mp4?a=1&b=2"}</script></html>`))
	}))
	defer srv.Close()

	e := NewFacebookHTML(testClient(t), credentials.Empty())
	raw, err := e.Attempt(context.Background(), media.Target{URL: srv.URL + "/watch?v=1"})
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	single := raw.(*media.Single)
	if single.Title != "Clip" || single.Variants[0].URL != "https://video.xx.fbcdn.net/v/clip.mp4?a=1&b=2" {
		t.Errorf("got %+v", single)
	}
}

func TestFacebookProfileLoginWall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><title>Log into Facebook</title></html>`))
	}))
	defer srv.Close()

	e := NewFacebookProfileHTML(testClient(t), credentials.Empty())
	_, err := e.Attempt(context.Background(), media.Target{URL: srv.URL + "/someone"})
	if !errors.Is(err, ErrLoginRequired) {
		t.Errorf("Attempt() error = %v, want ErrLoginRequired", err)
	}
}

func TestBrowserStrategiesWithoutPool(t *testing.T) {
	for _, s := range []Strategy{NewFacebookCapture(nil), NewFacebookRender(nil), NewFacebookPhotoRender(nil)} {
		if _, err := s.Attempt(context.Background(), media.Target{}); !errors.Is(err, errNoBrowser) {
			t.Errorf("%s: error = %v, want errNoBrowser", s.Name(), err)
		}
	}
}

func TestParsePin(t *testing.T) {
	video := `<meta property="og:title" content="Pin"><script>{"contentUrl":"https://v1.pinimg.com/videos/mc/720p/ab/cd/x.mp4"}</script>`
	raw, err := parsePin(video)
	if err != nil {
		t.Fatal(err)
	}
	v := raw.(*media.Single).Variants[0]
	if v.Ext != "mp4" || v.QualityNote != "720p" {
		t.Errorf("video variant = %+v", v)
	}

	image := `<script>{"url":"https://i.pinimg.com/originals/ab/cd/x.png"}</script>`
	raw, err = parsePin(image)
	if err != nil {
		t.Fatal(err)
	}
	v = raw.(*media.Single).Variants[0]
	if v.Ext != "png" || v.URL != "https://i.pinimg.com/originals/ab/cd/x.png" {
		t.Errorf("image variant = %+v", v)
	}

	if _, err := parsePin(`<html></html>`); err == nil {
		t.Error("empty pin page should fail")
	}
}

func TestExtFromURL(t *testing.T) {
	tests := map[string]string{
		"https://a.example/x.JPEG?w=1": "jpeg",
		"https://a.example/dir.v2/x":   "jpg",
		"https://a.example/x.webp#f":   "webp",
	}
	for in, want := range tests {
		if got := extFromURL(in, "jpg"); got != want {
			t.Errorf("extFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFuncAdapter(t *testing.T) {
	f := Func{ID: "stub", Fn: func(ctx context.Context, target media.Target) (media.RawResult, error) {
		return &media.Single{Variants: []media.Variant{{URL: target.URL}}}, nil
	}}
	set := Set{}.Add(f)
	got, err := set.Get("stub")
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := got.Attempt(context.Background(), media.Target{URL: "u"})
	if !raw.Viable() {
		t.Error("stub result should be viable")
	}
	if strings.Join(set.Names(), ",") != "stub" {
		t.Errorf("Names() = %v", set.Names())
	}
}
