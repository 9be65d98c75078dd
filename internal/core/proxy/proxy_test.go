package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/guiyumin/vresolve/internal/core/httpclient"
	"github.com/guiyumin/vresolve/internal/core/media"
)

// pngHeader is the smallest prefix mimetype recognises as PNG
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func upstream(t *testing.T, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "no user agent", http.StatusForbidden)
			return
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenInfersTypeFromFilename(t *testing.T) {
	srv := upstream(t, "application/octet-stream", []byte("not really a video"))

	s, err := New(nil).Open(context.Background(), Request{URL: srv.URL + "/blob", Filename: "clip.mp4"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if s.ContentType != "video/mp4" {
		t.Errorf("ContentType = %q, want video/mp4", s.ContentType)
	}
	if s.Disposition != `attachment; filename="clip.mp4"` {
		t.Errorf("Disposition = %q", s.Disposition)
	}
	if s.ContentLength != int64(len("not really a video")) {
		t.Errorf("ContentLength = %d", s.ContentLength)
	}
}

func TestOpenKeepsSpecificUpstreamType(t *testing.T) {
	srv := upstream(t, "image/webp", []byte("RIFF"))

	s, err := New(nil).Open(context.Background(), Request{URL: srv.URL, Filename: "x.mp4", Inline: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.ContentType != "image/webp" {
		t.Errorf("ContentType = %q", s.ContentType)
	}
	if s.Disposition != `inline; filename="x.mp4"` {
		t.Errorf("Disposition = %q", s.Disposition)
	}
}

func TestOpenSniffsUnknownExtension(t *testing.T) {
	body := append(append([]byte{}, pngHeader...), make([]byte, 4096)...)
	srv := upstream(t, "binary/octet-stream", body)

	s, err := New(nil).Open(context.Background(), Request{URL: srv.URL + "/asset"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", s.ContentType)
	}
	got, err := io.ReadAll(s.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(body) {
		t.Errorf("streamed %d bytes, want %d", len(got), len(body))
	}
	if s.Disposition != `attachment; filename="download"` {
		t.Errorf("Disposition = %q", s.Disposition)
	}
}

func TestOpenRejectsBadURLs(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com/a.mp4", "https://", "javascript:alert(1)"} {
		_, err := New(nil).Open(context.Background(), Request{URL: raw})
		if !errors.Is(err, media.ErrInputValidation) {
			t.Errorf("Open(%q) error = %v, want ErrInputValidation", raw, err)
		}
	}
}

func TestOpenUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(nil).Open(context.Background(), Request{URL: srv.URL})
	if !errors.Is(err, media.ErrUpstreamProxy) {
		t.Errorf("error = %v, want ErrUpstreamProxy", err)
	}

	srv.Close()
	_, err = New(nil).Open(context.Background(), Request{URL: srv.URL})
	if !errors.Is(err, media.ErrUpstreamProxy) {
		t.Errorf("closed upstream error = %v, want ErrUpstreamProxy", err)
	}
}

func TestProvenanceHeaders(t *testing.T) {
	tests := []struct {
		host    string
		referer string
	}{
		{"v16-webapp.tiktokcdn.com", "https://ssstik.io/"},
		{"tikcdn.io", "https://ssstik.io/"},
		{"scontent-lax3-1.cdninstagram.com", "https://www.instagram.com/"},
		{"video.xx.fbcdn.net", "https://www.facebook.com/"},
		{"example.com", ""},
		{"notfbcdn.net", ""},
	}
	for _, tt := range tests {
		if got := provenanceHeaders(tt.host)["Referer"]; got != tt.referer {
			t.Errorf("provenanceHeaders(%q) Referer = %q, want %q", tt.host, got, tt.referer)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"clip.mp4":          "clip.mp4",
		`a"b.mp4`:           "a_b.mp4",
		"../../etc/passwd":  ".._.._etc_passwd",
		"line\r\nbreak.jpg": "linebreak.jpg",
		"   ":               "download",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenDoesNotReplayCookies(t *testing.T) {
	var leaked atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("cdn"); err == nil {
			leaked.Store(true)
		}
		http.SetCookie(w, &http.Cookie{Name: "cdn", Value: "token", Path: "/"})
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	hc, err := httpclient.New(httpclient.Options{})
	if err != nil {
		t.Fatal(err)
	}
	p := FromHTTPClient(hc)

	for i := 0; i < 2; i++ {
		s, err := p.Open(context.Background(), Request{URL: srv.URL + "/v.mp4"})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		io.Copy(io.Discard, s.Body)
		s.Close()
	}
	if leaked.Load() {
		t.Error("cookie from the first download was sent on the second")
	}
}
