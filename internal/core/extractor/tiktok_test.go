package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/guiyumin/vresolve/internal/core/media"
)

const ssstikFragment = `<div>
	<img class="result_author" src="https://p16.tiktokcdn.com/avatar.jpg">
	<h2>creator</h2>
	<p class="maintext">dance #fyp</p>
	<a href="https://tikcdn.io/ssstik/mp3/1" class="download_link music">Download MP3</a>
	<a href="https://tikcdn.io/ssstik/1" class="download_link without_watermark">Without watermark</a>
</div>`

func TestParseSSSTik(t *testing.T) {
	raw, err := parseSSSTik(ssstikFragment)
	if err != nil {
		t.Fatalf("parseSSSTik() error = %v", err)
	}
	s := raw.(*media.Single)
	if s.Uploader != "creator" || s.Title != "dance #fyp" || s.Thumbnail != "https://p16.tiktokcdn.com/avatar.jpg" {
		t.Errorf("meta = %+v", s.Meta)
	}
	if s.Variants[0].URL != "https://tikcdn.io/ssstik/1" {
		t.Errorf("URL = %q", s.Variants[0].URL)
	}

	if _, err := parseSSSTik(`<div>Error: video not found</div>`); err == nil {
		t.Error("fragment without links should fail")
	}
}

func TestSSSTikToken(t *testing.T) {
	tests := []struct {
		html string
		want string
	}{
		{`<script>s_tt = 'abc123'</script>`, "abc123"},
		{`<form><input name="tt" value="xyz"></form>`, "xyz"},
		{`<html></html>`, "0"},
	}
	for _, tt := range tests {
		if got := ssstikToken(tt.html); got != tt.want {
			t.Errorf("ssstikToken() = %q, want %q", got, tt.want)
		}
	}
}

func TestSSSTikAttempt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/en", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<script>s_tt = 'tok'</script>`))
	})
	mux.HandleFunc("/abc", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.FormValue("tt") != "tok" || r.Header.Get("Hx-Request") != "true" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Write([]byte(ssstikFragment))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewSSSTik(testClient(t))
	e.baseURL = srv.URL

	raw, err := e.Attempt(context.Background(), media.Target{URL: "https://www.tiktok.com/@u/video/1"})
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if !raw.Viable() {
		t.Error("result should be viable")
	}
}

func TestParseTikWM(t *testing.T) {
	t.Run("video", func(t *testing.T) {
		body := `{"code":0,"data":{"title":"clip","cover":"/cover.jpg","duration":12,"hdplay":"/hd.mp4","hd_size":2048,"author":{"nickname":"nick"}}}`
		raw, err := parseTikWM([]byte(body), "https://tikwm.test")
		if err != nil {
			t.Fatal(err)
		}
		s := raw.(*media.Single)
		if s.Thumbnail != "https://tikwm.test/cover.jpg" || s.Duration != 12 || s.Uploader != "nick" {
			t.Errorf("meta = %+v", s.Meta)
		}
		if s.Variants[0].URL != "https://tikwm.test/hd.mp4" || s.Variants[0].Filesize != 2048 {
			t.Errorf("variant = %+v", s.Variants[0])
		}
	})

	t.Run("photos", func(t *testing.T) {
		body := `{"code":0,"data":{"images":["https://a/1.jpg","https://a/2.jpg"]}}`
		raw, err := parseTikWM([]byte(body), "")
		if err != nil {
			t.Fatal(err)
		}
		m := raw.(*media.MultiItem)
		if len(m.Items) != 2 || m.Items[1].Label != "Photo 2" || m.Items[0].IsVideo {
			t.Errorf("items = %+v", m.Items)
		}
	})

	t.Run("api error", func(t *testing.T) {
		if _, err := parseTikWM([]byte(`{"code":-1,"msg":"Url parsing is failed!"}`), ""); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("not json", func(t *testing.T) {
		if _, err := parseTikWM([]byte(`<html>`), ""); err == nil {
			t.Error("expected error")
		}
	})
}

func TestTikWMAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/" || r.FormValue("hd") != "1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"code":0,"data":{"play":"https://v.example/p.mp4"}}`))
	}))
	defer srv.Close()

	e := NewTikWM(testClient(t))
	e.baseURL = srv.URL

	raw, err := e.Attempt(context.Background(), media.Target{URL: "https://vm.tiktok.com/x"})
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if got := raw.(*media.Single).Variants[0].URL; got != "https://v.example/p.mp4" {
		t.Errorf("URL = %q", got)
	}
}
