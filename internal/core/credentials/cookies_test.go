package credentials

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/guiyumin/vresolve/internal/core/media"
)

const sample = `# Netscape HTTP Cookie File
# This is a generated file! Do not edit.

.instagram.com	TRUE	/	TRUE	1999999999	sessionid	abc123
#HttpOnly_.instagram.com	TRUE	/	TRUE	1999999999	csrftoken	tok
.facebook.com	TRUE	/	TRUE	1999999999	c_user	42
www.tiktok.com	FALSE	/	FALSE	0	tt_webid	9
.example.com	TRUE	/	FALSE	0	other	x
`

func TestParse(t *testing.T) {
	bag, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		platform media.Platform
		name     string
		want     string
	}{
		{media.PlatformInstagram, "sessionid", "abc123"},
		{media.PlatformInstagram, "csrftoken", "tok"},
		{media.PlatformFacebook, "c_user", "42"},
		{media.PlatformTikTok, "tt_webid", "9"},
	}
	for _, tt := range tests {
		if got := bag.Cookies(tt.platform)[tt.name]; got != tt.want {
			t.Errorf("Cookies(%s)[%s] = %q; want %q", tt.platform, tt.name, got, tt.want)
		}
	}

	if len(bag.Cookies(media.PlatformPinterest)) != 0 {
		t.Error("pinterest should have no cookies")
	}
	if !bag.Has(media.PlatformInstagram, "sessionid") {
		t.Error("Has(instagram, sessionid) = false")
	}
}

func TestParseRejectsShortLines(t *testing.T) {
	if _, err := Parse(strings.NewReader(".instagram.com\tTRUE\t/\n")); err == nil {
		t.Error("expected error for malformed line")
	}
}

func TestLoadFileMissing(t *testing.T) {
	bag, err := LoadFile(filepath.Join(t.TempDir(), "nope.txt"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(bag.Cookies(media.PlatformInstagram)) != 0 {
		t.Error("missing file should give an empty bag")
	}
}

func TestCookiesReturnsCopy(t *testing.T) {
	bag, _ := Parse(strings.NewReader(sample))
	c := bag.Cookies(media.PlatformFacebook)
	c["c_user"] = "tampered"
	if bag.Cookies(media.PlatformFacebook)["c_user"] != "42" {
		t.Error("Cookies() must not expose internal state")
	}
}
