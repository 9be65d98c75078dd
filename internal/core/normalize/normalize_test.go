package normalize

import (
	"testing"

	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/registry"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
)

func exts(b *media.MediaBundle) []string {
	return lo.Map(b.Assets, func(a media.MediaAsset, _ int) string { return a.Ext })
}

func qualities(b *media.MediaBundle) []string {
	return lo.Map(b.Assets, func(a media.MediaAsset, _ int) string { return a.Quality })
}

var (
	keepAll  = registry.Policy{DefaultTitle: "Instagram Media", DefaultUploader: "Instagram"}
	collapse = registry.Policy{CollapseSingle: true, DefaultTitle: "TikTok Video", DefaultUploader: "TikTok"}
)

func TestNormalizeSingle(t *testing.T) {
	Convey("Given a single result with several variants", t, func() {
		raw := &media.Single{
			Meta: media.Meta{Title: "clip"},
			Variants: []media.Variant{
				{URL: "https://v/a.mp4", Ext: "mp4", QualityNote: "HD"},
				{URL: "https://v/720.mp4", Ext: "mp4", Height: 720, Filesize: 3 * 1024 * 1024},
				{URL: "https://v/b.mp4", Ext: "mp4", QualityNote: "HD"},
				{URL: "https://v/1080.mp4", Ext: "mp4", Height: 1080},
				{URL: "", Ext: "mp4", Height: 2160},
				{URL: "https://v/sd.mp4", Ext: "mp4", QualityNote: "SD"},
			},
		}

		Convey("duplicates by quality and ext keep the first occurrence", func() {
			b := Normalize(raw, keepAll)
			hd := lo.Filter(b.Assets, func(a media.MediaAsset, _ int) bool { return a.Quality == "HD" })
			So(hd, ShouldHaveLength, 1)
			So(hd[0].URL, ShouldEqual, "https://v/a.mp4")
		})

		Convey("assets are ordered by height, unknown heights last in reported order", func() {
			b := Normalize(raw, keepAll)
			So(qualities(b), ShouldResemble, []string{"1080p", "720p", "HD", "SD"})
			So(b.Assets[1].FilesizeMB, ShouldEqual, 3.0)
		})

		Convey("a collapsing policy keeps only the best asset", func() {
			b := Normalize(raw, collapse)
			So(b.Assets, ShouldHaveLength, 1)
			So(b.Assets[0].Quality, ShouldEqual, "1080p")
			So(b.IsCarousel, ShouldBeFalse)
		})

		Convey("a video asset never becomes the thumbnail", func() {
			b := Normalize(raw, keepAll)
			So(b.Thumbnail, ShouldBeEmpty)
		})
	})

	Convey("Given a single photo without metadata", t, func() {
		raw := &media.Single{Variants: []media.Variant{{URL: "https://i/p.jpg", Ext: "jpg"}}}
		b := Normalize(raw, collapse)

		Convey("placeholders and the image thumbnail are filled in", func() {
			So(b.Status, ShouldEqual, media.StatusSuccess)
			So(b.Title, ShouldEqual, "TikTok Video")
			So(b.Uploader, ShouldEqual, "TikTok")
			So(b.Thumbnail, ShouldEqual, "https://i/p.jpg")
			So(b.Assets[0].Quality, ShouldEqual, "Unknown")
		})
	})
}

func TestNormalizeMultiItem(t *testing.T) {
	Convey("Given a carousel of image, video, image", t, func() {
		raw := &media.MultiItem{
			Meta: media.Meta{Title: "beach", Uploader: "alice"},
			Items: []media.Item{
				{URL: "https://c/1.jpg", Label: "Slide 1 (Image)"},
				{URL: "https://c/2.mp4", IsVideo: true, Height: 1280, Label: "Slide 2 (Video)"},
				{URL: "https://c/3.jpg", Label: "Slide 3 (Image)"},
			},
		}

		Convey("every item passes through in order, even under a collapsing policy", func() {
			for _, policy := range []registry.Policy{keepAll, collapse} {
				b := Normalize(raw, policy)
				So(b.IsCarousel, ShouldBeTrue)
				So(exts(b), ShouldResemble, []string{"jpg", "mp4", "jpg"})
			}
		})

		Convey("item labels become notes", func() {
			b := Normalize(raw, keepAll)
			So(b.Assets[1].Note, ShouldEqual, "Slide 2 (Video)")
			So(b.Assets[1].Quality, ShouldEqual, "1280p")
			So(b.Assets[0].Quality, ShouldEqual, "Original")
			So(b.Thumbnail, ShouldEqual, "https://c/1.jpg")
			So(b.Uploader, ShouldEqual, "alice")
		})
	})
}

func TestNormalizeWithoutAssets(t *testing.T) {
	Convey("Results without any usable URL are never reported as success", t, func() {
		cases := []struct {
			name string
			raw  media.RawResult
		}{
			{"nil result", nil},
			{"single with empty URL", &media.Single{Variants: []media.Variant{{Ext: "mp4", Height: 720}}}},
			{"carousel without URLs", &media.MultiItem{Items: []media.Item{{IsVideo: true}, {}}}},
		}
		for _, tc := range cases {
			raw := tc.raw
			Convey(tc.name, func() {
				b := Normalize(raw, keepAll)
				So(b.Status, ShouldEqual, media.StatusError)
				So(b.Assets, ShouldBeEmpty)
				So(b.Assets, ShouldNotBeNil)
				So(b.Title, ShouldEqual, "Instagram Media")
			})
		}
	})
}
