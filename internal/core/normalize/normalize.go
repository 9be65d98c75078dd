// Package normalize turns an adapter's raw result into the canonical bundle
// returned to callers.
package normalize

import (
	"sort"
	"strings"

	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/registry"
	"github.com/samber/lo"
)

// Normalize builds a MediaBundle from raw under the platform policy. A raw
// result without any usable URL yields an error-status bundle with no assets.
func Normalize(raw media.RawResult, policy registry.Policy) *media.MediaBundle {
	var (
		assets   []media.MediaAsset
		carousel bool
	)

	switch r := raw.(type) {
	case *media.MultiItem:
		assets = fromItems(r.Items)
		carousel = true
	case *media.Single:
		assets = fromVariants(r.Variants)
		if policy.CollapseSingle && len(assets) > 1 {
			assets = assets[:1]
		}
	}

	var meta media.Meta
	if raw != nil {
		meta = raw.Metadata()
	}

	bundle := &media.MediaBundle{
		Status:     media.StatusSuccess,
		Title:      orDefault(meta.Title, policy.DefaultTitle),
		Thumbnail:  meta.Thumbnail,
		Duration:   meta.Duration,
		Uploader:   orDefault(meta.Uploader, policy.DefaultUploader),
		IsCarousel: carousel,
		Assets:     assets,
	}
	if len(bundle.Assets) == 0 {
		bundle.Status = media.StatusError
		bundle.Assets = []media.MediaAsset{}
	}

	// only a still image makes a usable thumbnail
	if bundle.Thumbnail == "" && len(assets) > 0 && assets[0].IsImage() {
		bundle.Thumbnail = assets[0].URL
	}

	return bundle
}

func fromItems(items []media.Item) []media.MediaAsset {
	items = lo.Filter(items, func(it media.Item, _ int) bool { return it.URL != "" })

	return lo.Map(items, func(it media.Item, _ int) media.MediaAsset {
		ext := "jpg"
		if it.IsVideo {
			ext = "mp4"
		}
		return media.MediaAsset{
			Quality:    media.QualityLabel(it.Height, "Original"),
			Ext:        ext,
			URL:        it.URL,
			FormatID:   it.FormatID,
			Width:      it.Width,
			Height:     it.Height,
			Filesize:   it.Filesize,
			FilesizeMB: media.FilesizeMB(it.Filesize),
			Note:       it.Label,
		}
	})
}

func fromVariants(variants []media.Variant) []media.MediaAsset {
	assets := lo.FilterMap(variants, func(v media.Variant, _ int) (media.MediaAsset, bool) {
		if v.URL == "" {
			return media.MediaAsset{}, false
		}
		return media.MediaAsset{
			Quality:    media.QualityLabel(v.Height, v.QualityNote),
			Ext:        strings.ToLower(strings.TrimPrefix(v.Ext, ".")),
			URL:        v.URL,
			FormatID:   v.FormatID,
			Width:      v.Width,
			Height:     v.Height,
			Filesize:   v.Filesize,
			FilesizeMB: media.FilesizeMB(v.Filesize),
			VideoCodec: v.VideoCodec,
			Note:       v.QualityNote,
		}, true
	})

	// first occurrence of a (quality, ext) pair wins
	assets = lo.UniqBy(assets, media.MediaAsset.Key)

	// unknown heights keep their reported order behind the known ones
	sort.SliceStable(assets, func(i, j int) bool {
		hi, hj := assets[i].Height, assets[j].Height
		if hi == 0 || hj == 0 {
			return hi != 0 && hj == 0
		}
		return hi > hj
	})

	return assets
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
