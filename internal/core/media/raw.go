package media

// RawResult is what a strategy adapter produces. It is either a Single (one
// deliverable, possibly in several quality variants) or a MultiItem (carousel
// slides, story items). Only the normalizer consumes it.
type RawResult interface {
	Metadata() Meta
	Viable() bool
	rawResult()
}

// Meta is the descriptive part shared by both raw result shapes
type Meta struct {
	Title     string
	Thumbnail string
	Uploader  string
	Duration  int // seconds
}

// Variant is one quality option of a single deliverable
type Variant struct {
	URL        string
	Ext        string
	FormatID   string
	Width      int
	Height     int
	Filesize   int64
	VideoCodec string

	// QualityNote is the adapter's human-readable quality ("HD", "HD (No Watermark)")
	QualityNote string
}

// Item is one element of a multi-item result
type Item struct {
	URL      string
	IsVideo  bool
	FormatID string
	Width    int
	Height   int
	Filesize int64

	// Label describes the item ("Slide 2 (Video)", capture timestamp)
	Label string
}

// Single is a one-deliverable raw result
type Single struct {
	Meta
	Variants []Variant
}

func (s *Single) Metadata() Meta { return s.Meta }
func (s *Single) rawResult()     {}

// Viable reports whether at least one variant carries a URL
func (s *Single) Viable() bool {
	for _, v := range s.Variants {
		if v.URL != "" {
			return true
		}
	}
	return false
}

// MultiItem is a carousel or story feed
type MultiItem struct {
	Meta
	Items []Item
}

func (m *MultiItem) Metadata() Meta { return m.Meta }
func (m *MultiItem) rawResult()     {}

// Viable reports whether at least one item carries a URL
func (m *MultiItem) Viable() bool {
	for _, it := range m.Items {
		if it.URL != "" {
			return true
		}
	}
	return false
}
