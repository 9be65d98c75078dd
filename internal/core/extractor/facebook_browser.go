package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/guiyumin/vresolve/internal/core/browser"
	"github.com/guiyumin/vresolve/internal/core/logging"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/registry"
	"github.com/sirupsen/logrus"
)

var errNoBrowser = errors.New("browser unavailable")

const (
	captureNavTimeout  = 5 * time.Second
	captureWait        = 3 * time.Second
	captureLoadTimeout = 3 * time.Second
)

// fbRenderedPatterns are scanned in the rendered DOM
var fbRenderedPatterns = patterns(
	`"playable_url":"([^"]+)"`,
	`"playable_url_quality_hd":"([^"]+)"`,
	`"browser_native_hd_url":"([^"]+)"`,
	`"browser_native_sd_url":"([^"]+)"`,
	`"video_url":"([^"]+)"`,
	`hd_src:"([^"]+)"`,
	`sd_src:"([^"]+)"`,
	`(https://video-[^"\s]+\.fbcdn\.net/[^"\s]+\.mp4[^"\s]*)`,
	`(https://[^"\s]+\.fbcdn\.net/v/[^"\s]+\.mp4[^"\s]*)`,
)

// isCaptureCandidate accepts complete fbcdn mp4 responses. Range requests
// (bytestart) are segments of a stream, not downloadable files.
func isCaptureCandidate(u string) bool {
	return containsAll(u, ".mp4", "fbcdn") && !strings.Contains(u, "bytestart")
}

func isRenderedVideoURL(u string) bool {
	return strings.Contains(u, "fbcdn") && (strings.Contains(u, ".mp4") || strings.Contains(strings.ToLower(u), "video"))
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func hdVideo(title, thumbnail, videoURL string) *media.Single {
	return &media.Single{
		Meta: media.Meta{Title: title, Thumbnail: thumbnail},
		Variants: []media.Variant{{
			URL:         videoURL,
			Ext:         "mp4",
			FormatID:    "hd",
			VideoCodec:  "h264",
			QualityNote: "HD",
		}},
	}
}

// FacebookCapture races page navigation against the first qualifying video
// response on the wire, then falls back to scanning whatever has loaded
type FacebookCapture struct {
	pool *browser.Pool
	log  *logrus.Entry
}

func NewFacebookCapture(pool *browser.Pool) *FacebookCapture {
	return &FacebookCapture{pool: pool, log: logging.For(registry.FacebookCapture)}
}

func (e *FacebookCapture) Name() string { return registry.FacebookCapture }

func (e *FacebookCapture) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	if e.pool == nil {
		return nil, errNoBrowser
	}
	sess, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Release()
	page := sess.Page

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return nil, fmt.Errorf("enable network events: %w", err)
	}

	found := make(chan string, 1)
	listenCtx, stopListening := context.WithCancel(ctx)
	defer stopListening()
	wait := page.Context(listenCtx).EachEvent(func(ev *proto.NetworkResponseReceived) {
		if isCaptureCandidate(ev.Response.URL) {
			select {
			case found <- ev.Response.URL:
			default:
			}
		}
	})
	go wait()

	navDone := make(chan error, 1)
	go func() {
		navCtx, cancel := context.WithTimeout(ctx, captureNavTimeout)
		defer cancel()
		navDone <- page.Context(navCtx).Navigate(target.URL)
	}()

	timer := time.NewTimer(captureWait)
	defer timer.Stop()

	select {
	case u := <-found:
		e.log.Debug("video captured from network")
		return hdVideo("", "", u), nil
	case err := <-navDone:
		if err != nil {
			e.log.WithError(err).Debug("navigation did not commit")
		}
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// a response may have landed while navigation finished
	select {
	case u := <-found:
		return hdVideo("", "", u), nil
	default:
	}

	loadCtx, cancel := context.WithTimeout(ctx, captureLoadTimeout)
	_ = page.Context(loadCtx).WaitLoad()
	cancel()

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	if u := scan(fbRenderedPatterns, html, isRenderedVideoURL); u != "" {
		return hdVideo("", "", u), nil
	}
	return nil, fmt.Errorf("no video URL found")
}

// FacebookRender loads the page fully, dismisses dialogs, pokes the player
// and reads the rendered DOM plus every video response seen
type FacebookRender struct {
	pool *browser.Pool
	log  *logrus.Entry
}

func NewFacebookRender(pool *browser.Pool) *FacebookRender {
	return &FacebookRender{pool: pool, log: logging.For(registry.FacebookRender)}
}

func (e *FacebookRender) Name() string { return registry.FacebookRender }

func (e *FacebookRender) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	if e.pool == nil {
		return nil, errNoBrowser
	}
	sess, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Release()
	page := sess.Page

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return nil, fmt.Errorf("enable network events: %w", err)
	}

	var (
		mu       sync.Mutex
		captured []string
	)
	listenCtx, stopListening := context.WithCancel(ctx)
	defer stopListening()
	wait := page.Context(listenCtx).EachEvent(func(ev *proto.NetworkResponseReceived) {
		if strings.Contains(ev.Response.MIMEType, "video") || strings.Contains(ev.Response.URL, ".mp4") {
			mu.Lock()
			captured = append(captured, ev.Response.URL)
			mu.Unlock()
		}
	})
	go wait()

	if err := page.Navigate(target.URL); err != nil {
		e.log.WithError(err).Warn("navigation warning")
	}
	_ = page.WaitLoad()
	if err := pause(ctx, 1500*time.Millisecond); err != nil {
		return nil, err
	}

	dismissPopups(ctx, page)
	clickVideo(ctx, page)

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	meta := readMeta(html)

	videoURL := scan(fbRenderedPatterns, html, isRenderedVideoURL)
	if videoURL == "" {
		mu.Lock()
		for _, u := range captured {
			if isRenderedVideoURL(u) {
				videoURL = u
				break
			}
		}
		mu.Unlock()
		if videoURL != "" {
			e.log.Debug("using captured network video URL")
		}
	}
	if videoURL == "" {
		videoURL = loadedResource(page, isCaptureCandidate)
	}
	if videoURL == "" {
		return nil, fmt.Errorf("could not extract video URL from rendered page")
	}

	return hdVideo(meta.Title, meta.Image, videoURL), nil
}

// loadedResource asks the Performance API for resources the page fetched
// outside our listener (service workers, early preloads)
func loadedResource(page *rod.Page, accept func(string) bool) string {
	res, err := page.Eval(`() => performance.getEntriesByType('resource').map(r => r.name)`)
	if err != nil {
		return ""
	}
	for _, v := range res.Value.Arr() {
		if u := v.String(); accept(u) {
			return u
		}
	}
	return ""
}

const popupSelector = `[aria-label="Close"], [aria-label="Decline optional cookies"]`

func dismissPopups(ctx context.Context, page *rod.Page) {
	if els, err := page.Elements(popupSelector); err == nil {
		for _, el := range els {
			_ = el.Timeout(time.Second).Click(proto.InputMouseButtonLeft, 1)
			_ = pause(ctx, 500*time.Millisecond)
		}
	}
	_, _ = page.Eval(`() => {
		for (const b of document.querySelectorAll('button, [role="button"]')) {
			if (b.innerText && b.innerText.trim() === 'Not now') b.click();
		}
	}`)
}

func clickVideo(ctx context.Context, page *rod.Page) {
	els, err := page.Elements(`video, [data-sigil*="video"], [aria-label*="video"]`)
	if err != nil || len(els) == 0 {
		return
	}
	if err := els.First().Timeout(time.Second).Click(proto.InputMouseButtonLeft, 1); err == nil {
		_ = pause(ctx, time.Second)
	}
}

// FacebookPhotoRender renders photo pages that only expose og:image after
// JavaScript runs (share links)
type FacebookPhotoRender struct {
	pool *browser.Pool
}

func NewFacebookPhotoRender(pool *browser.Pool) *FacebookPhotoRender {
	return &FacebookPhotoRender{pool: pool}
}

func (e *FacebookPhotoRender) Name() string { return registry.FacebookPhotoRender }

func (e *FacebookPhotoRender) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	if e.pool == nil {
		return nil, errNoBrowser
	}
	sess, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	if err := sess.Page.Navigate(target.URL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	_ = sess.Page.WaitLoad()
	if err := pause(ctx, time.Second); err != nil {
		return nil, err
	}

	html, err := sess.Page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	meta := readMeta(html)
	if meta.Image == "" {
		return nil, fmt.Errorf("no og:image on rendered photo page")
	}
	return photoResult(meta.Title, "Facebook Photo", meta.Image), nil
}
