// Package browser shares one headless Chrome between all browser-backed
// strategies. Each request gets its own incognito context.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/guiyumin/vresolve/internal/core/config"
	"github.com/guiyumin/vresolve/internal/core/httpclient"
	"github.com/guiyumin/vresolve/internal/core/logging"
	"github.com/sirupsen/logrus"
)

// Options configures the launched browser
type Options struct {
	Headless    bool
	Bin         string
	UserDataDir string
}

// OptionsFromConfig maps the browser section of the config file
func OptionsFromConfig(cfg config.BrowserConfig) Options {
	return Options{
		Headless:    cfg.IsHeadless(),
		Bin:         cfg.Bin,
		UserDataDir: cfg.UserDataDir,
	}
}

type launchFunc func(ctx context.Context) (b *rod.Browser, cleanup func(), err error)

// Pool lazily launches a single browser and relaunches it when the
// connection is lost
type Pool struct {
	opts Options
	log  *logrus.Entry

	mu      sync.Mutex
	browser *rod.Browser
	cleanup func()
	closed  bool

	launch launchFunc
	check  func(*rod.Browser) bool
}

// NewPool creates a pool. No browser is started until the first Acquire.
func NewPool(opts Options) *Pool {
	p := &Pool{
		opts:  opts,
		log:   logging.For("browser"),
		check: alive,
	}
	p.launch = p.launchChrome
	return p
}

// Acquire returns a fresh incognito session with a stealth page bound to ctx.
// The caller must Release it.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	b, err := p.get(ctx)
	if err != nil {
		return nil, err
	}

	incognito, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("create incognito context: %w", err)
	}

	page, err := stealth.Page(incognito)
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	return &Session{
		Page:    page.Context(ctx),
		context: incognito,
		log:     p.log,
	}, nil
}

// get returns the live browser, launching or relaunching under the lock so
// concurrent first use starts exactly one process
func (p *Pool) get(ctx context.Context) (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("browser pool is closed")
	}

	if p.browser != nil {
		if p.check(p.browser) {
			return p.browser, nil
		}
		p.log.Warn("browser connection lost, relaunching")
		p.shutdown()
	}

	b, cleanup, err := p.launch(ctx)
	if err != nil {
		return nil, err
	}
	p.browser = b
	p.cleanup = cleanup
	return b, nil
}

// Close shuts the browser down. Later Acquire calls fail.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.shutdown()
	return nil
}

func (p *Pool) shutdown() {
	if p.browser == nil {
		return
	}
	if p.cleanup != nil {
		p.cleanup()
	}
	p.browser = nil
	p.cleanup = nil
}

func alive(b *rod.Browser) bool {
	_, err := proto.BrowserGetVersion{}.Call(b)
	return err == nil
}

func (p *Pool) launchChrome(ctx context.Context) (*rod.Browser, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	l := p.newLauncher()

	controlURL, err := l.Launch()
	if err != nil {
		l.Cleanup()
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	// not bound to ctx: the browser outlives the request that launched it
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	p.log.WithField("headless", p.opts.Headless).Info("browser launched")

	cleanup := func() {
		if err := b.Close(); err != nil {
			p.log.WithError(err).Debug("browser close failed")
		}
		l.Kill()
		l.Cleanup()
	}
	return b, cleanup, nil
}

func (p *Pool) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(p.opts.Headless).
		UserDataDir(p.userDataDir()).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-software-rasterizer").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-sync").
		Set("disable-translate").
		Set("no-first-run").
		Set("mute-audio").
		Set("safebrowsing-disable-auto-update").
		Set("window-size", "1920,1080").
		Set("user-agent", httpclient.UserAgent)

	// ROD_BROWSER is set in Docker images
	bin := p.opts.Bin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	return l
}

func (p *Pool) userDataDir() string {
	if p.opts.UserDataDir != "" {
		return p.opts.UserDataDir
	}
	configDir, err := config.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vresolve-browser")
	}
	return filepath.Join(configDir, "browser")
}

// Session is one incognito browser context with a single page
type Session struct {
	Page *rod.Page

	context *rod.Browser
	once    sync.Once
	log     *logrus.Entry
}

// Release disposes the incognito context and its page. Safe to call more
// than once; failures are logged and otherwise ignored.
func (s *Session) Release() {
	s.once.Do(func() {
		if s.context == nil {
			return
		}
		if err := s.context.Close(); err != nil {
			s.log.WithError(err).Debug("incognito context close failed")
		}
	})
}
