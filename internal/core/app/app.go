// Package app assembles the engine, proxy and shared capabilities from a
// config. The CLI and the standalone server both start here.
package app

import (
	"fmt"

	"github.com/guiyumin/vresolve/internal/core/browser"
	"github.com/guiyumin/vresolve/internal/core/classify"
	"github.com/guiyumin/vresolve/internal/core/config"
	"github.com/guiyumin/vresolve/internal/core/credentials"
	"github.com/guiyumin/vresolve/internal/core/extractor"
	"github.com/guiyumin/vresolve/internal/core/httpclient"
	"github.com/guiyumin/vresolve/internal/core/logging"
	"github.com/guiyumin/vresolve/internal/core/proxy"
	"github.com/guiyumin/vresolve/internal/core/registry"
	"github.com/guiyumin/vresolve/internal/core/resolver"
	"github.com/guiyumin/vresolve/internal/core/workpool"
)

// App owns every long-lived resource. Close releases them.
type App struct {
	Config   *config.Config
	Engine   *resolver.Engine
	Proxy    *proxy.Proxy
	Registry *registry.Registry

	browser *browser.Pool
	pool    *workpool.Pool
}

// New builds an App. Strategy overrides are read from strategies.yml when
// one exists.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := logging.For("app")

	client, err := httpclient.New(httpclient.Options{
		Timeout:        cfg.HTTP.Timeout,
		Retries:        cfg.HTTP.Retries,
		TLSFingerprint: cfg.HTTP.TLSFingerprint,
	})
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}

	cookies, err := credentials.LoadFile(cfg.CookiesFile)
	if err != nil {
		log.WithError(err).Warn("ignoring unreadable cookies file")
		cookies = credentials.Empty()
	}

	strategiesCfg, err := config.LoadStrategies(config.StrategiesPath())
	if err != nil {
		return nil, err
	}
	reg, err := registry.FromConfig(strategiesCfg)
	if err != nil {
		return nil, fmt.Errorf("strategies: %w", err)
	}

	browserPool := browser.NewPool(browser.OptionsFromConfig(cfg.Browser))
	strategies := extractor.Defaults(extractor.Deps{
		HTTP:        client,
		Browser:     browserPool,
		Cookies:     cookies,
		YtDlpPath:   cfg.YtDlpPath,
		CookiesFile: cfg.CookiesFile,
	})
	if err := strategies.Check(reg); err != nil {
		return nil, err
	}

	pool := workpool.New(cfg.Resolver.Workers, cfg.Resolver.Workers*4)
	pool.Start()

	engine := resolver.New(
		classify.New(client, cfg.Resolver.ShareTimeout),
		reg,
		strategies,
		pool,
		resolver.Options{RequestTimeout: cfg.Resolver.RequestTimeout},
	)

	return &App{
		Config:   cfg,
		Engine:   engine,
		Proxy:    proxy.FromHTTPClient(client),
		Registry: reg,
		browser:  browserPool,
		pool:     pool,
	}, nil
}

// Close stops the workers and the shared browser
func (a *App) Close() error {
	a.pool.Stop()
	return a.browser.Close()
}
