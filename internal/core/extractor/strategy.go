// Package extractor holds the strategy adapters: each one knows a single way
// of turning a classified URL into a raw media result.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/guiyumin/vresolve/internal/core/browser"
	"github.com/guiyumin/vresolve/internal/core/credentials"
	"github.com/guiyumin/vresolve/internal/core/httpclient"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/registry"
)

// ErrLoginRequired means the platform refused anonymous access
var ErrLoginRequired = errors.New("login required")

// Strategy is one extraction approach
type Strategy interface {
	// Name matches the registry descriptor name (e.g., "tikwm")
	Name() string

	// Attempt extracts media for target. Implementations should honour ctx,
	// but the resolver enforces the deadline either way.
	Attempt(ctx context.Context, target media.Target) (media.RawResult, error)
}

// Func adapts a function to the Strategy interface
type Func struct {
	ID string
	Fn func(ctx context.Context, target media.Target) (media.RawResult, error)
}

func (f Func) Name() string { return f.ID }

func (f Func) Attempt(ctx context.Context, target media.Target) (media.RawResult, error) {
	return f.Fn(ctx, target)
}

// Deps are the capabilities adapters may use
type Deps struct {
	HTTP    *httpclient.Client
	Browser *browser.Pool
	Cookies *credentials.Bag

	// YtDlpPath is the yt-dlp executable ("yt-dlp" on PATH if empty)
	YtDlpPath string

	// CookiesFile is handed to yt-dlp as --cookies when it exists
	CookiesFile string
}

// Set indexes strategies by name
type Set map[string]Strategy

// Add registers s, replacing any strategy with the same name
func (s Set) Add(strategies ...Strategy) Set {
	for _, st := range strategies {
		s[st.Name()] = st
	}
	return s
}

// Get returns the strategy named name
func (s Set) Get(name string) (Strategy, error) {
	st, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("no strategy registered as %q", name)
	}
	return st, nil
}

// Names returns the registered names, sorted
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Defaults builds every built-in adapter over deps
func Defaults(deps Deps) Set {
	cookies := deps.Cookies
	if cookies == nil {
		cookies = credentials.Empty()
	}

	return Set{}.Add(
		NewFacebookCapture(deps.Browser),
		NewFacebookRender(deps.Browser),
		NewFacebookHTML(deps.HTTP, cookies),
		NewFacebookPhotoHTML(deps.HTTP, cookies),
		NewFacebookPhotoRender(deps.Browser),
		NewFacebookProfileHTML(deps.HTTP, cookies),
		NewInstagramGraph(deps.HTTP, cookies),
		NewInstagramStories(deps.HTTP, cookies),
		NewInstagramProfile(deps.HTTP, cookies),
		NewSSSTik(deps.HTTP),
		NewTikWM(deps.HTTP),
		NewPinterestHTML(deps.HTTP),
		NewYtDlp(deps.YtDlpPath, deps.CookiesFile),
	)
}

// Check reports registry descriptors that have no adapter in s
func (s Set) Check(reg *registry.Registry) error {
	var missing []string
	for _, name := range reg.Names() {
		if _, ok := s[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("strategies without adapter: %v", missing)
	}
	return nil
}
