package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// browserProvider drives a headless Chromium via go-rod to render pages
// that the HTTP providers can't (JS-rendered listing sites). Provider C
// launches a local binary; Provider D connects to a remote endpoint —
// both share the render logic, differing only in how the browser is
// obtained.
type browserProvider struct {
	name    string
	timeout time.Duration
	connect func(context.Context) (*rod.Browser, func(), error)
}

func (p *browserProvider) Name() string { return p.name }

func (p *browserProvider) Fetch(ctx context.Context, sourceURL string) (FetchResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	browser, cleanup, err := p.connect(ctx)
	if err != nil {
		return FetchResult{}, fmt.Errorf("%s: connect: %w", p.name, err)
	}
	defer cleanup()

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: sourceURL})
	if err != nil {
		return FetchResult{}, fmt.Errorf("%s: open page: %w", p.name, err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return FetchResult{}, fmt.Errorf("%s: wait load: %w", p.name, err)
	}

	html, err := page.HTML()
	if err != nil {
		return FetchResult{}, fmt.Errorf("%s: read dom: %w", p.name, err)
	}

	return FetchResult{HTML: html, Cost: time.Since(start)}, nil
}

// NewProviderC launches a local headless Chromium instance — tried
// after both HTTP providers have failed (spec.md §4.4, 60s timeout).
func NewProviderC() Provider {
	return &browserProvider{
		name:    "provider-c",
		timeout: 60 * time.Second,
		connect: func(ctx context.Context) (*rod.Browser, func(), error) {
			url, err := launcher.New().Headless(true).Launch()
			if err != nil {
				return nil, func() {}, err
			}
			browser := rod.New().ControlURL(url)
			if err := browser.Connect(); err != nil {
				return nil, func() {}, err
			}
			return browser, func() { _ = browser.Close() }, nil
		},
	}
}

// NewProviderD connects to a remote browser pool — the last resort in
// the fallback chain when no local Chromium is available.
func NewProviderD(remoteControlURL string) Provider {
	return &browserProvider{
		name:    "provider-d",
		timeout: 60 * time.Second,
		connect: func(ctx context.Context) (*rod.Browser, func(), error) {
			browser := rod.New().ControlURL(remoteControlURL)
			if err := browser.Connect(); err != nil {
				return nil, func() {}, err
			}
			return browser, func() { _ = browser.Close() }, nil
		},
	}
}
