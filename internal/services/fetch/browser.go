// -----------------------------------------------------------------------
// Browser engines - ordered chromedp launchers with capability fallback
// -----------------------------------------------------------------------

package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/ternarybob/tubescope/internal/common"
	"github.com/ternarybob/tubescope/internal/models"
)

// page is one live browser tab. The state machine drives this interface so it
// can be exercised with a fake in tests; chromedpPage is the real thing.
type page interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	VisibleText(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, js string, out interface{}) error
	SetCookies(ctx context.Context, cookies []models.SessionCookie) error
	Sleep(ctx context.Context, d time.Duration) error
}

// EngineLauncher is one browser engine candidate. Launchers are tried in
// order and the first successful launch wins; this is capability selection,
// not inheritance.
type EngineLauncher struct {
	Name   string
	Launch func(ctx context.Context) (page, func(), error)
}

// DefaultLaunchers returns the launcher order: the standard engine first,
// then a compatibility engine with the sandbox and GPU disabled for
// containerized and restricted environments.
func DefaultLaunchers(config common.BrowserConfig) []EngineLauncher {
	base := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(config.Width, config.Height),
		chromedp.UserAgent(config.UserAgent),
	}

	compat := append([]chromedp.ExecAllocatorOption{}, base...)
	compat = append(compat,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	return []EngineLauncher{
		newChromedpLauncher("chrome", base),
		newChromedpLauncher("chrome-compat", compat),
	}
}

func newChromedpLauncher(name string, extra []chromedp.ExecAllocatorOption) EngineLauncher {
	return EngineLauncher{
		Name: name,
		Launch: func(ctx context.Context) (page, func(), error) {
			opts := append(chromedp.DefaultExecAllocatorOptions[:], extra...)

			allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
			browserCtx, browserCancel := chromedp.NewContext(allocCtx)

			teardown := func() {
				browserCancel()
				allocCancel()
			}

			// Verify the engine actually starts before handing it out.
			probeCtx, probeCancel := context.WithTimeout(browserCtx, 15*time.Second)
			defer probeCancel()
			if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
				teardown()
				return nil, nil, fmt.Errorf("engine %s failed to start: %w", name, err)
			}

			return &chromedpPage{ctx: browserCtx}, teardown, nil
		},
	}
}

// chromedpPage implements page on a chromedp browser context.
type chromedpPage struct {
	ctx context.Context
}

// run executes chromedp actions on the tab context, honoring any deadline on
// the caller context.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := p.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(p.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromedpPage) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, chromedp.Location(&url))
	return url, err
}

func (p *chromedpPage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html))
	return html, err
}

func (p *chromedpPage) VisibleText(ctx context.Context) (string, error) {
	var text string
	err := p.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery))
	return text, err
}

func (p *chromedpPage) Evaluate(ctx context.Context, js string, out interface{}) error {
	return p.run(ctx, chromedp.Evaluate(js, out))
}

// SetCookies injects the session cookies into the browser before navigation.
func (p *chromedpPage) SetCookies(ctx context.Context, cookies []models.SessionCookie) error {
	return p.run(ctx, chromedp.ActionFunc(func(actionCtx context.Context) error {
		for _, c := range cookies {
			setter := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				setter = setter.WithExpires(&expires)
			}
			if err := setter.Do(actionCtx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

func (p *chromedpPage) Sleep(ctx context.Context, d time.Duration) error {
	return p.run(ctx, chromedp.Sleep(d))
}
