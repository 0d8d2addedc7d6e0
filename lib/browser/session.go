package browser

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

type SessionOptions struct {
	// ProfileDir is the user-data directory the browser is launched with.
	// It is exclusively owned by the session until Close.
	ProfileDir string
	// Headless defaults to false: the whole point of a persistent profile
	// is letting a human complete a login in a visible window.
	Headless bool
}

// Session owns one persistent browser context and the single tab every
// scraping step runs in serially.
type Session struct {
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context
}

func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(opts.ProfileDir),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
		tab:         tab,
	}

	// hide the webdriver flag before any page script runs
	err := chromedp.Run(tab, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := cdppage.AddScriptToEvaluateOnNewDocument(
			`Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`,
		).Do(ctx)
		return err
	}))
	if err != nil {
		s.Close()
		return nil, err
	}

	slog.Debug("browser session started", "profile_dir", opts.ProfileDir)
	return s, nil
}

func (s *Session) Close() {
	s.tabCancel()
	s.allocCancel()
}

// run executes driver actions against the tab context while honoring the
// caller's deadline.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if deadline, ok := ctx.Deadline(); ok {
		tctx, cancel := context.WithDeadline(s.tab, deadline)
		defer cancel()
		return chromedp.Run(tctx, actions...)
	}
	return chromedp.Run(s.tab, actions...)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.run(tctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	var sink json.RawMessage
	if out == nil {
		out = &sink
	}
	return s.run(ctx, chromedp.Evaluate(
		expression, out,
		func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
			return p.WithAwaitPromise(true)
		},
	))
}

func (s *Session) OuterHTML(ctx context.Context, selector string) (string, error) {
	var out string
	err := s.run(ctx, chromedp.OuterHTML(selector, &out, chromedp.ByQuery))
	return out, err
}

func (s *Session) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var out []*http.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			out = append(out, &http.Cookie{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
			})
		}
		return nil
	}))
	return out, err
}
