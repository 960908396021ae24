// Package cdp implements browser.Client on top of chromedp.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	cdptypes "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/browser"
	"github.com/xkilldash9x/challan-cli/internal/browser/stealth"
	"github.com/xkilldash9x/challan-cli/internal/config"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("cdp: browser closed")

// Client drives a single Chrome tab.
type Client struct {
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ browser.Client = (*Client)(nil)

// NewClient launches Chrome, applies the stealth persona and routes downloads
// into cfg.DownloadDir. ctx bounds the startup only; the browser lives until Close.
func NewClient(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Client, error) {
	logger = logger.Named("cdp")
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), AllocatorOptions(cfg)...)

	sugar := logger.Sugar()
	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	}
	if cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(sugar.Debugf))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	c := &Client{
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}

	// The first Run starts the browser and must use the browser context itself.
	if err := chromedp.Run(browserCtx); err != nil {
		c.shutdown()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	setup := chromedp.Tasks{
		stealth.Apply(stealth.PersonaFromConfig(cfg), logger),
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(cfg.DownloadDir).
			WithEventsEnabled(true),
	}
	if err := c.run(ctx, setup); err != nil {
		c.shutdown()
		return nil, fmt.Errorf("configure browser: %w", err)
	}

	logger.Info("Browser started.",
		zap.Bool("headless", cfg.Headless),
		zap.String("download_dir", cfg.DownloadDir))
	return c, nil
}

func (c *Client) run(ctx context.Context, actions ...chromedp.Action) error {
	if c.closed.Load() {
		return ErrClosed
	}
	runCtx, cancel := CombineContext(c.browserCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (c *Client) element(ctx context.Context, op string, loc browser.Locator, body string) (elementResult, error) {
	var res elementResult
	if err := c.run(ctx, chromedp.Evaluate(elementScript(loc.XPath, body), &res)); err != nil {
		return res, fmt.Errorf("%s %s: %w", op, loc, err)
	}
	return res, nil
}

func (c *Client) act(ctx context.Context, op string, loc browser.Locator, body string) error {
	res, err := c.element(ctx, op, loc, body)
	if err != nil {
		return err
	}
	if !res.Found {
		return fmt.Errorf("%s %s: %w", op, loc, browser.ErrNotFound)
	}
	return nil
}

func (c *Client) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (c *Client) Reload(ctx context.Context) error {
	return c.run(ctx, chromedp.Reload())
}

func (c *Client) ReadyState(ctx context.Context) (string, error) {
	var state string
	if err := c.run(ctx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
		return "", err
	}
	return state, nil
}

func (c *Client) Inspect(ctx context.Context, loc browser.Locator) (browser.ElementState, error) {
	res, err := c.element(ctx, "inspect", loc, inspectBody)
	if err != nil {
		return browser.ElementState{}, err
	}
	return res.state(), nil
}

func (c *Client) Click(ctx context.Context, loc browser.Locator) error {
	return c.act(ctx, "click", loc, clickBody)
}

func (c *Client) SetValue(ctx context.Context, loc browser.Locator, value string) error {
	return c.act(ctx, "set value", loc, setValueBody(value))
}

func (c *Client) Clear(ctx context.Context, loc browser.Locator) error {
	return c.act(ctx, "clear", loc, clearBody)
}

// SendKeys focuses loc and types text as real key events.
func (c *Client) SendKeys(ctx context.Context, loc browser.Locator, text string) error {
	if err := c.act(ctx, "focus", loc, focusBody); err != nil {
		return err
	}
	if err := c.run(ctx, chromedp.KeyEvent(text)); err != nil {
		return fmt.Errorf("send keys to %s: %w", loc, err)
	}
	return nil
}

func (c *Client) ScrollIntoView(ctx context.Context, loc browser.Locator) error {
	return c.act(ctx, "scroll", loc, scrollBody)
}

func (c *Client) MouseMove(ctx context.Context, x, y float64) error {
	return c.run(ctx, input.DispatchMouseEvent(input.MouseMoved, x, y))
}

func (c *Client) Execute(ctx context.Context, script string, res interface{}) error {
	return c.run(ctx, chromedp.Evaluate(script, res))
}

func (c *Client) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	var raw []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return fromNetworkCookies(raw), nil
}

func (c *Client) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	if err := c.run(ctx, network.SetCookies(toCookieParams(cookies))); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

func (c *Client) PageSource(ctx context.Context) (string, error) {
	var src string
	if err := c.run(ctx, chromedp.OuterHTML("html", &src, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("page source: %w", err)
	}
	return src, nil
}

// Close shuts the browser down gracefully, giving up after ctx expires.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(c.browserCtx) }()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				c.closeErr = fmt.Errorf("close browser: %w", err)
			}
		case <-ctx.Done():
			c.closeErr = fmt.Errorf("close browser: %w", ctx.Err())
		}
		c.shutdown()
		c.logger.Debug("Browser closed.")
	})
	return c.closeErr
}

func (c *Client) shutdown() {
	c.browserCancel()
	c.allocCancel()
}

func fromNetworkCookies(raw []*network.Cookie) []browser.Cookie {
	out := make([]browser.Cookie, 0, len(raw))
	for _, rc := range raw {
		if rc == nil {
			continue
		}
		out = append(out, browser.Cookie{
			Name:     rc.Name,
			Value:    rc.Value,
			Domain:   rc.Domain,
			Path:     rc.Path,
			Expires:  rc.Expires,
			HTTPOnly: rc.HTTPOnly,
			Secure:   rc.Secure,
			Session:  rc.Session,
			SameSite: rc.SameSite.String(),
		})
	}
	return out
}

func toCookieParams(cookies []browser.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, ck := range cookies {
		p := &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HTTPOnly,
		}
		if ck.SameSite != "" {
			p.SameSite = network.CookieSameSite(ck.SameSite)
		}
		if !ck.Session && ck.Expires > 0 {
			sec, frac := math.Modf(ck.Expires)
			t := cdptypes.TimeSinceEpoch(time.Unix(int64(sec), int64(frac*1e9)))
			p.Expires = &t
		}
		params = append(params, p)
	}
	return params
}
