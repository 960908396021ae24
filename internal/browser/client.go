// Package browser defines the automation surface the portal flows are written
// against. The production implementation lives in internal/browser/cdp and an
// in-memory fake in internal/browser/browsertest.
package browser

import (
	"context"
	"errors"
)

// ErrNotFound is returned by element operations when the locator resolves to nothing.
var ErrNotFound = errors.New("browser: element not found")

// Cookie is one entry of the portal's cookie jar.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	Session  bool    `json:"session,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Client is a single browser tab. All methods block until the underlying
// operation completes or ctx is done.
type Client interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	// ReadyState returns document.readyState.
	ReadyState(ctx context.Context) (string, error)

	// Inspect resolves loc once. A missing element is not an error: the
	// returned state simply has Found == false.
	Inspect(ctx context.Context, loc Locator) (ElementState, error)
	// Click invokes element.click() from script, bypassing hit testing, so it
	// still lands when an overlay covers the element.
	Click(ctx context.Context, loc Locator) error
	// SetValue assigns .value and dispatches a change event.
	SetValue(ctx context.Context, loc Locator, value string) error
	Clear(ctx context.Context, loc Locator) error
	// SendKeys focuses the element and types text into it.
	SendKeys(ctx context.Context, loc Locator, text string) error
	ScrollIntoView(ctx context.Context, loc Locator) error
	MouseMove(ctx context.Context, x, y float64) error

	// Execute evaluates script in the page. res may be nil.
	Execute(ctx context.Context, script string, res interface{}) error

	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error

	Screenshot(ctx context.Context) ([]byte, error)
	PageSource(ctx context.Context) (string, error)

	// Close releases the browser. Calling it more than once is safe.
	Close(ctx context.Context) error
}
