// Package browsertest provides an in-memory browser.Client that evaluates
// locators against HTML fixtures. Screens are plain HTML documents; clicks can
// move the fake between screens, which is enough to script a portal flow.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/challan-cli/internal/browser"
)

// Call records one operation issued against the fake.
type Call struct {
	Op      string
	Locator string
	Value   string
}

// ClickHook runs after a click on a matching element has been applied.
// It is called without the fake's lock held, so it may call back into the fake.
type ClickHook func(b *Browser)

// Browser is a scriptable fake. The zero value is not usable; call New.
type Browser struct {
	mu sync.Mutex

	screens     map[string]string
	routes      map[string]string
	transitions map[string]map[string]string
	hooks       map[string]map[string]ClickHook
	ignored     map[string]int
	failures    map[string]error

	current string
	doc     *html.Node
	url     string

	readyStates []string
	cookies     []browser.Cookie
	scripts     []string
	calls       []Call
	closed      int
}

var _ browser.Client = (*Browser)(nil)

// New returns a fake showing an empty page.
func New() *Browser {
	b := &Browser{
		screens:     map[string]string{"blank": "<html><body></body></html>"},
		routes:      map[string]string{},
		transitions: map[string]map[string]string{},
		hooks:       map[string]map[string]ClickHook{},
		ignored:     map[string]int{},
		failures:    map[string]error{},
		readyStates: []string{"complete"},
	}
	b.show("blank")
	return b
}

// AddScreen registers an HTML document under name.
func (b *Browser) AddScreen(name, markup string) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.screens[name] = markup
	return b
}

// Route makes Navigate(url) display screen.
func (b *Browser) Route(url, screen string) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[url] = screen
	return b
}

// Transition makes a click on xpath while screen is shown display next.
func (b *Browser) Transition(screen, xpath, next string) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transitions[screen] == nil {
		b.transitions[screen] = map[string]string{}
	}
	b.transitions[screen][xpath] = next
	return b
}

// OnClick registers a hook for clicks on xpath while screen is shown.
func (b *Browser) OnClick(screen, xpath string, hook ClickHook) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hooks[screen] == nil {
		b.hooks[screen] = map[string]ClickHook{}
	}
	b.hooks[screen][xpath] = hook
	return b
}

// IgnoreClicks makes the next n clicks on xpath register in Calls but have no effect.
func (b *Browser) IgnoreClicks(xpath string, n int) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ignored[xpath] = n
	return b
}

// FailOn makes every call to op (e.g. "Click", "Screenshot") return err.
func (b *Browser) FailOn(op string, err error) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = err
	return b
}

// SetReadyStates queues document.readyState values. The last one sticks.
func (b *Browser) SetReadyStates(states ...string) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(states) > 0 {
		b.readyStates = states
	}
	return b
}

// Show switches to screen directly.
func (b *Browser) Show(screen string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.show(screen)
}

// Screen returns the name of the screen being displayed.
func (b *Browser) Screen() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// URL returns the last navigated URL.
func (b *Browser) URL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.url
}

// Calls returns a copy of every recorded operation.
func (b *Browser) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallsFor returns the recorded operations named op.
func (b *Browser) CallsFor(op string) []Call {
	var out []Call
	for _, c := range b.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets every recorded operation.
func (b *Browser) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// Scripts returns every script passed to Execute.
func (b *Browser) Scripts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.scripts))
	copy(out, b.scripts)
	return out
}

// Value returns the value attribute of the element at xpath on the current screen.
func (b *Browser) Value(xpath string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.find(xpath)
	if n == nil {
		return ""
	}
	return htmlquery.SelectAttr(n, "value")
}

// Closed reports how many times Close was called.
func (b *Browser) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// -- browser.Client --

func (b *Browser) Navigate(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "Navigate", "", url); err != nil {
		return err
	}
	b.url = url
	if screen, ok := b.routes[url]; ok {
		b.show(screen)
	}
	return nil
}

func (b *Browser) Reload(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "Reload", "", ""); err != nil {
		return err
	}
	b.show(b.current)
	return nil
}

func (b *Browser) ReadyState(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "ReadyState", "", ""); err != nil {
		return "", err
	}
	state := b.readyStates[0]
	if len(b.readyStates) > 1 {
		b.readyStates = b.readyStates[1:]
	}
	return state, nil
}

func (b *Browser) Inspect(ctx context.Context, loc browser.Locator) (browser.ElementState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "Inspect", loc.Name, ""); err != nil {
		return browser.ElementState{}, err
	}
	n := b.find(loc.XPath)
	if n == nil {
		return browser.ElementState{}, nil
	}
	st := browser.ElementState{
		Found:   true,
		Visible: visible(n),
		Enabled: !hasAttr(n, "disabled"),
		Checked: hasAttr(n, "checked"),
		TagName: strings.ToUpper(n.Data),
		Value:   htmlquery.SelectAttr(n, "value"),
	}
	if st.Visible {
		st.Box = browser.Rect{X: 100, Y: 200, Width: 120, Height: 32}
	}
	return st, nil
}

func (b *Browser) Click(ctx context.Context, loc browser.Locator) error {
	b.mu.Lock()
	if err := b.begin(ctx, "Click", loc.Name, ""); err != nil {
		b.mu.Unlock()
		return err
	}
	n := b.find(loc.XPath)
	if n == nil {
		b.mu.Unlock()
		return fmt.Errorf("click %s: %w", loc, browser.ErrNotFound)
	}
	if b.ignored[loc.XPath] > 0 {
		b.ignored[loc.XPath]--
		b.mu.Unlock()
		return nil
	}
	if n.Data == "input" && htmlquery.SelectAttr(n, "type") == "checkbox" {
		if hasAttr(n, "checked") {
			removeAttr(n, "checked")
		} else {
			setAttr(n, "checked", "checked")
		}
	}
	screen := b.current
	hook := b.hooks[screen][loc.XPath]
	if next, ok := b.transitions[screen][loc.XPath]; ok {
		b.show(next)
	}
	b.mu.Unlock()

	if hook != nil {
		hook(b)
	}
	return nil
}

func (b *Browser) SetValue(ctx context.Context, loc browser.Locator, value string) error {
	return b.mutateValue(ctx, "SetValue", loc, value, func(string) string { return value })
}

func (b *Browser) Clear(ctx context.Context, loc browser.Locator) error {
	return b.mutateValue(ctx, "Clear", loc, "", func(string) string { return "" })
}

func (b *Browser) SendKeys(ctx context.Context, loc browser.Locator, text string) error {
	return b.mutateValue(ctx, "SendKeys", loc, text, func(old string) string { return old + text })
}

func (b *Browser) ScrollIntoView(ctx context.Context, loc browser.Locator) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "ScrollIntoView", loc.Name, ""); err != nil {
		return err
	}
	if b.find(loc.XPath) == nil {
		return fmt.Errorf("scroll %s: %w", loc, browser.ErrNotFound)
	}
	return nil
}

func (b *Browser) MouseMove(ctx context.Context, x, y float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.begin(ctx, "MouseMove", "", fmt.Sprintf("%.0f,%.0f", x, y))
}

func (b *Browser) Execute(ctx context.Context, script string, res interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "Execute", "", ""); err != nil {
		return err
	}
	b.scripts = append(b.scripts, script)
	return nil
}

func (b *Browser) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "Cookies", "", ""); err != nil {
		return nil, err
	}
	out := make([]browser.Cookie, len(b.cookies))
	copy(out, b.cookies)
	return out, nil
}

func (b *Browser) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "SetCookies", "", fmt.Sprint(len(cookies))); err != nil {
		return err
	}
	for _, c := range cookies {
		replaced := false
		for i := range b.cookies {
			if b.cookies[i].Name == c.Name && b.cookies[i].Domain == c.Domain {
				b.cookies[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			b.cookies = append(b.cookies, c)
		}
	}
	return nil
}

func (b *Browser) Screenshot(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "Screenshot", "", ""); err != nil {
		return nil, err
	}
	return []byte("\x89PNG fake screenshot of " + b.current), nil
}

func (b *Browser) PageSource(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, "PageSource", "", ""); err != nil {
		return "", err
	}
	return htmlquery.OutputHTML(b.doc, true), nil
}

func (b *Browser) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	b.calls = append(b.calls, Call{Op: "Close"})
	return b.failures["Close"]
}

// -- internals; callers hold b.mu --

func (b *Browser) begin(ctx context.Context, op, locator, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.calls = append(b.calls, Call{Op: op, Locator: locator, Value: value})
	return b.failures[op]
}

func (b *Browser) show(screen string) {
	markup, ok := b.screens[screen]
	if !ok {
		panic(fmt.Sprintf("browsertest: unknown screen %q", screen))
	}
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		panic(fmt.Sprintf("browsertest: screen %q: %v", screen, err))
	}
	b.current = screen
	b.doc = doc
}

func (b *Browser) find(xpath string) *html.Node {
	n, err := htmlquery.Query(b.doc, xpath)
	if err != nil {
		return nil
	}
	return n
}

func (b *Browser) mutateValue(ctx context.Context, op string, loc browser.Locator, value string, next func(string) string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(ctx, op, loc.Name, value); err != nil {
		return err
	}
	n := b.find(loc.XPath)
	if n == nil {
		return fmt.Errorf("%s %s: %w", strings.ToLower(op), loc, browser.ErrNotFound)
	}
	setAttr(n, "value", next(htmlquery.SelectAttr(n, "value")))
	return nil
}

func visible(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if hasAttr(p, "hidden") {
			return false
		}
		style := strings.ReplaceAll(htmlquery.SelectAttr(p, "style"), " ", "")
		if strings.Contains(style, "display:none") {
			return false
		}
	}
	return true
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}
