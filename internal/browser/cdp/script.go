package cdp

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/challan-cli/internal/browser"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// elementResult is what every element script evaluates to.
type elementResult struct {
	Found   bool    `json:"found"`
	Visible bool    `json:"visible"`
	Enabled bool    `json:"enabled"`
	Checked bool    `json:"checked"`
	TagName string  `json:"tagName"`
	Value   string  `json:"value"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func (r elementResult) state() browser.ElementState {
	st := browser.ElementState{
		Found:   r.Found,
		Visible: r.Visible,
		Enabled: r.Enabled,
		Checked: r.Checked,
		TagName: r.TagName,
		Value:   r.Value,
	}
	if r.Visible {
		st.Box = browser.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
	}
	return st
}

const (
	inspectBody = `const r = el.getBoundingClientRect();
	const cs = window.getComputedStyle(el);
	const visible = r.width > 0 && r.height > 0 && cs.visibility !== 'hidden' && cs.display !== 'none';
	return {found: true, visible: visible, enabled: !el.disabled, checked: !!el.checked,
		tagName: el.tagName, value: el.value == null ? '' : String(el.value),
		x: r.left, y: r.top, width: r.width, height: r.height};`

	clickBody  = `el.click(); return {found: true};`
	focusBody  = `el.focus(); return {found: true};`
	scrollBody = `el.scrollIntoView({block: 'center', inline: 'center'}); return {found: true};`
	clearBody  = `el.focus(); el.value = '';
	el.dispatchEvent(new Event('input', {bubbles: true}));
	return {found: true};`
)

// elementScript resolves xpath to its first match and runs body with the node bound to el.
func elementScript(xpath, body string) string {
	return fmt.Sprintf(`(() => {
	const el = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!el) { return {found: false}; }
	%s
})()`, quote(xpath), body)
}

// setValueBody assigns value and fires the events frameworks listen for.
func setValueBody(value string) string {
	return fmt.Sprintf(`el.value = %s;
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return {found: true};`, quote(value))
}

// quote renders s as a JavaScript string literal.
func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
