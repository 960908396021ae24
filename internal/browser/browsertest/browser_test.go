package browsertest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/challan-cli/internal/browser"
)

const formScreen = `<html><body>
<div hidden><button id="ghost">Ghost</button></div>
<button id="go">Go</button>
<button id="off" disabled>Off</button>
<input type="checkbox" id="agree">
<input type="text" id="name" value="old">
</body></html>`

var (
	goBtn  = browser.NewLocator("go", browser.RoleButton, "//button[@id='go']")
	ghost  = browser.NewLocator("ghost", browser.RoleButton, "//button[@id='ghost']")
	offBtn = browser.NewLocator("off", browser.RoleButton, "//button[@id='off']")
	agree  = browser.NewLocator("agree", browser.RoleCheckbox, "//input[@id='agree']")
	name   = browser.NewLocator("name", browser.RoleInput, "//input[@id='name']")
	absent = browser.NewLocator("absent", browser.RoleButton, "//button[@id='nope']")
)

func newForm(t *testing.T) *Browser {
	t.Helper()
	b := New().
		AddScreen("form", formScreen).
		AddScreen("done", `<html><body><h1>Done</h1></body></html>`).
		Route("https://portal.test/", "form").
		Transition("form", goBtn.XPath, "done")
	require.NoError(t, b.Navigate(context.Background(), "https://portal.test/"))
	return b
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	b := newForm(t)

	st, err := b.Inspect(ctx, goBtn)
	require.NoError(t, err)
	assert.True(t, st.Actionable())
	assert.Equal(t, "BUTTON", st.TagName)
	assert.False(t, st.Box.Empty())

	st, err = b.Inspect(ctx, ghost)
	require.NoError(t, err)
	assert.True(t, st.Found)
	assert.False(t, st.Visible, "hidden ancestor hides the element")

	st, err = b.Inspect(ctx, offBtn)
	require.NoError(t, err)
	assert.False(t, st.Enabled)

	st, err = b.Inspect(ctx, absent)
	require.NoError(t, err)
	assert.False(t, st.Found)
}

func TestClickTransitionsAndCheckbox(t *testing.T) {
	ctx := context.Background()
	b := newForm(t)

	require.NoError(t, b.Click(ctx, agree))
	st, _ := b.Inspect(ctx, agree)
	assert.True(t, st.Checked)

	b.IgnoreClicks(agree.XPath, 1)
	require.NoError(t, b.Click(ctx, agree))
	st, _ = b.Inspect(ctx, agree)
	assert.True(t, st.Checked, "ignored click must not toggle")

	require.NoError(t, b.Click(ctx, goBtn))
	assert.Equal(t, "done", b.Screen())

	err := b.Click(ctx, goBtn)
	assert.True(t, errors.Is(err, browser.ErrNotFound))
}

func TestValueMutation(t *testing.T) {
	ctx := context.Background()
	b := newForm(t)

	require.NoError(t, b.Clear(ctx, name))
	require.NoError(t, b.SendKeys(ctx, name, "ACME"))
	assert.Equal(t, "ACME", b.Value(name.XPath))

	require.NoError(t, b.SetValue(ctx, name, "2025-26"))
	assert.Equal(t, "2025-26", b.Value(name.XPath))

	keys := b.CallsFor("SendKeys")
	require.Len(t, keys, 1)
	assert.Equal(t, Call{Op: "SendKeys", Locator: "name", Value: "ACME"}, keys[0])
}

func TestReloadRestoresScreenMarkup(t *testing.T) {
	ctx := context.Background()
	b := newForm(t)

	require.NoError(t, b.SendKeys(ctx, name, "x"))
	require.NoError(t, b.Reload(ctx))
	assert.Equal(t, "old", b.Value(name.XPath))
}

func TestReadyStateQueue(t *testing.T) {
	ctx := context.Background()
	b := New().SetReadyStates("loading", "interactive", "complete")

	var seen []string
	for i := 0; i < 4; i++ {
		s, err := b.ReadyState(ctx)
		require.NoError(t, err)
		seen = append(seen, s)
	}
	assert.Equal(t, []string{"loading", "interactive", "complete", "complete"}, seen)
}

func TestCookiesMergeByNameAndDomain(t *testing.T) {
	ctx := context.Background()
	b := New()

	require.NoError(t, b.SetCookies(ctx, []browser.Cookie{{Name: "a", Value: "1", Domain: "x"}, {Name: "b", Value: "2", Domain: "x"}}))
	require.NoError(t, b.SetCookies(ctx, []browser.Cookie{{Name: "a", Value: "3", Domain: "x"}}))

	cookies, err := b.Cookies(ctx)
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, "3", cookies[0].Value)
}

func TestFailuresAndCancellation(t *testing.T) {
	boom := errors.New("boom")
	b := New().FailOn("Screenshot", boom)

	_, err := b.Screenshot(context.Background())
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Navigate(ctx, "https://portal.test/"), context.Canceled)

	require.NoError(t, b.Close(context.Background()))
	require.NoError(t, b.Close(context.Background()))
	assert.Equal(t, 2, b.Closed())
}

func TestOnClickHookMayReenter(t *testing.T) {
	ctx := context.Background()
	b := newForm(t)

	called := false
	b.OnClick("form", goBtn.XPath, func(fb *Browser) {
		called = true
		fb.Show("form")
	})
	require.NoError(t, b.Click(ctx, goBtn))
	assert.True(t, called)
	assert.Equal(t, "form", b.Screen(), "hook runs after the transition")
}
