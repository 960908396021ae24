package interaction

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/challan-cli/internal/browser"
	"github.com/xkilldash9x/challan-cli/internal/browser/browsertest"
	"github.com/xkilldash9x/challan-cli/internal/config"
)

const formScreen = `<html><body>
<div class="modal-overlay">notice</div>
<input id="user" placeholder="User ID" value="stale">
<input id="hidden" type="text" hidden>
<input id="locked" type="text" disabled>
<input id="agree" type="checkbox">
<select id="ay"><option value="2024-25">2024-25</option><option value="2025-26">2025-26</option></select>
<button id="go">Continue</button>
</body></html>`

var (
	userLoc   = browser.NewLocator("User ID", browser.RoleInput, "//input[@id='user']")
	hiddenLoc = browser.NewLocator("Hidden", browser.RoleInput, "//input[@id='hidden']")
	lockedLoc = browser.NewLocator("Locked", browser.RoleInput, "//input[@id='locked']")
	agreeLoc  = browser.NewLocator("Agree", browser.RoleCheckbox, "//input[@id='agree']")
	ayLoc     = browser.NewLocator("Assessment Year", browser.RoleSelect, "//select[@id='ay']")
	goLoc     = browser.NewLocator("Continue", browser.RoleButton, "//button[@id='go']")
	ghostLoc  = browser.NewLocator("Ghost", browser.RoleButton, "//button[@id='ghost']")
)

type recordingMover struct {
	mu    sync.Mutex
	boxes []browser.Rect
	err   error
}

func (m *recordingMover) MoveInto(_ context.Context, x, y, w, h float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boxes = append(m.boxes, browser.Rect{X: x, Y: y, Width: w, Height: h})
	return m.err
}

func setup(t *testing.T, opts Options) (*Interactor, *browsertest.Browser, string) {
	t.Helper()
	fake := browsertest.New().AddScreen("form", formScreen)
	fake.Show("form")
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)
	if opts.DefaultTimeout == 0 {
		opts.DefaultTimeout = 60 * time.Millisecond
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Millisecond
	}
	if opts.Dumper == nil {
		opts.Dumper = NewDumper(fake, dir, true, logger)
	}
	return New(fake, logger, opts), fake, dir
}

func TestWaitReady_Immediate(t *testing.T) {
	in, fake, _ := setup(t, Options{})

	st, err := in.WaitReady(context.Background(), userLoc, 0)
	require.NoError(t, err)
	assert.True(t, st.Actionable())
	assert.Equal(t, "INPUT", st.TagName)
	assert.Len(t, fake.CallsFor("Inspect"), 1, "no polling when already ready")
}

func TestWaitReady_TimeoutDumpsDiagnostics(t *testing.T) {
	for _, loc := range []browser.Locator{hiddenLoc, lockedLoc, ghostLoc} {
		t.Run(loc.Name, func(t *testing.T) {
			in, fake, dir := setup(t, Options{})

			_, err := in.WaitReady(context.Background(), loc, 30*time.Millisecond)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotReady)
			assert.ErrorIs(t, err, browser.ErrNotFound)
			assert.Greater(t, len(fake.CallsFor("Inspect")), 1, "should poll more than once")

			base := filepath.Join(dir, fileBase(loc.Name))
			assert.FileExists(t, base+"_error.png")
			assert.FileExists(t, base+"_error.html")
		})
	}
}

func TestWaitReady_BecomesReadyAfterScreenChange(t *testing.T) {
	in, fake, _ := setup(t, Options{DefaultTimeout: 2 * time.Second})
	fake.AddScreen("later", `<html><body><button id="ghost">Now</button></body></html>`)

	go func() {
		time.Sleep(20 * time.Millisecond)
		fake.Show("later")
	}()

	st, err := in.WaitReady(context.Background(), ghostLoc, 0)
	require.NoError(t, err)
	assert.True(t, st.Found)
}

func TestWaitPresent_AcceptsHiddenElements(t *testing.T) {
	in, _, dir := setup(t, Options{})

	st, err := in.WaitPresent(context.Background(), hiddenLoc, 0)
	require.NoError(t, err)
	assert.True(t, st.Found)
	assert.False(t, st.Visible)

	_, err = in.WaitPresent(context.Background(), ghostLoc, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.FileExists(t, filepath.Join(dir, "ghost_error.png"))
}

func TestWaitOptional(t *testing.T) {
	in, _, dir := setup(t, Options{})

	ok, err := in.WaitOptional(context.Background(), goLoc, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = in.WaitOptional(context.Background(), ghostLoc, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "an absent optional element is not a failure")
}

func TestWaitOptional_Cancelled(t *testing.T) {
	in, _, _ := setup(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := in.WaitOptional(ctx, goLoc, time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitOptionalPresent(t *testing.T) {
	in, _, dir := setup(t, Options{})

	ok, err := in.WaitOptional(context.Background(), lockedLoc, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "a disabled field is not ready")

	for _, loc := range []browser.Locator{lockedLoc, hiddenLoc, goLoc} {
		ok, err = in.WaitOptionalPresent(context.Background(), loc, 20*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok, loc.Name)
	}

	ok, err = in.WaitOptionalPresent(context.Background(), ghostLoc, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWaitPageReady(t *testing.T) {
	in, fake, _ := setup(t, Options{})
	fake.SetReadyStates("loading", "interactive", "complete")

	require.NoError(t, in.WaitPageReady(context.Background(), time.Second))
	assert.Len(t, fake.CallsFor("ReadyState"), 3)

	fake.SetReadyStates("loading")
	err := in.WaitPageReady(context.Background(), 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page not ready")
}

func TestSuppressOverlays(t *testing.T) {
	in, fake, _ := setup(t, Options{})
	in.SuppressOverlays(context.Background())

	scripts := fake.Scripts()
	require.Len(t, scripts, 1)
	assert.Contains(t, scripts[0], `div[class*="overlay"]`)
	assert.Contains(t, scripts[0], `div[class*="modal"]`)
	assert.Contains(t, scripts[0], `div[class*="header"]`)
}

func TestSuppressOverlays_FailureIsSwallowed(t *testing.T) {
	in, fake, _ := setup(t, Options{})
	fake.FailOn("Execute", errors.New("detached"))
	assert.NotPanics(t, func() { in.SuppressOverlays(context.Background()) })
}

func TestApproach_MovesIntoElementBox(t *testing.T) {
	mover := &recordingMover{}
	in, fake, _ := setup(t, Options{Mover: mover})

	in.Approach(context.Background(), goLoc)

	assert.Len(t, fake.CallsFor("ScrollIntoView"), 1)
	require.Len(t, mover.boxes, 1)
	assert.Equal(t, browser.Rect{X: 100, Y: 200, Width: 120, Height: 32}, mover.boxes[0])
}

func TestApproach_MissingElementIsTolerated(t *testing.T) {
	mover := &recordingMover{}
	in, _, _ := setup(t, Options{Mover: mover})

	in.Approach(context.Background(), ghostLoc)
	assert.Empty(t, mover.boxes)
}

func TestApproach_MoverErrorIsTolerated(t *testing.T) {
	mover := &recordingMover{err: errors.New("pointer lost")}
	in, _, _ := setup(t, Options{Mover: mover})
	assert.NotPanics(t, func() { in.Approach(context.Background(), goLoc) })
	assert.Len(t, mover.boxes, 1)
}

func TestTypeReplacesExistingValue(t *testing.T) {
	in, fake, _ := setup(t, Options{})

	require.NoError(t, in.Type(context.Background(), userLoc, "ABCDE1234F"))
	assert.Equal(t, "ABCDE1234F", fake.Value(userLoc.XPath))

	ops := []string{}
	for _, c := range fake.Calls() {
		if c.Locator == userLoc.Name {
			ops = append(ops, c.Op)
		}
	}
	assert.Equal(t, []string{"Clear", "SendKeys"}, ops)
}

func TestSelectAndCheckbox(t *testing.T) {
	in, fake, _ := setup(t, Options{})
	ctx := context.Background()

	require.NoError(t, in.Select(ctx, ayLoc, "2025-26"))
	assert.Equal(t, "2025-26", fake.Value(ayLoc.XPath))

	checked, err := in.IsChecked(ctx, agreeLoc)
	require.NoError(t, err)
	assert.False(t, checked)

	require.NoError(t, in.Click(ctx, agreeLoc))
	checked, err = in.IsChecked(ctx, agreeLoc)
	require.NoError(t, err)
	assert.True(t, checked)
}

func TestActionsOnMissingElements(t *testing.T) {
	in, _, _ := setup(t, Options{})
	ctx := context.Background()

	assert.ErrorIs(t, in.Click(ctx, ghostLoc), browser.ErrNotFound)
	assert.ErrorIs(t, in.Type(ctx, ghostLoc, "x"), browser.ErrNotFound)
	assert.ErrorIs(t, in.Select(ctx, ghostLoc, "x"), browser.ErrNotFound)
	_, err := in.IsChecked(ctx, ghostLoc)
	assert.ErrorIs(t, err, browser.ErrNotFound)
}

func TestClientExecutor_ForwardsMoves(t *testing.T) {
	fake := browsertest.New()
	exec := ClientExecutor{Client: fake}

	require.NoError(t, exec.MouseMove(context.Background(), 12.4, 99.6))
	moves := fake.CallsFor("MouseMove")
	require.Len(t, moves, 1)
	assert.Equal(t, "12,100", moves[0].Value)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, exec.Sleep(ctx, time.Hour), context.Canceled)
}

func TestJitterPacer_Draw(t *testing.T) {
	p := NewJitterPacer(rand.New(rand.NewSource(1)), nil, 1)
	for i := 0; i < 200; i++ {
		d := p.Draw(time.Second, 2*time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2*time.Second)
	}
	assert.Equal(t, 3*time.Second, p.Draw(3*time.Second, 3*time.Second))

	swapped := p.Draw(2*time.Second, time.Second)
	assert.GreaterOrEqual(t, swapped, time.Second)
	assert.LessOrEqual(t, swapped, 2*time.Second)
}

func TestJitterPacer_Scale(t *testing.T) {
	p := NewJitterPacer(rand.New(rand.NewSource(1)), nil, 0.5)
	assert.Equal(t, time.Second, p.Draw(2*time.Second, 2*time.Second))

	fast := NewJitterPacer(rand.New(rand.NewSource(1)), rate.NewLimiter(rate.Limit(1000), 1), 0.001)
	start := time.Now()
	require.NoError(t, fast.Jitter(context.Background(), time.Second, time.Second))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestJitterPacer_Cancellation(t *testing.T) {
	p := NewJitterPacer(nil, nil, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Jitter(ctx, time.Hour, time.Hour), context.DeadlineExceeded)
}

func TestNewPacer(t *testing.T) {
	assert.IsType(t, NopPacer{}, NewPacer(config.PacingConfig{Enabled: false}))

	p := NewPacer(config.PacingConfig{Enabled: true, ActionsPerSecond: 4, Scale: 2})
	jp, ok := p.(*JitterPacer)
	require.True(t, ok)
	assert.NotNil(t, jp.limiter)
	assert.Equal(t, 2.0, jp.scale)

	unlimited := NewPacer(config.PacingConfig{Enabled: true, Scale: 1}).(*JitterPacer)
	assert.Nil(t, unlimited.limiter)
}

func TestNopPacer(t *testing.T) {
	assert.NoError(t, NopPacer{}.Jitter(context.Background(), time.Hour, time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NopPacer{}.Jitter(ctx, 0, 0), context.Canceled)
}

func TestDumper(t *testing.T) {
	fake := browsertest.New().AddScreen("form", formScreen)
	fake.Show("form")
	logger := zaptest.NewLogger(t)

	t.Run("writes both files", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested")
		d := NewDumper(fake, dir, true, logger)
		dump := d.Capture(context.Background(), "Health & Education Cess")

		assert.Equal(t, filepath.Join(dir, "health_education_cess_error.png"), dump.Screenshot)
		html, err := os.ReadFile(dump.HTML)
		require.NoError(t, err)
		assert.Contains(t, string(html), "User ID")
	})

	t.Run("disabled writes nothing", func(t *testing.T) {
		dir := t.TempDir()
		dump := NewDumper(fake, dir, false, logger).Capture(context.Background(), "login")
		assert.Equal(t, Dump{}, dump)
		entries, _ := os.ReadDir(dir)
		assert.Empty(t, entries)
	})

	t.Run("screenshot failure still writes html", func(t *testing.T) {
		broken := browsertest.New().FailOn("Screenshot", errors.New("target closed"))
		dump := NewDumper(broken, t.TempDir(), true, logger).Capture(context.Background(), "challan")
		assert.Empty(t, dump.Screenshot)
		assert.FileExists(t, dump.HTML)
	})

	t.Run("nil dumper is a no-op", func(t *testing.T) {
		var d *Dumper
		assert.Equal(t, Dump{}, d.Capture(context.Background(), "x"))
	})
}

func TestFileBase(t *testing.T) {
	assert.Equal(t, "user_id", fileBase("User ID"))
	assert.Equal(t, "element", fileBase("  &&  "))
	assert.Equal(t, "e-file", fileBase("e-File"))
}
