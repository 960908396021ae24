// Package interaction layers waiting, pacing and pointer movement on top of a
// raw browser.Client. Portal flows talk to an Interactor, never to the client.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/browser"
)

// ErrNotReady is returned when an element does not reach the wanted state in time.
var ErrNotReady = fmt.Errorf("interaction: element not ready: %w", browser.ErrNotFound)

var errPending = errors.New("condition not met yet")

// overlayScript hides the banners and modal layers the portal paints over the page.
const overlayScript = `(() => {
	const layers = document.querySelectorAll('div[class*="overlay"], div[class*="modal"], div[class*="header"]');
	layers.forEach(el => { el.style.display = 'none'; });
	return layers.length;
})()`

// Mover moves the pointer into an element's bounding box.
type Mover interface {
	MoveInto(ctx context.Context, x, y, width, height float64) error
}

// Options configures an Interactor. Zero values fall back to defaults.
type Options struct {
	DefaultTimeout time.Duration
	PollInterval   time.Duration
	Pacer          Pacer
	Dumper         *Dumper
	// Mover is optional; without it Approach only scrolls.
	Mover Mover
}

// Interactor performs the waits and element actions the portal flows need.
type Interactor struct {
	client         browser.Client
	logger         *zap.Logger
	pacer          Pacer
	dumper         *Dumper
	mover          Mover
	defaultTimeout time.Duration
	pollInterval   time.Duration
}

// New creates an Interactor over client.
func New(client browser.Client, logger *zap.Logger, opts Options) *Interactor {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 15 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.Pacer == nil {
		opts.Pacer = NopPacer{}
	}
	return &Interactor{
		client:         client,
		logger:         logger.Named("interaction"),
		pacer:          opts.Pacer,
		dumper:         opts.Dumper,
		mover:          opts.Mover,
		defaultTimeout: opts.DefaultTimeout,
		pollInterval:   opts.PollInterval,
	}
}

// Client exposes the underlying browser for page-level calls.
func (i *Interactor) Client() browser.Client { return i.client }

// Jitter pauses for a random duration in [min, max].
func (i *Interactor) Jitter(ctx context.Context, min, max time.Duration) error {
	return i.pacer.Jitter(ctx, min, max)
}

// Dump captures a screenshot and page source under name.
func (i *Interactor) Dump(ctx context.Context, name string) Dump {
	return i.dumper.Capture(ctx, name)
}

// WaitReady waits until loc is present, visible and enabled. On timeout it
// captures a diagnostic dump named after the locator and returns ErrNotReady.
// A timeout <= 0 uses the default element timeout.
func (i *Interactor) WaitReady(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.ElementState, error) {
	st, err := i.poll(ctx, loc, timeout, browser.ElementState.Actionable)
	if err != nil && errors.Is(err, ErrNotReady) {
		i.logger.Warn("Element did not become ready.", zap.Stringer("locator", loc), zap.Error(err))
		i.dumper.Capture(ctx, loc.Name)
	}
	return st, err
}

// WaitPresent waits until loc exists in the DOM, visible or not.
func (i *Interactor) WaitPresent(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.ElementState, error) {
	st, err := i.poll(ctx, loc, timeout, func(s browser.ElementState) bool { return s.Found })
	if err != nil && errors.Is(err, ErrNotReady) {
		i.logger.Warn("Element never appeared.", zap.Stringer("locator", loc), zap.Error(err))
		i.dumper.Capture(ctx, loc.Name)
	}
	return st, err
}

// WaitOptional waits up to timeout for an element that may legitimately never
// show up. It reports whether loc became ready and only fails on cancellation.
func (i *Interactor) WaitOptional(ctx context.Context, loc browser.Locator, timeout time.Duration) (bool, error) {
	return i.optional(ctx, loc, timeout, browser.ElementState.Actionable)
}

// WaitOptionalPresent is WaitOptional for an element that only needs to
// exist in the DOM, such as a field still fading in.
func (i *Interactor) WaitOptionalPresent(ctx context.Context, loc browser.Locator, timeout time.Duration) (bool, error) {
	return i.optional(ctx, loc, timeout, func(s browser.ElementState) bool { return s.Found })
}

func (i *Interactor) optional(ctx context.Context, loc browser.Locator, timeout time.Duration, accept func(browser.ElementState) bool) (bool, error) {
	_, err := i.poll(ctx, loc, timeout, accept)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotReady):
		i.logger.Debug("Optional element absent.", zap.Stringer("locator", loc))
		return false, nil
	default:
		return false, err
	}
}

// WaitPageReady waits for document.readyState to reach "complete".
func (i *Interactor) WaitPageReady(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = i.defaultTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	op := func() error {
		state, err := i.client.ReadyState(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				return backoff.Permanent(waitCtx.Err())
			}
			return err
		}
		if state != "complete" {
			return errPending
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(i.pollInterval), waitCtx)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("page not ready after %v: %w", timeout, err)
	}
	return nil
}

// SuppressOverlays hides overlay, modal and header layers. Failure is only logged.
func (i *Interactor) SuppressOverlays(ctx context.Context) {
	var hidden int
	if err := i.client.Execute(ctx, overlayScript, &hidden); err != nil {
		i.logger.Warn("Overlay suppression failed.", zap.Error(err))
		return
	}
	i.logger.Debug("Overlays suppressed.", zap.Int("count", hidden))
}

// Approach scrolls loc into view and glides the pointer over it with short
// pauses either side. It never fails the caller; problems are logged.
func (i *Interactor) Approach(ctx context.Context, loc browser.Locator) {
	if err := i.client.ScrollIntoView(ctx, loc); err != nil {
		i.logger.Debug("Scroll into view failed.", zap.Stringer("locator", loc), zap.Error(err))
		return
	}
	if err := i.pacer.Jitter(ctx, 500*time.Millisecond, time.Second); err != nil {
		return
	}
	if i.mover != nil {
		st, err := i.client.Inspect(ctx, loc)
		if err == nil && st.Found && !st.Box.Empty() {
			if err := i.mover.MoveInto(ctx, st.Box.X, st.Box.Y, st.Box.Width, st.Box.Height); err != nil {
				i.logger.Debug("Pointer move failed.", zap.Stringer("locator", loc), zap.Error(err))
			}
		}
	}
	_ = i.pacer.Jitter(ctx, 500*time.Millisecond, time.Second)
}

// Click clicks loc.
func (i *Interactor) Click(ctx context.Context, loc browser.Locator) error {
	if err := i.client.Click(ctx, loc); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	return nil
}

// Type clears loc and types text into it.
func (i *Interactor) Type(ctx context.Context, loc browser.Locator, text string) error {
	if err := i.client.Clear(ctx, loc); err != nil {
		return fmt.Errorf("clear %s: %w", loc, err)
	}
	if err := i.client.SendKeys(ctx, loc, text); err != nil {
		return fmt.Errorf("type into %s: %w", loc, err)
	}
	return nil
}

// Select sets a <select> element's value.
func (i *Interactor) Select(ctx context.Context, loc browser.Locator, value string) error {
	if err := i.client.SetValue(ctx, loc, value); err != nil {
		return fmt.Errorf("select %q in %s: %w", value, loc, err)
	}
	return nil
}

// IsChecked reports a checkbox's checked state.
func (i *Interactor) IsChecked(ctx context.Context, loc browser.Locator) (bool, error) {
	st, err := i.client.Inspect(ctx, loc)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", loc, err)
	}
	if !st.Found {
		return false, fmt.Errorf("inspect %s: %w", loc, browser.ErrNotFound)
	}
	return st.Checked, nil
}

// poll inspects loc at a constant interval until accept holds or timeout elapses.
func (i *Interactor) poll(ctx context.Context, loc browser.Locator, timeout time.Duration, accept func(browser.ElementState) bool) (browser.ElementState, error) {
	if timeout <= 0 {
		timeout = i.defaultTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var state browser.ElementState
	op := func() error {
		st, err := i.client.Inspect(waitCtx, loc)
		if err != nil {
			if waitCtx.Err() != nil {
				return backoff.Permanent(waitCtx.Err())
			}
			// Inspect can fail transiently while the page is navigating.
			return err
		}
		if !accept(st) {
			return errPending
		}
		state = st
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(i.pollInterval), waitCtx))
	if err == nil {
		return state, nil
	}
	if ctx.Err() != nil {
		return state, ctx.Err()
	}
	return state, fmt.Errorf("%w: %s after %v", ErrNotReady, loc, timeout)
}
