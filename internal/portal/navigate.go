package portal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/interaction"
)

// Navigate walks from the dashboard to the e-Pay Tax screen and checks that
// the New Payment control is there.
func (p *Portal) Navigate(ctx context.Context) NavResult {
	logger := p.logger.Named("navigate")
	if err := p.navigate(ctx); err != nil {
		reason := reasonFor(ctx, err)
		if !errors.Is(err, interaction.ErrNotReady) && ctx.Err() == nil {
			p.in.Dump(ctx, "navigation")
		}
		logger.Warn("Navigation failed.", zap.String("reason", reason), zap.Error(err))
		return NavResult{Reason: reason}
	}
	logger.Info("Reached the payment screen.")
	return NavResult{OK: true}
}

func (p *Portal) navigate(ctx context.Context) error {
	t := p.opts.Timeouts

	if err := p.in.WaitPageReady(ctx, t.PageReady); err != nil {
		return fail("page did not finish loading", err)
	}
	if err := p.pause(ctx, 4*time.Second, 6*time.Second); err != nil {
		return err
	}

	p.in.SuppressOverlays(ctx)

	if err := p.clickWhenReady(ctx, MenuButton, 0, true, "menu button not found"); err != nil {
		return err
	}
	if err := p.pause(ctx, 2*time.Second, 4*time.Second); err != nil {
		return err
	}

	if _, err := p.in.WaitPresent(ctx, Sidebar, t.Sidebar); err != nil {
		return fail("sidebar did not open", err)
	}

	if err := p.clickWhenReady(ctx, EFileEntry, 0, true, "e-File menu not found"); err != nil {
		return err
	}
	if err := p.pause(ctx, 3*time.Second, 5*time.Second); err != nil {
		return err
	}

	if _, err := p.in.WaitPresent(ctx, NewPaymentMarker, 0); err != nil {
		return fail("payment screen not reached", err)
	}
	return nil
}
