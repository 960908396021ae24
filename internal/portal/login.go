package portal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/interaction"
	"github.com/xkilldash9x/challan-cli/internal/observability"
	"github.com/xkilldash9x/challan-cli/internal/records"
	"github.com/xkilldash9x/challan-cli/internal/session"
)

// popupAnswer is what the portal's "enter any number" interstitial accepts.
const popupAnswer = "1234"

// Login signs rec in from the portal home page. On success the session is
// saved and immediately restored so later reloads stay authenticated.
func (p *Portal) Login(ctx context.Context, rec *records.Record) LoginResult {
	logger := p.logger.Named("login").With(
		zap.Int("row", rec.Row),
		zap.String("company", rec.Company),
		observability.Masked("user_id", rec.UserID),
	)
	logger.Info("Logging in.")

	dual, err := p.login(ctx, rec, logger)
	if err != nil {
		reason := reasonFor(ctx, err)
		if !errors.Is(err, interaction.ErrNotReady) && ctx.Err() == nil {
			p.in.Dump(ctx, "login")
		}
		logger.Warn("Login failed.", zap.String("reason", reason), zap.Error(err))
		return LoginResult{Reason: reason}
	}

	p.keepSession(ctx, logger)
	logger.Info("Logged in.", zap.Bool("dual_login", dual))
	return LoginResult{OK: true, DualLogin: dual}
}

func (p *Portal) login(ctx context.Context, rec *records.Record, logger *zap.Logger) (bool, error) {
	t := p.opts.Timeouts

	if err := p.in.Client().Navigate(ctx, p.opts.URL); err != nil {
		return false, fail("portal not reachable", err)
	}
	if err := p.pause(ctx, 3*time.Second, 5*time.Second); err != nil {
		return false, err
	}

	p.in.SuppressOverlays(ctx)
	if err := p.clickWhenReady(ctx, LoginEntry, 0, false, "login link not found"); err != nil {
		return false, err
	}
	if err := p.pause(ctx, 2*time.Second, 4*time.Second); err != nil {
		return false, err
	}

	if err := p.dismissPopup(ctx, t.Popup, logger); err != nil {
		return false, err
	}

	if _, err := p.in.WaitReady(ctx, UserIDInput, 0); err != nil {
		return false, fail("user ID field not found", err)
	}
	if err := p.in.Type(ctx, UserIDInput, rec.UserID); err != nil {
		return false, fail("user ID entry failed", err)
	}
	if err := p.pause(ctx, time.Second, 2*time.Second); err != nil {
		return false, err
	}

	p.in.SuppressOverlays(ctx)
	if err := p.clickWhenReady(ctx, LoginContinue, 0, false, "continue after user ID failed"); err != nil {
		return false, err
	}
	if err := p.pause(ctx, 4*time.Second, 6*time.Second); err != nil {
		return false, err
	}

	if err := p.tickSecureAccess(ctx, logger); err != nil {
		return false, err
	}

	if _, err := p.in.WaitReady(ctx, PasswordInput, 0); err != nil {
		return false, fail("password field not found", err)
	}
	if err := p.in.Type(ctx, PasswordInput, rec.Password); err != nil {
		return false, fail("password entry failed", err)
	}
	if err := p.pause(ctx, time.Second, 2*time.Second); err != nil {
		return false, err
	}

	p.in.SuppressOverlays(ctx)
	if err := p.clickWhenReady(ctx, LoginContinue, 0, false, "continue after password failed"); err != nil {
		return false, err
	}
	if err := p.pause(ctx, 3*time.Second, 5*time.Second); err != nil {
		return false, err
	}

	return p.resolveDualLogin(ctx, t.DualLogin, logger)
}

// dismissPopup answers the optional number prompt some sessions get. The
// field only has to be in the DOM; it may still be animating in.
func (p *Portal) dismissPopup(ctx context.Context, timeout time.Duration, logger *zap.Logger) error {
	present, err := p.in.WaitOptionalPresent(ctx, PopupNumberInput, timeout)
	if err != nil {
		return err
	}
	if !present {
		logger.Debug("No number popup shown.")
		return nil
	}
	if err := p.in.Type(ctx, PopupNumberInput, popupAnswer); err != nil {
		return fail("popup entry failed", err)
	}
	if err := p.clickWhenReady(ctx, PopupOK, 0, false, "popup OK button not found"); err != nil {
		return err
	}
	logger.Debug("Number popup dismissed.")
	return p.pause(ctx, time.Second, 2*time.Second)
}

// tickSecureAccess ticks the secure-access checkbox, clicking at most twice.
func (p *Portal) tickSecureAccess(ctx context.Context, logger *zap.Logger) error {
	if _, err := p.in.WaitPresent(ctx, SecureCheckbox, 0); err != nil {
		return fail("secure access checkbox not found", err)
	}
	p.in.SuppressOverlays(ctx)

	for attempt := 1; attempt <= 2; attempt++ {
		if err := p.in.Click(ctx, SecureCheckbox); err != nil {
			return fail("secure access checkbox click failed", err)
		}
		if err := p.pause(ctx, 500*time.Millisecond, time.Second); err != nil {
			return err
		}
		checked, err := p.in.IsChecked(ctx, SecureCheckbox)
		if err != nil {
			return fail("secure access checkbox lost", err)
		}
		if checked {
			return p.pause(ctx, time.Second, 2*time.Second)
		}
		logger.Debug("Checkbox still unticked.", zap.Int("attempt", attempt))
	}
	return fail("checkbox not ticked", nil)
}

// resolveDualLogin displaces a session open elsewhere when the portal asks.
func (p *Portal) resolveDualLogin(ctx context.Context, timeout time.Duration, logger *zap.Logger) (bool, error) {
	present, err := p.in.WaitOptional(ctx, DualLoginButton, timeout)
	if err != nil || !present {
		return false, err
	}
	if err := p.in.Click(ctx, DualLoginButton); err != nil {
		return false, fail("dual login confirmation failed", err)
	}
	logger.Info("Displaced a session open elsewhere.")
	return true, p.pause(ctx, 2*time.Second, 3*time.Second)
}

// keepSession saves the cookie jar and loads it straight back. Failures are
// logged only; the cookies are already live in the browser.
func (p *Portal) keepSession(ctx context.Context, logger *zap.Logger) {
	if p.sessions == nil {
		return
	}
	client := p.in.Client()
	if _, err := p.sessions.Persist(ctx, client); err != nil {
		logger.Warn("Could not save session cookies.", zap.Error(err))
		return
	}
	if _, err := p.sessions.Restore(ctx, client); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			logger.Debug("No saved session to restore.")
		} else {
			logger.Warn("Could not restore session cookies.", zap.Error(err))
		}
		return
	}
	_ = p.pause(ctx, 2*time.Second, 3*time.Second)
}
