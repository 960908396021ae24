// Package portal drives the e-filing portal: signing in, reaching the payment
// screen and creating a challan. Each phase reports a result value instead of
// an error so a failed record never stops the batch.
package portal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/browser"
	"github.com/xkilldash9x/challan-cli/internal/config"
	"github.com/xkilldash9x/challan-cli/internal/interaction"
)

// SessionKeeper saves and reloads the authenticated cookie jar.
type SessionKeeper interface {
	Persist(ctx context.Context, client browser.Client) (int, error)
	Restore(ctx context.Context, client browser.Client) (int, error)
}

// ArtifactFinder returns the file a download produced.
type ArtifactFinder interface {
	Latest(ctx context.Context, since time.Time) (string, error)
}

// CRNSource issues challan reference numbers.
type CRNSource interface {
	NextCRN() string
}

// LoginResult is the outcome of Login.
type LoginResult struct {
	OK     bool
	Reason string
	// DualLogin is set when an existing session on another device had to be displaced.
	DualLogin bool
}

// NavResult is the outcome of Navigate.
type NavResult struct {
	OK     bool
	Reason string
}

// ChallanResult is the outcome of CreateChallan.
type ChallanResult struct {
	OK          bool
	Reason      string
	CRN         string
	Status      string
	PDFPath     string
	PaymentMode string
}

// Options tunes the flows.
type Options struct {
	URL      string
	Timeouts config.TimeoutConfig
}

// Portal runs the three phases against one browser.
type Portal struct {
	in        *interaction.Interactor
	sessions  SessionKeeper
	artifacts ArtifactFinder
	crns      CRNSource
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// New wires a Portal. sessions may be nil, in which case the session is
// neither saved nor restored after login.
func New(in *interaction.Interactor, sessions SessionKeeper, artifacts ArtifactFinder, crns CRNSource, opts Options, logger *zap.Logger) *Portal {
	return &Portal{
		in:        in,
		sessions:  sessions,
		artifacts: artifacts,
		crns:      crns,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// stepError carries the human-readable reason a phase reports.
type stepError struct {
	reason string
	err    error
}

func (e *stepError) Error() string {
	if e.err == nil {
		return e.reason
	}
	return e.reason + ": " + e.err.Error()
}

func (e *stepError) Unwrap() error { return e.err }

func fail(reason string, err error) error {
	return &stepError{reason: reason, err: err}
}

// reasonFor turns a phase error into the short string stored on the record.
func reasonFor(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return ctx.Err().Error()
	}
	var se *stepError
	if errors.As(err, &se) {
		return se.reason
	}
	return err.Error()
}

// clickWhenReady waits for loc, optionally glides the pointer to it, and clicks.
func (p *Portal) clickWhenReady(ctx context.Context, loc browser.Locator, timeout time.Duration, approach bool, reason string) error {
	if _, err := p.in.WaitReady(ctx, loc, timeout); err != nil {
		return fail(reason, err)
	}
	if approach {
		p.in.Approach(ctx, loc)
	}
	if err := p.in.Click(ctx, loc); err != nil {
		return fail(reason, err)
	}
	return nil
}

// pause is a pacing step. Only cancellation can make it fail.
func (p *Portal) pause(ctx context.Context, min, max time.Duration) error {
	return p.in.Jitter(ctx, min, max)
}
