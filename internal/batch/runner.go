// Package batch drives the portal flows over every record in the store and
// writes each outcome back before moving on, so an interrupted run resumes
// where it stopped.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/portal"
	"github.com/xkilldash9x/challan-cli/internal/records"
)

// Statuses written when a record fails before the challan form.
const (
	StatusLoginFailed      = "Login failed"
	StatusNavigationFailed = "Navigation failed"
	// StatusInvalidAmount is followed by the column name.
	StatusInvalidAmount = "Invalid amount in "
)

// TimestampLayout formats the Date Created column.
const TimestampLayout = "2006-01-02 15:04:05"

// Flow is the sequence of portal phases run for each record.
type Flow interface {
	Login(ctx context.Context, rec *records.Record) portal.LoginResult
	Navigate(ctx context.Context) portal.NavResult
	CreateChallan(ctx context.Context, rec *records.Record) portal.ChallanResult
}

// Runner processes a record store one record at a time.
type Runner struct {
	store  records.Store
	flow   Flow
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Runner.
func New(store records.Store, flow Flow, logger *zap.Logger) (*Runner, error) {
	if store == nil || flow == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize batch runner with nil dependencies")
	}
	return &Runner{
		store:  store,
		flow:   flow,
		logger: logger.Named("batch"),
		now:    time.Now,
	}, nil
}

// Run loads the store and processes every pending record. The returned error
// is non-nil only for store failures and cancellation; per-record failures
// are recorded in the store and in the Summary.
func (r *Runner) Run(ctx context.Context) (sum Summary, err error) {
	sum = Summary{RunID: uuid.NewString(), Started: r.now()}
	defer func() { sum.Finished = r.now() }()

	recs, err := r.store.Load(ctx)
	if err != nil {
		return sum, fmt.Errorf("load records: %w", err)
	}
	sum.Total = len(recs)
	r.logger.Info("Batch starting.", zap.String("run_id", sum.RunID), zap.Int("records", len(recs)))

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("Batch interrupted.", zap.Int("next_row", rec.Row))
			return sum, err
		}
		if rec.IsCompleted() {
			sum.Skipped++
			r.logger.Info("Skipping completed record.", zap.Int("row", rec.Row), zap.String("company", rec.Company))
			continue
		}

		out, done := r.process(ctx, rec)
		if !done {
			// Cancelled mid-record: leave it untouched so the next run retries it.
			r.logger.Warn("Batch interrupted.", zap.Int("row", rec.Row))
			return sum, ctx.Err()
		}
		// A decided outcome is saved even if a signal arrived meanwhile.
		if err := r.store.Save(context.WithoutCancel(ctx), recs); err != nil {
			r.logger.Error("Could not save progress, stopping.", zap.Int("row", rec.Row), zap.Error(err))
			return sum, fmt.Errorf("save progress after row %d: %w", rec.Row, err)
		}
		sum.add(out)
	}

	r.logger.Info("Batch finished.",
		zap.String("run_id", sum.RunID),
		zap.Int("succeeded", len(sum.Succeeded)),
		zap.Int("failed", len(sum.Failed)),
		zap.Int("skipped", sum.Skipped),
		zap.Duration("duration", r.now().Sub(sum.Started)))
	return sum, nil
}

// process runs the three phases for rec and updates its outcome fields. It
// reports false if ctx was cancelled before an outcome could be decided.
func (r *Runner) process(ctx context.Context, rec *records.Record) (Outcome, bool) {
	logger := r.logger.With(zap.Int("row", rec.Row), zap.String("company", rec.Company))
	logger.Info("Processing record.")
	out := Outcome{Row: rec.Row, Company: rec.Company, Amount: rec.Total()}

	if bad, ok := rec.InvalidAmount(); ok {
		return r.failed(logger, rec, out, StatusInvalidAmount+bad.Column, bad.Error()), true
	}
	if res := r.flow.Login(ctx, rec); !res.OK {
		if ctx.Err() != nil {
			return out, false
		}
		return r.failed(logger, rec, out, StatusLoginFailed, res.Reason), true
	}
	if res := r.flow.Navigate(ctx); !res.OK {
		if ctx.Err() != nil {
			return out, false
		}
		return r.failed(logger, rec, out, StatusNavigationFailed, res.Reason), true
	}

	res := r.flow.CreateChallan(ctx, rec)
	if !res.OK {
		if ctx.Err() != nil {
			return out, false
		}
		return r.failed(logger, rec, out, res.Reason, res.Reason), true
	}

	pdf := res.PDFPath
	if pdf == "" {
		pdf = portal.DownloadFailed
	}
	rec.CRN = res.CRN
	rec.Status = res.Status
	rec.PDFPath = pdf
	rec.DateCreated = r.now().Format(TimestampLayout)
	if res.PaymentMode != "" {
		rec.PaymentMode = res.PaymentMode
	}

	out.OK = true
	out.Status = rec.Status
	out.CRN = rec.CRN
	out.PDFPath = rec.PDFPath
	logger.Info("Record completed.", zap.String("crn", rec.CRN))
	return out, true
}

func (r *Runner) failed(logger *zap.Logger, rec *records.Record, out Outcome, status, reason string) Outcome {
	rec.Status = status
	out.Status = status
	out.Reason = reason
	logger.Warn("Record failed.", zap.String("status", status), zap.String("reason", reason))
	return out
}

// IsAbort reports whether err from Run stopped the batch early because of
// cancellation rather than a store failure.
func IsAbort(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
