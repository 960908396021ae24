package portal

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/browser"
	"github.com/xkilldash9x/challan-cli/internal/interaction"
	"github.com/xkilldash9x/challan-cli/internal/records"
)

const (
	// StatusCreated is written for every challan that was generated.
	StatusCreated = "Challan created successfully"
	// DownloadFailed stands in for the PDF path when no file turned up.
	DownloadFailed = "Download failed"
)

// CreateChallan fills in and submits one Self-Assessment Tax challan for rec,
// downloads the PDF and assigns a reference number.
func (p *Portal) CreateChallan(ctx context.Context, rec *records.Record) ChallanResult {
	logger := p.logger.Named("challan").With(zap.Int("row", rec.Row), zap.String("company", rec.Company))
	logger.Info("Creating challan.",
		zap.String("assessment_year", rec.AssessmentYear),
		zap.Stringer("total", rec.Total()))

	res, err := p.createChallan(ctx, rec, logger)
	if err != nil {
		reason := reasonFor(ctx, err)
		if !errors.Is(err, interaction.ErrNotReady) && ctx.Err() == nil {
			p.in.Dump(ctx, "challan")
		}
		logger.Warn("Challan creation failed.", zap.String("reason", reason), zap.Error(err))
		return ChallanResult{Reason: reason}
	}
	logger.Info("Challan created.", zap.String("crn", res.CRN), zap.String("pdf", res.PDFPath))
	return res
}

func (p *Portal) createChallan(ctx context.Context, rec *records.Record, logger *zap.Logger) (ChallanResult, error) {
	if err := p.clickWhenReady(ctx, NewPayment, 0, false, "New Payment option not found"); err != nil {
		return ChallanResult{}, err
	}
	if err := p.pause(ctx, 2*time.Second, 3*time.Second); err != nil {
		return ChallanResult{}, err
	}
	if err := p.clickWhenReady(ctx, IncomeTaxTile, 0, false, "Income Tax category not found"); err != nil {
		return ChallanResult{}, err
	}
	if err := p.pause(ctx, time.Second, 2*time.Second); err != nil {
		return ChallanResult{}, err
	}

	p.in.SuppressOverlays(ctx)
	if err := p.selectValue(ctx, AssessmentYear, rec.AssessmentYear, "Assessment Year dropdown not found"); err != nil {
		return ChallanResult{}, err
	}
	if err := p.selectValue(ctx, PaymentType, SelfAssessmentTax, "Type of Payment dropdown not found"); err != nil {
		return ChallanResult{}, err
	}
	if err := p.advance(ctx, 2*time.Second, 3*time.Second); err != nil {
		return ChallanResult{}, err
	}

	if err := p.fillAmounts(ctx, rec, logger); err != nil {
		return ChallanResult{}, err
	}
	if err := p.advance(ctx, 2*time.Second, 3*time.Second); err != nil {
		return ChallanResult{}, err
	}

	if err := p.clickWhenReady(ctx, RTGSOption, 0, false, "RTGS/NEFT option not found"); err != nil {
		return ChallanResult{}, err
	}
	if err := p.pause(ctx, time.Second, 2*time.Second); err != nil {
		return ChallanResult{}, err
	}
	if err := p.advance(ctx, 3*time.Second, 5*time.Second); err != nil {
		return ChallanResult{}, err
	}

	if _, err := p.in.WaitReady(ctx, DownloadButton, 0); err != nil {
		return ChallanResult{}, fail("Download button not found", err)
	}
	clicked := p.now()
	if err := p.in.Click(ctx, DownloadButton); err != nil {
		return ChallanResult{}, fail("Download button not found", err)
	}
	if err := p.pause(ctx, 3*time.Second, 5*time.Second); err != nil {
		return ChallanResult{}, err
	}

	pdf, err := p.artifacts.Latest(ctx, clicked)
	if err != nil {
		if ctx.Err() != nil {
			return ChallanResult{}, ctx.Err()
		}
		logger.Warn("No challan PDF found after download.", zap.Error(err))
		pdf = DownloadFailed
	}

	return ChallanResult{
		OK:          true,
		CRN:         p.crns.NextCRN(),
		Status:      StatusCreated,
		PDFPath:     pdf,
		PaymentMode: PaymentMode,
	}, nil
}

func (p *Portal) selectValue(ctx context.Context, loc browser.Locator, value, reason string) error {
	if _, err := p.in.WaitReady(ctx, loc, 0); err != nil {
		return fail(reason, err)
	}
	p.in.Approach(ctx, loc)
	if err := p.in.Select(ctx, loc, value); err != nil {
		return fail(reason, err)
	}
	return p.pause(ctx, time.Second, 2*time.Second)
}

// advance clicks the form's Continue button and waits for the next step.
func (p *Portal) advance(ctx context.Context, min, max time.Duration) error {
	if err := p.clickWhenReady(ctx, FormContinue, 0, false, "Continue button not found"); err != nil {
		return err
	}
	return p.pause(ctx, min, max)
}

// fillAmounts types every positive amount as a whole number. Zero and blank
// amounts are left alone. A positive amount without an input is an error,
// since skipping it would produce a challan for the wrong total.
func (p *Portal) fillAmounts(ctx context.Context, rec *records.Record, logger *zap.Logger) error {
	for _, a := range rec.Amounts() {
		if !a.Positive() {
			continue
		}
		loc := AmountInput(a.Column)
		if _, err := p.in.WaitReady(ctx, loc, 0); err != nil {
			return fail(loc.Name+" field not found", err)
		}
		p.in.Approach(ctx, loc)
		value := a.Value.Decimal.IntPart()
		if err := p.in.Type(ctx, loc, strconv.FormatInt(value, 10)); err != nil {
			return fail(loc.Name+" entry failed", err)
		}
		logger.Debug("Amount entered.", zap.String("field", loc.Name), zap.Int64("value", value))
		if err := p.pause(ctx, 500*time.Millisecond, time.Second); err != nil {
			return err
		}
	}
	return nil
}
