// Package records loads and saves the challan work list. A store is read in
// full at the start of a run and rewritten in full after every record.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMissingColumn is returned by Load when a required input column is absent.
var ErrMissingColumn = errors.New("records: missing required column")

// CompletedPrefix marks a record whose challan exists. Such records are never touched again.
const CompletedPrefix = "challan created"

// Column headers.
const (
	ColCompany        = "Company Name"
	ColUserID         = "Login User ID"
	ColPassword       = "Login Password"
	ColAssessmentYear = "Assessment Year"
	ColTax            = "Tax"
	ColSurcharge      = "Surcharge"
	ColCess           = "Cess"
	ColInterest       = "Interest"
	ColFee            = "Fee"
	ColPenalty        = "Penalty"
	ColOthers         = "Others"
	ColStatus         = "Status"
	ColCRN            = "CRN"
	ColPDFPath        = "PDF Path"
	ColDateCreated    = "Date Created"
	ColPaymentMode    = "Payment Mode"
	ColValidTill      = "Valid Till"
)

var (
	requiredColumns = []string{ColCompany, ColUserID, ColPassword, ColAssessmentYear}
	amountColumns   = []string{ColTax, ColSurcharge, ColCess, ColInterest, ColFee, ColPenalty, ColOthers}
	outcomeColumns  = []string{ColStatus, ColCRN, ColPDFPath, ColDateCreated}
	optionalColumns = []string{ColPaymentMode, ColValidTill}
)

// Headers is the full column set in template order.
func Headers() []string {
	out := append([]string{}, requiredColumns...)
	out = append(out, amountColumns...)
	out = append(out, outcomeColumns...)
	return append(out, optionalColumns...)
}

// aliases accepts the headers older templates used.
var aliases = map[string]string{
	"user id":                 ColUserID,
	"password":                ColPassword,
	"tax amount":              ColTax,
	"fee (if any)":            ColFee,
	"education cess":          ColCess,
	"health & education cess": ColCess,
	"pdf created date":        ColDateCreated,
}

var known = func() map[string]string {
	m := make(map[string]string, len(aliases)+len(Headers()))
	for k, v := range aliases {
		m[k] = v
	}
	for _, h := range Headers() {
		m[strings.ToLower(h)] = h
	}
	return m
}()

// canonical maps a header cell to its column name, or "" for unknown columns.
func canonical(header string) string {
	return known[strings.ToLower(strings.Join(strings.Fields(header), " "))]
}

// Amount is one monetary field in form order.
type Amount struct {
	Column string
	Value  decimal.NullDecimal
}

// Positive reports whether the amount should be entered on the form.
func (a Amount) Positive() bool {
	return a.Value.Valid && a.Value.Decimal.IsPositive()
}

// Record is one row of work.
type Record struct {
	// Row is the 1-based position among data rows; logs use it.
	Row int

	Company        string
	UserID         string
	Password       string
	AssessmentYear string

	Tax       decimal.NullDecimal
	Surcharge decimal.NullDecimal
	Cess      decimal.NullDecimal
	Interest  decimal.NullDecimal
	Fee       decimal.NullDecimal
	Penalty   decimal.NullDecimal
	Others    decimal.NullDecimal

	Status      string
	CRN         string
	PDFPath     string
	DateCreated string
	PaymentMode string
	ValidTill   string

	// Extra holds cells of columns this package does not know, keyed by header.
	Extra map[string]string

	// Invalid lists amount cells that could not be read. The amount field is
	// left null and the raw cell is written back unchanged.
	Invalid []AmountError
}

// AmountError describes one unreadable money cell.
type AmountError struct {
	Column string
	Cell   string
	Reason string
}

func (e AmountError) Error() string {
	return fmt.Sprintf("column %q: %s", e.Column, e.Reason)
}

// InvalidAmount returns the first unreadable amount cell, if any.
func (r *Record) InvalidAmount() (AmountError, bool) {
	if len(r.Invalid) == 0 {
		return AmountError{}, false
	}
	return r.Invalid[0], true
}

func (r *Record) invalidCell(col string) (string, bool) {
	for _, e := range r.Invalid {
		if e.Column == col {
			return e.Cell, true
		}
	}
	return "", false
}

// IsCompleted reports whether the stored status says the challan was created.
func (r *Record) IsCompleted() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(r.Status)), CompletedPrefix)
}

// Amounts lists the monetary fields in the order the portal form shows them.
func (r *Record) Amounts() []Amount {
	return []Amount{
		{ColTax, r.Tax},
		{ColSurcharge, r.Surcharge},
		{ColCess, r.Cess},
		{ColInterest, r.Interest},
		{ColFee, r.Fee},
		{ColPenalty, r.Penalty},
		{ColOthers, r.Others},
	}
}

// Total sums every present amount.
func (r *Record) Total() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Amounts() {
		if a.Value.Valid {
			total = total.Add(a.Value.Decimal)
		}
	}
	return total
}

func (r *Record) amountField(col string) *decimal.NullDecimal {
	switch col {
	case ColTax:
		return &r.Tax
	case ColSurcharge:
		return &r.Surcharge
	case ColCess:
		return &r.Cess
	case ColInterest:
		return &r.Interest
	case ColFee:
		return &r.Fee
	case ColPenalty:
		return &r.Penalty
	case ColOthers:
		return &r.Others
	}
	return nil
}

func (r *Record) textField(col string) *string {
	switch col {
	case ColCompany:
		return &r.Company
	case ColUserID:
		return &r.UserID
	case ColPassword:
		return &r.Password
	case ColAssessmentYear:
		return &r.AssessmentYear
	case ColStatus:
		return &r.Status
	case ColCRN:
		return &r.CRN
	case ColPDFPath:
		return &r.PDFPath
	case ColDateCreated:
		return &r.DateCreated
	case ColPaymentMode:
		return &r.PaymentMode
	case ColValidTill:
		return &r.ValidTill
	}
	return nil
}

// Store reads and writes the full record list.
type Store interface {
	Load(ctx context.Context) ([]*Record, error)
	Save(ctx context.Context, records []*Record) error
}

// ParseAmount reads a money cell. Blank cells are null; thousands separators
// and a leading rupee marker are tolerated; negative values are rejected.
func ParseAmount(cell string) (decimal.NullDecimal, error) {
	s := strings.TrimSpace(cell)
	for _, prefix := range []string{"₹", "Rs.", "Rs", "INR"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || s == "-" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid amount %q", cell)
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("negative amount %q", cell)
	}
	return decimal.NewNullDecimal(d), nil
}
