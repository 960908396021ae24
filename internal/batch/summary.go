package batch

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is what happened to one processed record.
type Outcome struct {
	Row     int             `json:"row"`
	Company string          `json:"company"`
	OK      bool            `json:"ok"`
	Status  string          `json:"status"`
	Reason  string          `json:"reason,omitempty"`
	CRN     string          `json:"crn,omitempty"`
	PDFPath string          `json:"pdf_path,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
}

// Summary describes a finished or interrupted run.
type Summary struct {
	RunID     string    `json:"run_id"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	Total     int       `json:"total"`
	Skipped   int       `json:"skipped"`
	Succeeded []Outcome `json:"succeeded"`
	Failed    []Outcome `json:"failed"`
}

func (s *Summary) add(o Outcome) {
	if o.OK {
		s.Succeeded = append(s.Succeeded, o)
	} else {
		s.Failed = append(s.Failed, o)
	}
}

// Processed counts records that went through the portal this run.
func (s Summary) Processed() int { return len(s.Succeeded) + len(s.Failed) }

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.Finished.Before(s.Started) {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// SuccessRate is the whole-number percentage of processed records that succeeded.
func (s Summary) SuccessRate() int {
	if s.Processed() == 0 {
		return 0
	}
	return int(math.Round(float64(len(s.Succeeded)) * 100 / float64(s.Processed())))
}

// AmountPaid sums the challan totals of the successful records.
func (s Summary) AmountPaid() decimal.Decimal {
	total := decimal.Zero
	for _, o := range s.Succeeded {
		total = total.Add(o.Amount)
	}
	return total
}

// WriteText renders the summary as the plain-text report.
func (s Summary) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	heading(bw, "Income Tax Challan Automation Report", "=")
	fmt.Fprintf(bw, "Run ID:     %s\n", s.RunID)
	fmt.Fprintf(bw, "Started:    %s\n", s.Started.Format(TimestampLayout))
	fmt.Fprintf(bw, "Finished:   %s\n", s.Finished.Format(TimestampLayout))
	fmt.Fprintf(bw, "Duration:   %s\n\n", s.Duration().Round(time.Second))

	fmt.Fprintf(bw, "Records:    %d (%d skipped as already completed)\n", s.Total, s.Skipped)
	fmt.Fprintf(bw, "Processed:  %d\n", s.Processed())
	fmt.Fprintf(bw, "Successful: %d (%d%%)\n", len(s.Succeeded), s.SuccessRate())
	fmt.Fprintf(bw, "Failed:     %d\n", len(s.Failed))
	fmt.Fprintf(bw, "Amount:     %s\n", FormatINR(s.AmountPaid()))

	if len(s.Succeeded) > 0 {
		bw.WriteString("\n")
		heading(bw, "Challans Created", "-")
		tw := tabwriter.NewWriter(bw, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "Row\tCompany\tCRN\tAmount\tPDF")
		for _, o := range s.Succeeded {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.Row, o.Company, o.CRN, FormatINR(o.Amount), o.PDFPath)
		}
		tw.Flush()
	}
	if len(s.Failed) > 0 {
		bw.WriteString("\n")
		heading(bw, "Failures", "-")
		tw := tabwriter.NewWriter(bw, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "Row\tCompany\tStatus\tReason")
		for _, o := range s.Failed {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", o.Row, o.Company, o.Status, o.Reason)
		}
		tw.Flush()
	}
	return bw.Flush()
}

func heading(w *bufio.Writer, title, rule string) {
	w.WriteString(title + "\n")
	w.WriteString(strings.Repeat(rule, len(title)) + "\n\n")
}

// ReportName is the file name WriteReport uses for a run started at t.
func ReportName(t time.Time) string {
	return "challan_report_" + t.Format("20060102_150405") + ".txt"
}

// WriteReport writes the text report into dir and returns its path.
func WriteReport(dir string, s Summary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	path := filepath.Join(dir, ReportName(s.Started))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	if err := s.WriteText(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	return path, nil
}

// FormatINR renders d as rupees with Indian digit grouping, e.g. ₹12,34,567.00.
func FormatINR(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, frac := fixed[:len(fixed)-3], fixed[len(fixed)-3:]

	if len(whole) > 3 {
		head, tail := whole[:len(whole)-3], whole[len(whole)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		groups = append([]string{head}, groups...)
		whole = strings.Join(groups, ",") + "," + tail
	}
	return sign + "₹" + whole + frac
}
