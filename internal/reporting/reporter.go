// Package reporting renders a batch run summary for the operator, either as
// the plain-text report or as JSON for other tools.
package reporting

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/challan-cli/internal/batch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Formats lists the accepted output formats.
var Formats = []string{"text", "json"}

// Reporter writes run summaries to an output.
type Reporter interface {
	// Write renders one summary.
	Write(s *batch.Summary) error
	// Close releases the output. Closing a stdout reporter is a no-op.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format writing to outputPath, or to stdout when
// outputPath is empty or "stdout".
func New(format, outputPath string) (Reporter, error) {
	if !supported(format) {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	if outputPath == "" || outputPath == "stdout" {
		return NewWriter(format, &nopWriteCloser{os.Stdout})
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}
	return NewWriter(format, f)
}

// NewWriter creates a reporter over w, which it closes on Close.
func NewWriter(format string, w io.WriteCloser) (Reporter, error) {
	switch format {
	case "text":
		return &textReporter{w: w}, nil
	case "json":
		return &jsonReporter{w: w}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func supported(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

type textReporter struct {
	w io.WriteCloser
}

func (r *textReporter) Write(s *batch.Summary) error {
	return s.WriteText(r.w)
}

func (r *textReporter) Close() error { return r.w.Close() }

type jsonReporter struct {
	w io.WriteCloser
}

// summaryDoc adds the derived figures to the summary's own fields.
type summaryDoc struct {
	*batch.Summary
	Processed   int    `json:"processed"`
	SuccessRate int    `json:"success_rate"`
	AmountPaid  string `json:"amount_paid"`
	DurationSec int64  `json:"duration_seconds"`
}

func (r *jsonReporter) Write(s *batch.Summary) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaryDoc{
		Summary:     s,
		Processed:   s.Processed(),
		SuccessRate: s.SuccessRate(),
		AmountPaid:  s.AmountPaid().StringFixed(2),
		DurationSec: int64(s.Duration().Seconds()),
	})
}

func (r *jsonReporter) Close() error { return r.w.Close() }
