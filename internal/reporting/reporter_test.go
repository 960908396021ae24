package reporting_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/challan-cli/internal/batch"
	"github.com/xkilldash9x/challan-cli/internal/reporting"
)

type closeTracker struct {
	bytes.Buffer
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func sampleSummary() *batch.Summary {
	start := time.Date(2025, time.July, 1, 10, 0, 0, 0, time.UTC)
	return &batch.Summary{
		RunID:    "run-1",
		Started:  start,
		Finished: start.Add(2 * time.Minute),
		Total:    3,
		Skipped:  1,
		Succeeded: []batch.Outcome{
			{Row: 2, Company: "Acme", OK: true, Status: "Challan created successfully", CRN: "CRN1751364000", PDFPath: "/d/a.pdf", Amount: decimal.NewFromInt(2500)},
		},
		Failed: []batch.Outcome{
			{Row: 3, Company: "Bharat", Status: "Login failed", Reason: "portal not reachable"},
		},
	}
}

func TestNew_Stdout(t *testing.T) {
	for _, path := range []string{"", "stdout"} {
		r, err := reporting.New("text", path)
		require.NoError(t, err)
		assert.NoError(t, r.Close(), "closing stdout must be a no-op")
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")

	r, err := reporting.New("json", path)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleSummary()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id": "run-1"`)
}

func TestNew_Failures(t *testing.T) {
	t.Run("Unsupported Format Creates No File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.sarif")
		r, err := reporting.New("sarif", path)
		assert.Nil(t, r)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported output format: sarif")
		assert.NoFileExists(t, path)
	})

	t.Run("File Creation", func(t *testing.T) {
		r, err := reporting.New("text", t.TempDir())
		assert.Nil(t, r)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create output file")
	})
}

func TestTextReporter(t *testing.T) {
	out := &closeTracker{}
	r, err := reporting.NewWriter("text", out)
	require.NoError(t, err)

	require.NoError(t, r.Write(sampleSummary()))
	require.NoError(t, r.Close())

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Income Tax Challan Automation Report\n"))
	assert.Contains(t, text, "Successful: 1 (50%)")
	assert.Contains(t, text, "Amount:     ₹2,500.00")
	assert.Contains(t, text, "portal not reachable")
	assert.True(t, out.closed)
}

func TestJSONReporter(t *testing.T) {
	out := &closeTracker{}
	r, err := reporting.NewWriter("json", out)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleSummary()))

	var doc struct {
		RunID       string          `json:"run_id"`
		Total       int             `json:"total"`
		Processed   int             `json:"processed"`
		SuccessRate int             `json:"success_rate"`
		AmountPaid  string          `json:"amount_paid"`
		DurationSec int64           `json:"duration_seconds"`
		Succeeded   []batch.Outcome `json:"succeeded"`
		Failed      []batch.Outcome `json:"failed"`
	}
	require.NoError(t, jsoniter.Unmarshal(out.Bytes(), &doc))

	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, 3, doc.Total)
	assert.Equal(t, 2, doc.Processed)
	assert.Equal(t, 50, doc.SuccessRate)
	assert.Equal(t, "2500.00", doc.AmountPaid)
	assert.Equal(t, int64(120), doc.DurationSec)
	require.Len(t, doc.Succeeded, 1)
	assert.Equal(t, "CRN1751364000", doc.Succeeded[0].CRN)
	assert.True(t, doc.Succeeded[0].Amount.Equal(decimal.NewFromInt(2500)))
	require.Len(t, doc.Failed, 1)
	assert.Equal(t, "portal not reachable", doc.Failed[0].Reason)
}
