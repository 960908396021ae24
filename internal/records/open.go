package records

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned by Open for extensions other than xlsx, xlsm and csv.
var ErrUnsupportedFormat = errors.New("records: unsupported file format")

const templateSheet = "Challan Data"

// Open picks a Store implementation from the file extension.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return NewXLSXStore(path), nil
	case ".csv":
		return NewCSVStore(path), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// WriteTemplate creates an empty record file with every header. It refuses to
// overwrite an existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("write template: %s: %w", path, os.ErrExist)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return writeXLSXTemplate(path)
	case ".csv":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(Headers()); err != nil {
			return err
		}
		w.Flush()
		return writeFileAtomic(path, buf.Bytes())
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

func writeXLSXTemplate(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), templateSheet); err != nil {
		return err
	}
	headers := Headers()
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(templateSheet, "A1", &row); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"366092"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(templateSheet, 1, 1, style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(templateSheet, "A", last, 18); err != nil {
		return err
	}
	if err := f.SetPanes(templateSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return err
	}
	return saveWorkbook(f, path)
}
