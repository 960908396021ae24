package records

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// writeBackColumns are the only cells Save changes on a loaded row.
var writeBackColumns = map[string]bool{
	ColStatus:      true,
	ColCRN:         true,
	ColPDFPath:     true,
	ColDateCreated: true,
	ColPaymentMode: true,
}

// XLSXStore keeps records on the first sheet of an Excel workbook. Save edits
// the loaded workbook in place: only outcome cells of known rows change, so
// the operator's other cells keep their type, number format and style.
type XLSXStore struct {
	path string

	mu       sync.Mutex
	layout   *layout
	sheet    string
	lines    map[*Record]int
	lastLine int
}

// NewXLSXStore returns a store for the workbook at path.
func NewXLSXStore(path string) *XLSXStore {
	return &XLSXStore{path: path}
}

// Path returns the workbook location.
func (s *XLSXStore) Path() string { return s.path }

// Load implements Store.
func (s *XLSXStore) Load(ctx context.Context) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrMissingColumn, sheet)
	}

	l, recs, lines, err := decode(rows[0], rows[1:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	s.mu.Lock()
	s.layout = &l
	s.sheet = sheet
	s.lines = make(map[*Record]int, len(recs))
	for i, rec := range recs {
		s.lines[rec] = lines[i]
	}
	s.lastLine = len(rows)
	s.mu.Unlock()
	return recs, nil
}

// Save implements Store. Records returned by Load are updated on their own
// line; any other record is appended below the last line.
func (s *XLSXStore) Save(ctx context.Context, records []*Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.layout == nil {
		return s.create(records)
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	l := s.layout.withOutcomeColumns()
	for i := len(s.layout.header); i < len(l.header); i++ {
		if err := setCell(f, s.sheet, i+1, 1, l.header[i]); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	added := map[*Record]int{}
	next := s.lastLine + 1
	for _, rec := range records {
		line, ok := s.lines[rec]
		if !ok {
			if err := writeRow(f, s.sheet, next, l.encode([]*Record{rec})[0]); err != nil {
				return err
			}
			added[rec] = next
			next++
			continue
		}
		for i, col := range l.cols {
			if !writeBackColumns[col] {
				continue
			}
			if err := setCell(f, s.sheet, i+1, line, *rec.textField(col)); err != nil {
				return fmt.Errorf("write row %d: %w", rec.Row, err)
			}
		}
	}

	if err := saveWorkbook(f, s.path); err != nil {
		return err
	}
	s.layout = &l
	for rec, line := range added {
		s.lines[rec] = line
	}
	s.lastLine = next - 1
	return nil
}

// create writes a new workbook. It refuses to replace one that was never loaded.
func (s *XLSXStore) create(records []*Record) error {
	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("save %s: workbook exists but was not loaded", s.path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat workbook %s: %w", s.path, err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	l := defaultLayout()

	header := make([]interface{}, len(l.header))
	for i, h := range l.header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lines := make(map[*Record]int, len(records))
	for i, row := range l.encode(records) {
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
		lines[records[i]] = i + 2
	}

	if err := saveWorkbook(f, s.path); err != nil {
		return err
	}
	s.layout = &l
	s.sheet = sheet
	s.lines = lines
	s.lastLine = len(records) + 1
	return nil
}

// writeRow fills a whole line from encoded cells. Amounts are stored as numbers.
func writeRow(f *excelize.File, sheet string, line int, row []interface{}) error {
	for j, v := range row {
		if d, ok := v.(decimal.Decimal); ok {
			row[j] = d.InexactFloat64()
		}
	}
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("write line %d: %w", line, err)
	}
	return nil
}

// setCell writes value as text unless the cell already holds it. The cell
// style is kept either way.
func setCell(f *excelize.File, sheet string, col, line int, value string) error {
	name, err := excelize.CoordinatesToCellName(col, line)
	if err != nil {
		return err
	}
	cur, err := f.GetCellValue(sheet, name, excelize.Options{RawCellValue: true})
	if err != nil {
		return err
	}
	if cur == value {
		return nil
	}
	return f.SetCellStr(sheet, name, value)
}

// saveWorkbook writes to a sibling temp file and renames it over path.
func saveWorkbook(f *excelize.File, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".records-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	name := tmp.Name()
	tmp.Close()
	defer os.Remove(name)

	if err := f.SaveAs(name); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("replace workbook %s: %w", path, err)
	}
	return nil
}
