package records

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// layout remembers the header exactly as read so a save writes it back
// unchanged, plus the column each position maps to.
type layout struct {
	header []string
	cols   []string // canonical name per position, "" for unknown
}

func defaultLayout() layout {
	h := Headers()
	return layout{header: h, cols: append([]string{}, h...)}
}

func newLayout(header []string) layout {
	l := layout{header: append([]string{}, header...), cols: make([]string, len(header))}
	seen := map[string]bool{}
	for i, h := range header {
		if c := canonical(h); c != "" && !seen[c] {
			l.cols[i] = c
			seen[c] = true
		}
	}
	return l
}

func (l layout) has(col string) bool {
	for _, c := range l.cols {
		if c == col {
			return true
		}
	}
	return false
}

// extraKey names an unknown column. Blank headers get a positional key.
func (l layout) extraKey(i int) string {
	if h := strings.TrimSpace(l.header[i]); h != "" {
		return h
	}
	return fmt.Sprintf("#%d", i+1)
}

// withOutcomeColumns appends any missing outcome column to the header.
func (l layout) withOutcomeColumns() layout {
	out := layout{header: append([]string{}, l.header...), cols: append([]string{}, l.cols...)}
	for _, c := range outcomeColumns {
		if !out.has(c) {
			out.header = append(out.header, c)
			out.cols = append(out.cols, c)
		}
	}
	return out
}

// decode turns raw rows into records. Rows with no content are dropped.
// lines holds the 1-based sheet line of each record, the header being line 1.
func decode(header []string, rows [][]string) (l layout, out []*Record, lines []int, err error) {
	l = newLayout(header)
	var missing []string
	for _, c := range requiredColumns {
		if !l.has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return l, nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	for n, row := range rows {
		if blank(row) {
			continue
		}
		rec := &Record{Row: len(out) + 1}
		for i, col := range l.cols {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if col == "" {
				if strings.TrimSpace(cell) != "" {
					if rec.Extra == nil {
						rec.Extra = map[string]string{}
					}
					rec.Extra[l.extraKey(i)] = cell
				}
				continue
			}
			if f := rec.amountField(col); f != nil {
				v, err := ParseAmount(cell)
				if err != nil {
					// Only this record fails, and only if it is still pending.
					rec.Invalid = append(rec.Invalid, AmountError{Column: col, Cell: cell, Reason: err.Error()})
					continue
				}
				*f = v
				continue
			}
			*rec.textField(col) = strings.TrimSpace(cell)
		}
		out = append(out, rec)
		lines = append(lines, n+2)
	}
	return l, out, lines, nil
}

// encode renders records under l. Cells are nil, string or decimal.Decimal.
func (l layout) encode(records []*Record) [][]interface{} {
	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		row := make([]interface{}, len(l.cols))
		for i, col := range l.cols {
			switch {
			case col == "":
				if v, ok := rec.Extra[l.extraKey(i)]; ok {
					row[i] = v
				}
			case rec.amountField(col) != nil:
				if raw, bad := rec.invalidCell(col); bad {
					row[i] = raw
				} else if f := rec.amountField(col); f.Valid {
					row[i] = f.Decimal
				}
			default:
				if s := *rec.textField(col); s != "" {
					row[i] = s
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case decimal.Decimal:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
