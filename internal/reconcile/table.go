package reconcile

import (
	"fmt"

	"github.com/dvloznov/sheetsync/internal/domain"
)

// Table is the persisted row set: records followed by Padding blank rows.
// ExtraColumns are sheet columns outside the schema, written after it.
type Table struct {
	Records      []domain.TransactionRecord
	Padding      int
	ExtraColumns []string
}

// TableFromRows parses a store read into a Table. Blank rows already in the
// sheet count toward Padding so a later merge never shrinks the range.
func TableFromRows(rows [][]string) (Table, error) {
	records, blank, err := domain.RecordsFromRows(rows)
	if err != nil {
		return Table{}, fmt.Errorf("TableFromRows: %w", err)
	}
	t := Table{Records: records, Padding: blank}
	if len(rows) > 0 {
		t.ExtraColumns = domain.ExtraColumns(rows[0])
	}
	return t, nil
}

// RowCount is the number of data rows, blank rows included.
func (t Table) RowCount() int {
	return len(t.Records) + t.Padding
}

// Header is the schema followed by the extra columns.
func (t Table) Header() []string {
	return append(domain.Header(), t.ExtraColumns...)
}

// Values renders the header, every record and the blank padding rows.
func (t Table) Values() [][]string {
	header := t.Header()
	out := make([][]string, 0, t.RowCount()+1)
	out = append(out, header)
	for i := range t.Records {
		out = append(out, t.Records[i].RowWith(t.ExtraColumns))
	}
	for i := 0; i < t.Padding; i++ {
		out = append(out, make([]string, len(header)))
	}
	return out
}

// IDs returns the transaction ids in row order.
func (t Table) IDs() []string {
	ids := make([]string, len(t.Records))
	for i, r := range t.Records {
		ids[i] = r.TransactionID
	}
	return ids
}
