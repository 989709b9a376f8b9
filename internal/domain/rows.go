package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// datetimeLayouts are accepted when reading the datetime column back. Sheets
// renders USER_ENTERED datetimes with the number format applied, which is the
// first layout; the others cover hand-edited cells.
var datetimeLayouts = []string{
	DatetimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// RecordsFromRows parses a store read. rows[0] is the header; columns are
// looked up by name. Fully blank rows are skipped and counted. Cells of
// columns outside Columns are kept in Extra, and empty typed cells are
// written back empty by Row.
func RecordsFromRows(rows [][]string) ([]TransactionRecord, int, error) {
	if len(rows) == 0 {
		return nil, 0, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.TrimSpace(name)] = i
	}
	if _, ok := index[ColTransactionID]; !ok {
		return nil, 0, fmt.Errorf("RecordsFromRows: header has no %q column", ColTransactionID)
	}

	var (
		records []TransactionRecord
		blank   int
	)
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			blank++
			continue
		}
		// Sheet rows are 1-based and row 1 is the header.
		sheetRow := i + 2
		rec, err := recordFromRow(index, row)
		if err != nil {
			return nil, 0, fmt.Errorf("RecordsFromRows: sheet row %d: %w", sheetRow, err)
		}
		records = append(records, rec)
	}
	return records, blank, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func recordFromRow(index map[string]int, row []string) (TransactionRecord, error) {
	cell := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := TransactionRecord{
		TransactionID:          cell(ColTransactionID),
		PendingTransactionID:   cell(ColPendingTransactionID),
		Pending:                strings.EqualFold(cell(ColPending), "true"),
		AccountID:              cell(ColAccountID),
		AccountName:            cell(ColAccountName),
		ItemID:                 cell(ColItemID),
		InstitutionID:          cell(ColInstitutionID),
		InstitutionName:        cell(ColInstitutionName),
		Name:                   cell(ColName),
		MerchantName:           cell(ColMerchantName),
		ISOCurrencyCode:        cell(ColISOCurrencyCode),
		UnofficialCurrencyCode: cell(ColUnofficialCurrencyCode),
		PaymentChannel:         cell(ColPaymentChannel),
		CategoryID:             cell(ColCategoryID),
		Category1:              cell(ColCategory1),
		Category2:              cell(ColCategory2),
		Category3:              cell(ColCategory3),

		PersonalFinanceCategoryPrimary:  cell(ColPersonalFinanceCategoryPrimary),
		PersonalFinanceCategoryDetailed: cell(ColPersonalFinanceCategoryDetailed),

		Location: Location{
			Address:     cell(ColAddress),
			City:        cell(ColCity),
			Region:      cell(ColRegion),
			PostalCode:  cell(ColPostalCode),
			Country:     cell(ColCountry),
			Lat:         cell(ColLat),
			Lon:         cell(ColLon),
			StoreNumber: cell(ColStoreNumber),
		},
	}
	if rec.TransactionID == "" {
		return rec, fmt.Errorf("missing %s", ColTransactionID)
	}
	if cell(ColPending) == "" {
		rec.blank |= blankPending
	}

	for name, i := range index {
		if ColumnIndex(name) >= 0 || name == "" || i >= len(row) || row[i] == "" {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[name] = row[i]
	}

	if s := cell(ColDate); s != "" {
		d, err := civil.ParseDate(s)
		if err != nil {
			return rec, fmt.Errorf("parsing %s %q: %w", ColDate, s, err)
		}
		rec.Date = d
	}

	if s := cell(ColDatetime); s != "" {
		dt, err := parseDatetime(s)
		if err != nil {
			return rec, fmt.Errorf("parsing %s %q: %w", ColDatetime, s, err)
		}
		rec.Datetime = dt
	} else {
		rec.blank |= blankDatetime
		if !rec.Date.IsZero() {
			rec.Datetime = MidnightOf(rec.Date)
		}
	}

	if s := cell(ColAmount); s != "" {
		amount, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
		if err != nil {
			return rec, fmt.Errorf("parsing %s %q: %w", ColAmount, s, err)
		}
		rec.Amount = amount
	} else {
		rec.blank |= blankAmount
	}

	return rec, nil
}

func parseDatetime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range datetimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return WallClock(t), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// WallClock drops the zone of t and keeps its wall clock reading.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
