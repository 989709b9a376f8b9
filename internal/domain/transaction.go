package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// DatetimeLayout is the layout used for the datetime column.
const DatetimeLayout = "2006-01-02 15:04:05"

// TransactionRecord is one flattened transaction as stored in the spreadsheet.
// Amounts follow the source convention: positive means money leaving the account.
type TransactionRecord struct {
	TransactionID        string `json:"transaction_id"`
	PendingTransactionID string `json:"pending_transaction_id"`
	Pending              bool   `json:"pending"`

	AccountID       string `json:"account_id"`
	AccountName     string `json:"account_name"`
	ItemID          string `json:"item_id"`
	InstitutionID   string `json:"institution_id"`
	InstitutionName string `json:"institution_name"`

	Date     civil.Date `json:"date"`
	Datetime time.Time  `json:"datetime"` // wall clock, no zone

	Name         string          `json:"name"`
	MerchantName string          `json:"merchant_name"`
	Amount       decimal.Decimal `json:"amount"`

	ISOCurrencyCode        string `json:"iso_currency_code"`
	UnofficialCurrencyCode string `json:"unofficial_currency_code"`
	PaymentChannel         string `json:"payment_channel"`
	CategoryID             string `json:"category_id"`

	Category1 string `json:"category1"`
	Category2 string `json:"category2"`
	Category3 string `json:"category3"`

	PersonalFinanceCategoryPrimary  string `json:"personal_finance_category_primary"`
	PersonalFinanceCategoryDetailed string `json:"personal_finance_category_detailed"`

	Location Location `json:"location"`

	// Extra holds cells of sheet columns outside Columns, keyed by header.
	Extra map[string]string `json:"extra,omitempty"`

	blank blankCells
}

// blankCells marks typed columns that were empty in the sheet, so they are
// written back empty instead of as zero values.
type blankCells uint8

const (
	blankPending blankCells = 1 << iota
	blankDatetime
	blankAmount
)

// Location holds the flattened location sub-fields of a transaction.
type Location struct {
	Address     string `json:"address"`
	City        string `json:"city"`
	Region      string `json:"region"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	StoreNumber string `json:"store_number"`
}

// FormatDatetime renders the datetime column, or "" for a zero time.
func (r *TransactionRecord) FormatDatetime() string {
	if r.Datetime.IsZero() {
		return ""
	}
	return r.Datetime.Format(DatetimeLayout)
}

// FormatDate renders the date column, or "" for a zero date.
func (r *TransactionRecord) FormatDate() string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.String()
}

// MidnightOf returns midnight of d as a zone-less wall clock time.
func MidnightOf(d civil.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}
