package domain

import (
	"fmt"
	"strings"
)

// Column names, in the order they are written to the sheet.
const (
	ColTransactionID                   = "transaction_id"
	ColPendingTransactionID            = "pending_transaction_id"
	ColPending                         = "pending"
	ColAccountID                       = "account_id"
	ColAccountName                     = "account_name"
	ColItemID                          = "item_id"
	ColInstitutionID                   = "institution_id"
	ColInstitutionName                 = "institution_name"
	ColDate                            = "date"
	ColDatetime                        = "datetime"
	ColName                            = "name"
	ColMerchantName                    = "merchant_name"
	ColAmount                          = "amount"
	ColISOCurrencyCode                 = "iso_currency_code"
	ColUnofficialCurrencyCode          = "unofficial_currency_code"
	ColPaymentChannel                  = "payment_channel"
	ColCategoryID                      = "category_id"
	ColCategory1                       = "category1"
	ColCategory2                       = "category2"
	ColCategory3                       = "category3"
	ColPersonalFinanceCategoryPrimary  = "personal_finance_category_primary"
	ColPersonalFinanceCategoryDetailed = "personal_finance_category_detailed"
	ColAddress                         = "address"
	ColCity                            = "city"
	ColRegion                          = "region"
	ColPostalCode                      = "postal_code"
	ColCountry                         = "country"
	ColLat                             = "lat"
	ColLon                             = "lon"
	ColStoreNumber                     = "store_number"
)

// Columns is the fixed column schema. The account and item columns sit
// immediately after account_id.
var Columns = []string{
	ColTransactionID,
	ColPendingTransactionID,
	ColPending,
	ColAccountID,
	ColAccountName,
	ColItemID,
	ColInstitutionID,
	ColInstitutionName,
	ColDate,
	ColDatetime,
	ColName,
	ColMerchantName,
	ColAmount,
	ColISOCurrencyCode,
	ColUnofficialCurrencyCode,
	ColPaymentChannel,
	ColCategoryID,
	ColCategory1,
	ColCategory2,
	ColCategory3,
	ColPersonalFinanceCategoryPrimary,
	ColPersonalFinanceCategoryDetailed,
	ColAddress,
	ColCity,
	ColRegion,
	ColPostalCode,
	ColCountry,
	ColLat,
	ColLon,
	ColStoreNumber,
}

// Header returns a copy of Columns.
func Header() []string {
	h := make([]string, len(Columns))
	copy(h, Columns)
	return h
}

// ColumnIndex returns the zero-based position of name in Columns, or -1.
func ColumnIndex(name string) int {
	for i, c := range Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// ColumnLetter converts a 1-based column number to its A1 letters
// (1 -> A, 26 -> Z, 27 -> AA).
func ColumnLetter(n int) string {
	if n <= 0 {
		panic(fmt.Sprintf("ColumnLetter: column %d out of range", n))
	}
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}

// ExtraColumns returns the names in header that are not part of Columns, in
// header order. Unnamed columns are ignored.
func ExtraColumns(header []string) []string {
	var extra []string
	seen := make(map[string]bool)
	for _, name := range header {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] || ColumnIndex(name) >= 0 {
			continue
		}
		seen[name] = true
		extra = append(extra, name)
	}
	return extra
}

// Row renders the record in column order. Empty values are "".
func (r *TransactionRecord) Row() []string {
	pending := "FALSE"
	if r.Pending {
		pending = "TRUE"
	}
	if r.blank&blankPending != 0 && !r.Pending {
		pending = ""
	}
	datetime := r.FormatDatetime()
	if r.blank&blankDatetime != 0 {
		datetime = ""
	}
	amount := r.Amount.String()
	if r.blank&blankAmount != 0 && r.Amount.IsZero() {
		amount = ""
	}
	return []string{
		r.TransactionID,
		r.PendingTransactionID,
		pending,
		r.AccountID,
		r.AccountName,
		r.ItemID,
		r.InstitutionID,
		r.InstitutionName,
		r.FormatDate(),
		datetime,
		r.Name,
		r.MerchantName,
		amount,
		r.ISOCurrencyCode,
		r.UnofficialCurrencyCode,
		r.PaymentChannel,
		r.CategoryID,
		r.Category1,
		r.Category2,
		r.Category3,
		r.PersonalFinanceCategoryPrimary,
		r.PersonalFinanceCategoryDetailed,
		r.Location.Address,
		r.Location.City,
		r.Location.Region,
		r.Location.PostalCode,
		r.Location.Country,
		r.Location.Lat,
		r.Location.Lon,
		r.Location.StoreNumber,
	}
}

// RowWith renders Row followed by the record's cells for the extra columns.
func (r *TransactionRecord) RowWith(extra []string) []string {
	row := r.Row()
	for _, name := range extra {
		row = append(row, r.Extra[name])
	}
	return row
}

// BlankRow returns a row of empty cells as wide as Columns.
func BlankRow() []string {
	return make([]string, len(Columns))
}
