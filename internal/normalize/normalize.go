// Package normalize flattens raw aggregator transactions into sheet records.
package normalize

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sheetsync/internal/domain"
)

// AccountLookup maps an account id to its display name.
type AccountLookup map[string]string

// Account is the subset of an account needed to build a lookup.
type Account struct {
	AccountID string
	Name      string
}

// NewAccountLookup builds a lookup from the accounts of a transactions response.
func NewAccountLookup(accounts []Account) AccountLookup {
	lookup := make(AccountLookup, len(accounts))
	for _, a := range accounts {
		lookup[a.AccountID] = a.Name
	}
	return lookup
}

// ItemMetadata is stamped onto every record of one linked item.
type ItemMetadata struct {
	ItemID          string
	InstitutionID   string
	InstitutionName string
}

// LookupError reports a transaction whose account is not in the lookup.
type LookupError struct {
	AccountID     string
	TransactionID string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("transaction %s references unknown account %s", e.TransactionID, e.AccountID)
}

// FieldError reports a missing or mistyped field in a raw transaction.
type FieldError struct {
	Index int
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("transaction %d: %v", e.Index, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

const maxCategoryLevels = 3

// Normalize converts a raw batch into records. Any malformed record rejects
// the whole batch.
func Normalize(raw []map[string]interface{}, accounts AccountLookup, item ItemMetadata) ([]domain.TransactionRecord, error) {
	out := make([]domain.TransactionRecord, 0, len(raw))
	for i, obj := range raw {
		rec, err := normalizeOne(obj, accounts, item)
		if err != nil {
			var lookupErr *LookupError
			if errors.As(err, &lookupErr) {
				return nil, fmt.Errorf("Normalize: %w", err)
			}
			return nil, fmt.Errorf("Normalize: %w", &FieldError{Index: i, Err: err})
		}
		out = append(out, rec)
	}
	return out, nil
}

func normalizeOne(obj map[string]interface{}, accounts AccountLookup, item ItemMetadata) (domain.TransactionRecord, error) {
	var rec domain.TransactionRecord

	id, err := getStringField(obj, "transaction_id", true)
	if err != nil {
		return rec, err
	}
	accountID, err := getStringField(obj, "account_id", true)
	if err != nil {
		return rec, err
	}
	dateStr, err := getStringField(obj, "date", true)
	if err != nil {
		return rec, err
	}
	date, err := civil.ParseDate(dateStr)
	if err != nil {
		return rec, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}
	amount, err := getDecimalField(obj, "amount", true)
	if err != nil {
		return rec, err
	}
	pending, err := getBoolField(obj, "pending", true)
	if err != nil {
		return rec, err
	}

	accountName, ok := accounts[accountID]
	if !ok {
		return rec, &LookupError{AccountID: accountID, TransactionID: id}
	}

	rec = domain.TransactionRecord{
		TransactionID:   id,
		Pending:         pending,
		AccountID:       accountID,
		AccountName:     accountName,
		ItemID:          item.ItemID,
		InstitutionID:   item.InstitutionID,
		InstitutionName: item.InstitutionName,
		Date:            date,
		Datetime:        domain.MidnightOf(date),
		Amount:          amount,
	}

	strs := []struct {
		key  string
		dest *string
	}{
		{"pending_transaction_id", &rec.PendingTransactionID},
		{"name", &rec.Name},
		{"merchant_name", &rec.MerchantName},
		{"iso_currency_code", &rec.ISOCurrencyCode},
		{"unofficial_currency_code", &rec.UnofficialCurrencyCode},
		{"payment_channel", &rec.PaymentChannel},
		{"category_id", &rec.CategoryID},
	}
	for _, s := range strs {
		v, err := getStringField(obj, s.key, false)
		if err != nil {
			return rec, err
		}
		*s.dest = v
	}

	dtStr, err := getStringField(obj, "datetime", false)
	if err != nil {
		return rec, err
	}
	if dtStr != "" {
		dt, err := time.Parse(time.RFC3339, dtStr)
		if err != nil {
			return rec, fmt.Errorf("invalid datetime %q: %w", dtStr, err)
		}
		rec.Datetime = domain.WallClock(dt)
	}

	categories, err := getStringSliceField(obj, "category")
	if err != nil {
		return rec, err
	}
	levels := []*string{&rec.Category1, &rec.Category2, &rec.Category3}
	for i := 0; i < len(categories) && i < maxCategoryLevels; i++ {
		*levels[i] = categories[i]
	}

	pfc, err := getMapField(obj, "personal_finance_category")
	if err != nil {
		return rec, err
	}
	if pfc != nil {
		if rec.PersonalFinanceCategoryPrimary, err = getStringField(pfc, "primary", false); err != nil {
			return rec, err
		}
		if rec.PersonalFinanceCategoryDetailed, err = getStringField(pfc, "detailed", false); err != nil {
			return rec, err
		}
	}

	loc, err := getMapField(obj, "location")
	if err != nil {
		return rec, err
	}
	if loc != nil {
		rec.Location, err = normalizeLocation(loc)
		if err != nil {
			return rec, err
		}
	}

	return rec, nil
}

func normalizeLocation(loc map[string]interface{}) (domain.Location, error) {
	var out domain.Location
	strs := []struct {
		key  string
		dest *string
	}{
		{"address", &out.Address},
		{"city", &out.City},
		{"region", &out.Region},
		{"postal_code", &out.PostalCode},
		{"country", &out.Country},
		{"store_number", &out.StoreNumber},
	}
	for _, s := range strs {
		v, err := getStringField(loc, s.key, false)
		if err != nil {
			return out, fmt.Errorf("location: %w", err)
		}
		*s.dest = v
	}

	var err error
	if out.Lat, err = getNumberString(loc, "lat"); err != nil {
		return out, fmt.Errorf("location: %w", err)
	}
	if out.Lon, err = getNumberString(loc, "lon"); err != nil {
		return out, fmt.Errorf("location: %w", err)
	}
	return out, nil
}
