// Package reconcile merges freshly fetched transactions into the stored table.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/sheetsync/internal/domain"
)

// SortPolicy decides where pending rows land relative to settled ones.
type SortPolicy int

const (
	// PendingFirst puts pending rows above settled rows.
	PendingFirst SortPolicy = iota
	// PendingLast puts pending rows below settled rows.
	PendingLast
)

func (p SortPolicy) String() string {
	switch p {
	case PendingFirst:
		return "pending-first"
	case PendingLast:
		return "pending-last"
	default:
		return fmt.Sprintf("SortPolicy(%d)", int(p))
	}
}

// ParseSortPolicy parses "pending-first" or "pending-last". Empty means PendingFirst.
func ParseSortPolicy(s string) (SortPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending-first":
		return PendingFirst, nil
	case "pending-last":
		return PendingLast, nil
	default:
		return PendingFirst, fmt.Errorf("ParseSortPolicy: unknown sort order %q", s)
	}
}

// Merge reconciles incoming records against the existing table.
//
// Existing pending rows are dropped for every item present in incoming,
// incoming rows already stored are discarded, and the union is sorted by
// pending (per order), datetime descending, then name. The result is padded
// with blank rows so it never covers fewer rows than existing.
func Merge(existing Table, incoming []domain.TransactionRecord, order SortPolicy) Table {
	if existing.RowCount() == 0 {
		return Table{Records: incoming, ExtraColumns: existing.ExtraColumns}
	}

	items := make(map[string]struct{}, len(incoming))
	for _, r := range incoming {
		items[r.ItemID] = struct{}{}
	}

	kept := make([]domain.TransactionRecord, 0, len(existing.Records)+len(incoming))
	seen := make(map[string]struct{}, len(existing.Records))
	for _, r := range existing.Records {
		if _, ok := items[r.ItemID]; ok && r.Pending {
			continue
		}
		kept = append(kept, r)
		seen[r.TransactionID] = struct{}{}
	}

	for _, r := range incoming {
		if _, ok := seen[r.TransactionID]; ok {
			continue
		}
		kept = append(kept, r)
		seen[r.TransactionID] = struct{}{}
	}

	Sort(kept, order)

	padding := existing.RowCount() - len(kept)
	if padding < 0 {
		padding = 0
	}
	return Table{Records: kept, Padding: padding, ExtraColumns: existing.ExtraColumns}
}

// Sort orders records in place by pending (per order), datetime descending,
// then name ascending. Equal keys keep their relative order.
func Sort(records []domain.TransactionRecord, order SortPolicy) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Pending != b.Pending {
			if order == PendingLast {
				return !a.Pending
			}
			return a.Pending
		}
		if !a.Datetime.Equal(b.Datetime) {
			return a.Datetime.After(b.Datetime)
		}
		return a.Name < b.Name
	})
}
