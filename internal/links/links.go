// Package links loads the linked-item tokens and the sheet config file.
package links

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/sheetsync/internal/blob"
)

// LinkedItem is one Plaid item with the access token granted for it.
type LinkedItem struct {
	ItemID      string `json:"item_id"`
	AccessToken string `json:"access_token"`
}

// SheetConfig points at the spreadsheet transactions are synced into.
type SheetConfig struct {
	SpreadsheetID string `json:"spreadsheetId"`
}

// LoadLinkedItems reads the token file. A missing file yields no items.
func LoadLinkedItems(ctx context.Context, store blob.Store) ([]LinkedItem, error) {
	data, err := store.Read(ctx)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("LoadLinkedItems: %w", err)
	}

	var items []LinkedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("LoadLinkedItems: parsing %s: %w", store.Location(), err)
	}
	return items, nil
}

// SaveLinkedItems overwrites the token file.
func SaveLinkedItems(ctx context.Context, store blob.Store, items []LinkedItem) error {
	if items == nil {
		items = []LinkedItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("SaveLinkedItems: encoding: %w", err)
	}
	if err := store.Write(ctx, data); err != nil {
		return fmt.Errorf("SaveLinkedItems: %w", err)
	}
	return nil
}

// UpsertLinkedItem replaces the entry with the same item id or appends one.
func UpsertLinkedItem(items []LinkedItem, item LinkedItem) []LinkedItem {
	for i := range items {
		if items[i].ItemID == item.ItemID {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

// RemoveLinkedItem drops the entry with itemID and reports whether one existed.
func RemoveLinkedItem(items []LinkedItem, itemID string) ([]LinkedItem, bool) {
	out := make([]LinkedItem, 0, len(items))
	removed := false
	for _, it := range items {
		if it.ItemID == itemID {
			removed = true
			continue
		}
		out = append(out, it)
	}
	return out, removed
}

// FilterByEnvironment keeps the items whose token was issued for env
// (tokens look like access-sandbox-<uuid>).
func FilterByEnvironment(items []LinkedItem, env string) []LinkedItem {
	prefix := "access-" + strings.ToLower(env) + "-"
	var out []LinkedItem
	for _, it := range items {
		if strings.HasPrefix(strings.ToLower(it.AccessToken), prefix) {
			out = append(out, it)
		}
	}
	return out
}

// MaskToken hides all but the last four characters of a token.
func MaskToken(token string) string {
	const visible = 4
	if len(token) <= visible {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-visible) + token[len(token)-visible:]
}

// LoadSheetConfig reads the sheet config file.
func LoadSheetConfig(ctx context.Context, store blob.Store) (*SheetConfig, error) {
	data, err := store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("LoadSheetConfig: %w", err)
	}

	var cfg SheetConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("LoadSheetConfig: parsing %s: %w", store.Location(), err)
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("LoadSheetConfig: %s has no spreadsheetId", store.Location())
	}
	return &cfg, nil
}

// SaveSheetConfig overwrites the sheet config file.
func SaveSheetConfig(ctx context.Context, store blob.Store, cfg SheetConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("SaveSheetConfig: encoding: %w", err)
	}
	if err := store.Write(ctx, data); err != nil {
		return fmt.Errorf("SaveSheetConfig: %w", err)
	}
	return nil
}
