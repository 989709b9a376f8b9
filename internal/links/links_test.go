package links

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dvloznov/sheetsync/internal/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBlob is an in-memory blob.Store.
type memBlob struct {
	data    []byte
	readErr error
}

func (m *memBlob) Read(ctx context.Context) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if m.data == nil {
		return nil, blob.ErrNotFound
	}
	return m.data, nil
}

func (m *memBlob) Write(ctx context.Context, data []byte) error {
	m.data = data
	return nil
}

func (m *memBlob) Location() string { return "mem://tokens.json" }

func TestLoadLinkedItems(t *testing.T) {
	store := &memBlob{data: []byte(`[
		{"item_id": "item-1", "access_token": "access-sandbox-aaa"},
		{"item_id": "item-2", "access_token": "access-development-bbb"}
	]`)}

	items, err := LoadLinkedItems(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, LinkedItem{ItemID: "item-1", AccessToken: "access-sandbox-aaa"}, items[0])
}

func TestLoadLinkedItems_Missing(t *testing.T) {
	items, err := LoadLinkedItems(context.Background(), &memBlob{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLoadLinkedItems_Errors(t *testing.T) {
	_, err := LoadLinkedItems(context.Background(), &memBlob{data: []byte(`{`)})
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = LoadLinkedItems(context.Background(), &memBlob{readErr: boom})
	assert.ErrorIs(t, err, boom)
}

func TestSaveAndUpsertLinkedItems(t *testing.T) {
	ctx := context.Background()
	store := blob.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))

	var items []LinkedItem
	items = UpsertLinkedItem(items, LinkedItem{ItemID: "item-1", AccessToken: "access-sandbox-old"})
	items = UpsertLinkedItem(items, LinkedItem{ItemID: "item-2", AccessToken: "access-sandbox-two"})
	items = UpsertLinkedItem(items, LinkedItem{ItemID: "item-1", AccessToken: "access-sandbox-new"})
	require.NoError(t, SaveLinkedItems(ctx, store, items))

	loaded, err := LoadLinkedItems(ctx, store)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "access-sandbox-new", loaded[0].AccessToken)
}

func TestRemoveLinkedItem(t *testing.T) {
	items := []LinkedItem{{ItemID: "a"}, {ItemID: "b"}, {ItemID: "c"}}

	kept, removed := RemoveLinkedItem(items, "b")
	assert.True(t, removed)
	assert.Equal(t, []LinkedItem{{ItemID: "a"}, {ItemID: "c"}}, kept)
	assert.Len(t, items, 3)

	_, removed = RemoveLinkedItem(items, "z")
	assert.False(t, removed)
}

func TestFilterByEnvironment(t *testing.T) {
	items := []LinkedItem{
		{ItemID: "1", AccessToken: "access-sandbox-aaa"},
		{ItemID: "2", AccessToken: "access-development-bbb"},
		{ItemID: "3", AccessToken: "ACCESS-SANDBOX-ccc"},
		{ItemID: "4", AccessToken: "public-sandbox-ddd"},
	}

	got := FilterByEnvironment(items, "Sandbox")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ItemID)
	assert.Equal(t, "3", got[1].ItemID)

	assert.Empty(t, FilterByEnvironment(items, "production"))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "***************abc1", MaskToken("access-sandbox-abc1"))
	assert.Equal(t, "***", MaskToken("abc"))
	assert.Equal(t, "", MaskToken(""))
}

func TestSheetConfig(t *testing.T) {
	ctx := context.Background()
	store := &memBlob{}

	_, err := LoadSheetConfig(ctx, store)
	assert.ErrorIs(t, err, blob.ErrNotFound)

	require.NoError(t, SaveSheetConfig(ctx, store, SheetConfig{SpreadsheetID: "sheet-123"}))
	assert.Contains(t, string(store.data), `"spreadsheetId": "sheet-123"`)

	cfg, err := LoadSheetConfig(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "sheet-123", cfg.SpreadsheetID)

	store.data = []byte(`{}`)
	_, err = LoadSheetConfig(ctx, store)
	assert.Error(t, err)
}
