package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/sheetsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"sync", "items", "serve", "migrate", "runs", "mirror", "sheet"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	syncCmd, _, err := root.Find([]string{"sync"})
	require.NoError(t, err)
	for _, flag := range []string{"days", "env", "order", "dry-run", "force"} {
		assert.NotNil(t, syncCmd.Flags().Lookup(flag), flag)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

type recordingCloser struct {
	name  string
	order *[]string
	err   error
}

func (c recordingCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestClosersReverseOrder(t *testing.T) {
	var order []string
	first := errors.New("first")

	var cs closers
	cs.add(recordingCloser{name: "a", order: &order, err: errors.New("later")})
	cs.add(recordingCloser{name: "b", order: &order, err: first})
	cs.add(recordingCloser{name: "c", order: &order})

	err := cs.Close()
	assert.Equal(t, []string{"c", "b", "a"}, order)
	assert.Same(t, first, err)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestItemsAddAndRemove(t *testing.T) {
	tokens := filepath.Join(t.TempDir(), "tokens.json")
	t.Setenv("SYNC_TOKENS_FILE", tokens)
	t.Setenv("PLAID_ENV", "sandbox")

	_, err := run(t, "items", "add", "--item-id", "item-1", "--token", "access-sandbox-aaaa1111")
	require.NoError(t, err)
	_, err = run(t, "items", "add", "--item-id", "item-2", "--token", "access-production-bbbb2222")
	require.NoError(t, err)
	_, err = run(t, "items", "add", "--item-id", "item-1", "--token", "access-sandbox-cccc3333")
	require.NoError(t, err)

	out, err := run(t, "items")
	require.NoError(t, err)
	assert.Contains(t, out, "1 linked item(s) in sandbox")
	assert.Contains(t, out, "3333")
	assert.NotContains(t, out, "cccc3333")

	out, err = run(t, "items", "--env", "production")
	require.NoError(t, err)
	assert.Contains(t, out, "item-2")

	_, err = run(t, "items", "remove", "item-2")
	require.NoError(t, err)
	_, err = run(t, "items", "remove", "item-2")
	assert.Error(t, err)

	data, err := os.ReadFile(tokens)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "item-2")

	_, err = run(t, "items", "add", "--item-id", "x", "--token", "public-sandbox-1")
	assert.Error(t, err)
}

func TestSheetSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.json")
	t.Setenv("SHEETS_CONFIG_FILE", path)
	t.Setenv("SHEETS_SPREADSHEET_ID", "")

	_, err := run(t, "sheet", "set", "sheet-42")
	require.NoError(t, err)

	out, err := run(t, "sheet")
	require.NoError(t, err)
	assert.Equal(t, "sheet-42\n", out)
}

func TestResolveEnv(t *testing.T) {
	cfg := &config.Config{Plaid: config.PlaidConfig{Env: "sandbox"}}

	env, err := resolveEnv("", cfg)
	require.NoError(t, err)
	assert.Equal(t, "sandbox", env)

	env, err = resolveEnv("Production", cfg)
	require.NoError(t, err)
	assert.Equal(t, "production", env)

	_, err = resolveEnv("prod", cfg)
	assert.ErrorContains(t, err, "unknown Plaid environment")

	out, err := run(t, "items", "--env", "staging")
	assert.Error(t, err)
	assert.Contains(t, out, "unknown Plaid environment")
}
