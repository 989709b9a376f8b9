package main

import (
	"fmt"
	"strings"

	"github.com/dvloznov/sheetsync/internal/blob"
	"github.com/dvloznov/sheetsync/internal/links"
	"github.com/spf13/cobra"
)

func newItemsCmd(root *rootOptions) *cobra.Command {
	var env string

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List linked items for an environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			env, err = resolveEnv(env, cfg)
			if err != nil {
				return err
			}
			load, err := itemLoader(cfg, env)
			if err != nil {
				return err
			}
			items, err := load(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d linked item(s) in %s\n", len(items), env)
			for _, it := range items {
				fmt.Fprintf(out, "  %s  %s\n", it.ItemID, links.MaskToken(it.AccessToken))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "Plaid environment (default PLAID_ENV)")

	cmd.AddCommand(newItemsAddCmd(root), newItemsRemoveCmd(root))
	return cmd
}

func newItemsAddCmd(root *rootOptions) *cobra.Command {
	var itemID, token string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store the access token of an already linked item",
		Long: `Record an item id and its access token in the token file. An entry with
the same item id is replaced. The token comes from a completed Plaid Link
exchange; this command does not run Link.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if itemID == "" || token == "" {
				return fmt.Errorf("items add: --item-id and --token are required")
			}
			if !strings.HasPrefix(token, "access-") {
				return fmt.Errorf("items add: %s does not look like an access token", links.MaskToken(token))
			}
			ctx := cmd.Context()

			store, err := blob.NewStore(cfg.Sync.TokensFile)
			if err != nil {
				return err
			}
			items, err := links.LoadLinkedItems(ctx, store)
			if err != nil {
				return err
			}
			items = links.UpsertLinkedItem(items, links.LinkedItem{ItemID: itemID, AccessToken: token})
			if err := links.SaveLinkedItems(ctx, store, items); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (%s) in %s\n", itemID, links.MaskToken(token), store.Location())
			return nil
		},
	}
	cmd.Flags().StringVar(&itemID, "item-id", "", "Plaid item id")
	cmd.Flags().StringVar(&token, "token", "", "access token for the item")
	return cmd
}

func newItemsRemoveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ITEM_ID",
		Short: "Drop an item from the token file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := blob.NewStore(cfg.Sync.TokensFile)
			if err != nil {
				return err
			}
			items, err := links.LoadLinkedItems(ctx, store)
			if err != nil {
				return err
			}
			kept, removed := links.RemoveLinkedItem(items, args[0])
			if !removed {
				return fmt.Errorf("items remove: no item %q in %s", args[0], store.Location())
			}
			if err := links.SaveLinkedItems(ctx, store, kept); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[0], store.Location())
			return nil
		},
	}
}

func newSheetCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Show or set the target spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			id, err := spreadsheetID(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set SPREADSHEET_ID",
		Short: "Write the spreadsheet id to the sheet config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Sheets.ConfigFile == "" {
				return fmt.Errorf("sheet set: SHEETS_CONFIG_FILE is not set")
			}
			store, err := blob.NewStore(cfg.Sheets.ConfigFile)
			if err != nil {
				return err
			}
			if err := links.SaveSheetConfig(cmd.Context(), store, links.SheetConfig{SpreadsheetID: args[0]}); err != nil {
				return err
			}
			if cfg.Sheets.SpreadsheetID != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "note: SHEETS_SPREADSHEET_ID is set and takes precedence")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Spreadsheet %s saved to %s\n", args[0], store.Location())
			return nil
		},
	})
	return cmd
}
