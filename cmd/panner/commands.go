package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sjawhar/panner/internal/storage"
)

func ingestCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load the text corpus into the verse store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd)
			store, err := storage.NewSQLiteStore(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if force {
				if err := store.ClearVerses(cmd.Context()); err != nil {
					return err
				}
			}

			report, err := newIngester(a.cfg, store, a.log).Run(cmd.Context())
			if err != nil {
				return err
			}
			if report.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "verse store already populated; use --force to reload")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d units, dropped %d, failed sources %d\n",
				report.Stored, report.Dropped, len(report.Failed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "clear the verse store and ingest again")

	return cmd
}

func syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Rebuild the media index once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd)
			store, err := storage.NewSQLiteStore(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			syncer, _ := newMediaSyncer(cmd.Context(), a.cfg, store, a.log)
			n, err := syncer.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d media items\n", n)
			return nil
		},
	}
}

func drawCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "draw",
		Short: "Draw one item and print it without presenting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd)
			store, err := storage.NewSQLiteStore(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			drawer, err := newDrawer(a.cfg, store)
			if err != nil {
				return err
			}
			item, err := drawer.Draw(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print store counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd)
			store, err := storage.NewSQLiteStore(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			drawer, err := newDrawer(a.cfg, store)
			if err != nil {
				return err
			}
			text, media, err := drawer.Counts(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"text_count":  text,
				"media_count": media,
				"policy":      drawer.Policy().Name(),
				"warnings":    a.warnings,
			})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
