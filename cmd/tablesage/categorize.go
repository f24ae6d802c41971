package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tablesage-ai/tablesage/pkg/taxonomy"
)

func newCategorizeCmd(configPath *string, verbose *bool) *cobra.Command {
	var (
		column       string
		categories   []string
		contextNote  string
		namingFormat string
		snapshotPath string
	)

	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Assign dynamic categories to a column's values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if column == "" {
				return fmt.Errorf("--column is required")
			}

			a, err := buildApp(*configPath, *verbose)
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conn, err := a.store.Connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			rs, err := conn.Query(ctx, fmt.Sprintf("SELECT %q FROM %s", column, a.cfg.Store.Table), 0)
			if err != nil {
				return fmt.Errorf("read column %q: %w", column, err)
			}

			var items []string
			for _, row := range rs.Rows {
				if v, ok := row[column]; ok && v != nil {
					items = append(items, fmt.Sprintf("%v", v))
				}
			}

			manager := taxonomy.NewManager(a.reasoner, a.logger)
			if snapshotPath != "" {
				if snap, err := readSnapshot(snapshotPath); err == nil {
					manager.Import(snap)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("load taxonomy snapshot: %w", err)
				}
			}

			result, runErr := manager.Categorize(ctx, items, taxonomy.Options{
				Predefined:   categories,
				Context:      contextNote,
				NamingFormat: namingFormat,
			})

			if snapshotPath != "" {
				if err := writeSnapshot(snapshotPath, manager.Export()); err != nil {
					return fmt.Errorf("save taxonomy snapshot: %w", err)
				}
			}

			out, err := yaml.Marshal(result.Stats)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if runErr != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "run interrupted; partial results shown")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&column, "column", "", "column whose values are categorized")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "predefined categories to seed the taxonomy")
	cmd.Flags().StringVar(&contextNote, "context", "", "background context for categorization")
	cmd.Flags().StringVar(&namingFormat, "format", "", "naming format for generated categories, e.g. \"2 word category\"")
	cmd.Flags().StringVar(&snapshotPath, "taxonomy", "", "taxonomy snapshot file to load before and save after the run")

	return cmd
}
