package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tablesage-ai/tablesage/pkg/analysis"
	"github.com/tablesage-ai/tablesage/pkg/models"
	"github.com/tablesage-ai/tablesage/pkg/store"
	"github.com/tablesage-ai/tablesage/pkg/taxonomy"
)

// schemaSampleRows bounds the rows read for schema inference.
const schemaSampleRows = 50

func newAskCmd(configPath *string, verbose *bool) *cobra.Command {
	var categorize bool
	var categories []string

	cmd := &cobra.Command{
		Use:   "ask \"question\"",
		Short: "Answer a natural-language question about the dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath, *verbose)
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck

			if categorize {
				manager := taxonomy.NewManager(a.reasoner, a.logger)
				analysis.WithTaxonomy(manager, categories)(a.engine)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			columns, err := inferColumns(ctx, a)
			if err != nil {
				return fmt.Errorf("infer schema: %w", err)
			}

			result, err := a.engine.Analyze(ctx, args[0], columns, a.store)
			if err != nil && (result == nil || !result.Partial) {
				return err
			}

			out, merr := json.MarshalIndent(result, "", "  ")
			if merr != nil {
				return merr
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "run interrupted; partial results shown")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&categorize, "categorize", false, "label matched rows with dynamic categories")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "seed category names for --categorize")
	return cmd
}

// inferColumns samples the dataset and derives column descriptors.
func inferColumns(ctx context.Context, a *app) ([]models.ColumnDescriptor, error) {
	conn, err := a.store.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rs, err := conn.Query(ctx, "SELECT * FROM "+a.cfg.Store.Table, schemaSampleRows)
	if err != nil {
		return nil, err
	}
	return store.InferSchema(rs), nil
}
