package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tablesage-ai/tablesage/pkg/taxonomy"
)

func newTaxonomyCmd(configPath *string, verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect and move taxonomy snapshots",
	}
	cmd.AddCommand(newTaxonomyExportCmd(), newTaxonomyImportCmd(configPath, verbose))
	return cmd
}

// newTaxonomyExportCmd prints a snapshot, verifying it round-trips cleanly.
func newTaxonomyExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <snapshot.yaml>",
		Short: "Write a taxonomy snapshot to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(snap)
			if err != nil {
				return err
			}

			if outPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
			return os.WriteFile(outPath, out, 0o644)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "destination file (default stdout)")
	return cmd
}

// newTaxonomyImportCmd loads a snapshot into a manager and reports its
// statistics, validating the file before it is used by categorize runs.
func newTaxonomyImportCmd(configPath *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "import <snapshot.yaml>",
		Short: "Validate a taxonomy snapshot and print its statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath, *verbose)
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck

			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}

			manager := taxonomy.NewManager(a.reasoner, a.logger)
			manager.Import(snap)

			out, err := yaml.Marshal(manager.GetStatistics())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func readSnapshot(path string) (*taxonomy.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap taxonomy.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return &snap, nil
}

func writeSnapshot(path string, snap *taxonomy.Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
