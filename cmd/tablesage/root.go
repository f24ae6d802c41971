package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tablesage-ai/tablesage/pkg/analysis"
	"github.com/tablesage-ai/tablesage/pkg/config"
	"github.com/tablesage-ai/tablesage/pkg/llm"
	"github.com/tablesage-ai/tablesage/pkg/patterns"
	"github.com/tablesage-ai/tablesage/pkg/store"
	"github.com/tablesage-ai/tablesage/pkg/strategy"
)

// app bundles the wired collaborators for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	reasoner llm.Reasoner
	store    store.Store
	engine   *analysis.Engine
}

func newRootCmd() *cobra.Command {
	var configPath string
	var verbose bool

	root := &cobra.Command{
		Use:           "tablesage",
		Short:         "Answer natural-language questions about tabular data",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newAskCmd(&configPath, &verbose),
		newCategorizeCmd(&configPath, &verbose),
		newTaxonomyCmd(&configPath, &verbose),
	)

	return root
}

// buildApp loads config and wires the full pipeline.
func buildApp(configPath string, verbose bool) (*app, error) {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg.Env, verbose)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	reasoner, err := buildReasoner(cfg, logger)
	if err != nil {
		return nil, err
	}

	st, err := buildStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	selector := strategy.NewSelector(reasoner, logger, strategy.WithTableName(cfg.Store.Table))
	detector := patterns.NewDetector(reasoner, logger)

	engineCfg := analysis.DefaultConfig()
	engineCfg.TableName = cfg.Store.Table
	engineCfg.BatchSize = cfg.Analysis.BatchSize
	engineCfg.HybridThreshold = cfg.Analysis.HybridThreshold
	engineCfg.MaxResultRows = cfg.Analysis.MaxResultRows
	engineCfg.InsightSampleRows = cfg.Analysis.InsightSampleRows
	engineCfg.HolisticPause = time.Duration(cfg.Analysis.HolisticPauseMs) * time.Millisecond
	engineCfg.ColumnAwarePause = time.Duration(cfg.Analysis.ColumnAwarePauseMs) * time.Millisecond
	engineCfg.BatchPause = time.Duration(cfg.Analysis.BatchPauseMs) * time.Millisecond

	engine := analysis.NewEngine(reasoner, selector, detector, logger, engineCfg)

	return &app{cfg: cfg, logger: logger, reasoner: reasoner, store: st, engine: engine}, nil
}

func buildLogger(env string, verbose bool) (*zap.Logger, error) {
	if env == "local" || verbose {
		cfg := zap.NewDevelopmentConfig()
		if !verbose {
			cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		}
		return cfg.Build()
	}
	return zap.NewProduction()
}

func buildReasoner(cfg *config.Config, logger *zap.Logger) (llm.Reasoner, error) {
	llmCfg := &llm.Config{
		Endpoint: cfg.Reasoner.Endpoint,
		Model:    cfg.Reasoner.Model,
		APIKey:   cfg.Reasoner.APIKey,
	}
	if cfg.Reasoner.Provider == "anthropic" {
		return llm.NewAnthropicClient(llmCfg, logger)
	}
	return llm.NewClient(llmCfg, logger)
}

func buildStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Type {
	case "postgres":
		return store.NewPostgresStore(cfg.Store.PostgresURL, logger)
	default:
		return store.NewSQLiteStore(cfg.Store.SQLitePath, logger)
	}
}
