package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"redraft/internal/config"
	"redraft/internal/logger"
	"redraft/internal/pipeline"
	"redraft/internal/store"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "redraft",
		Short: "Redraft imports or creates articles, rewrites them past AI detection, and publishes the result.",
		Long: `Redraft is a content republishing pipeline.

Feed it a source URL and it extracts the article, translates it, and
rewrites the translation until the external AI detector scores it below
the configured threshold. Feed it a topic instead and it writes an
original draft and runs the same optimisation loop. Passing articles
can be published automatically.`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.redraft.yaml)")

	rootCmd.AddCommand(NewProcessCmd())
	rootCmd.AddCommand(NewCreateCmd())
	rootCmd.AddCommand(NewListCmd())
	rootCmd.AddCommand(NewShowCmd())
	rootCmd.AddCommand(NewRetryCmd())
	rootCmd.AddCommand(NewTemplatesCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.App.LogLevel)
}

// openStore opens the configured database.
func openStore() (*store.Store, error) {
	return store.NewStore(config.Get().App.DataDir)
}

// buildPipeline wires the full pipeline from configuration.
func buildPipeline(ctx context.Context, st *store.Store) (*pipeline.Pipeline, error) {
	return pipeline.NewBuilder(config.Get(), st).Build(ctx)
}
