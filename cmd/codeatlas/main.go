package main

import (
	"fmt"
	"os"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codeatlas",
	Short: "CodeAtlas - ask questions about any codebase",
	Long: `CodeAtlas builds a knowledge graph and a semantic search index over a
source tree, then answers questions about it with a tool-calling agent.

Each repository gets its own isolated graph and search collection; a
conversation about one repository can never read another one's data.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			cfg = config.Default()
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(logging.Config{
			Level:      level,
			JSONFormat: cfg.Log.JSON,
			OutputFile: cfg.Log.File,
		})
		if err != nil {
			logger = logrus.New()
			logger.WithError(err).Warn("falling back to default logger")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.codeatlas/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`CodeAtlas {{.Version}}
Build time: ` + BuildTime + `
`)

	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(mcpCmd)
}
