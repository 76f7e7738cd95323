package main

import (
	"github.com/spf13/cobra"

	"github.com/i474232898/transit-feed/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "transit-feed",
	Short:         "Build astrological transit feeds from ephemeris sources",
	Long:          "transit-feed resolves body positions through ordered ephemeris sources, computes angles and symbolic points, and writes or serves the resulting feed.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default transitfeed.yaml in . or ./configs)")
	rootCmd.AddCommand(generateCmd, rangeCmd, serveCmd, checkCmd)
}

func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
