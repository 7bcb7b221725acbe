package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pixelvault/apiserver/config"
	"github.com/pixelvault/apiserver/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "pixelvault",
	Short: "PixelVault photo sharing API",
	Long: `PixelVault serves the photo sharing API: accounts and sessions,
image uploads, categories, collections and the admin dashboard.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, zerolog.Logger) {
	cfg := config.LoadConfig()
	return cfg, logging.New(cfg.Env, cfg.LogLevel)
}
