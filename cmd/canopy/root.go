package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/canopy/internal/config"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    = config.Default()
	logger = logging.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "canopy",
	Short: "Canopy inspects hierarchical workflow trees",
	Long: `Canopy builds workflow trees from scenario files, applies their operations
and exposes the live tree index through a terminal report, an HTTP debugger
and an MCP server.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the canopy config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
}

// loadConfig resolves the configuration (file, then environment, then flags)
// and installs the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(path)
	if err != nil {
		return err
	}

	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		c.Log.Level = f.Value.String()
	}
	if f := cmd.Flags().Lookup("log-format"); f != nil && f.Changed {
		c.Log.Format = f.Value.String()
	}
	if f := cmd.Flags().Lookup("redis"); f != nil && f.Changed {
		c.Redis.Addr = f.Value.String()
	}
	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		c.HTTP.Addr = f.Value.String()
	}
	if err := c.Validate(); err != nil {
		return err
	}

	level, _ := logging.ParseLevel(c.Log.Level)
	logger = logging.New(level, c.Log.Format, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	cfg = c
	return nil
}
