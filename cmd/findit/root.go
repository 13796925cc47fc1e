package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/erazemk/findit/internal/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	dbPath     string
	driver     string
	logPath    string
	debug      bool
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   "findit",
		Short: "Lost and found posting and search service",
		Long: `findit keeps a catalog of lost and found items.

Items are posted with a photo taken by a camera attached to the server or
uploaded by the user, and can be searched by text, category, status, tags
and location.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML config file")
	pf.StringVarP(&g.dbPath, "db", "d", "", "storage path (default: findit.sqlite3)")
	pf.StringVar(&g.driver, "storage", "", "storage driver: sqlite or bolt")
	pf.StringVarP(&g.logPath, "log", "l", "", "log file path (default: stdout/stderr only)")
	pf.BoolVar(&g.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(&g),
		newExportCmd(&g),
		newImportCmd(&g),
		newDevicesCmd(&g),
	)

	return cmd
}

// load builds the configuration from defaults, the config file, FINDIT_*
// variables and finally flags, then sets up logging.
func (g *globalFlags) load(cmd *cobra.Command) (*config.Config, func(), error) {
	path := g.configPath
	if path == "" {
		path = os.Getenv("FINDIT_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Storage.Path = g.dbPath
	}
	if flags.Changed("storage") {
		cfg.Storage.Driver = g.driver
	}
	if flags.Changed("log") {
		cfg.LogPath = g.logPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	closeLog, err := setupLogger(cfg.LogPath, g.debug)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up logging: %w", err)
	}
	return cfg, closeLog, nil
}
