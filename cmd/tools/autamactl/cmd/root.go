package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/autama/autama/backend/internal/app"
	"github.com/autama/autama/backend/internal/config"
)

// Config file
var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "autamactl",
	Short: "Operate the Autama backend from the command line",
	Long: `autamactl talks to Autamas, mass-produces new ones and manages the
local model and dataset using the same configuration as the API server.

Configuration comes from --config, AUTAMA_CONFIG or
$XDG_CONFIG_HOME/autama/config.toml, overridden by AUTAMA_* variables.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"nucleus.backend":          "backend",
	"nucleus.model_checkpoint": "checkpoint",
	"nucleus.dataset_path":     "dataset",
	"store.driver":             "store",
	"store.dsn":                "dsn",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/autama/config.toml)")
	rootCmd.PersistentFlags().String("backend", "", "conversation backend (local, ark)")
	rootCmd.PersistentFlags().String("checkpoint", "", "path of the local model checkpoint")
	rootCmd.PersistentFlags().String("dataset", "", "PersonaChat file or URL (default is the bundled seed corpus)")
	rootCmd.PersistentFlags().String("store", "", "storage driver (sqlite, libsql, memory)")
	rootCmd.PersistentFlags().String("dsn", "", "storage location")
}

// loadConfig builds the configuration from flags, file and environment.
func loadConfig() (*config.Config, error) {
	v := config.NewViper()
	for key, name := range flagKeys {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			return nil, err
		}
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	return config.LoadFrom(v)
}

// openApp wires every service for commands that need storage.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
