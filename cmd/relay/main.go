package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/thand-io/relay/internal/config"
)

// Loaded by the root command before any subcommand runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Trusted authentication token relay",
	Long: `Relay mints trusted authentication tokens for users of an analytics
cluster, so pages embedding the cluster can sign users in without a password.

Without a subcommand the relay serves tokens in the foreground.

If no config file is specified, the relay looks for config.yaml in:
  - ./
  - ./config/
  - /etc/relay/
  - ~/.config/relay/

Cluster credentials are read from the cluster file (gettoken.config by default).`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func loadConfig(cmd *cobra.Command, _ []string) error {

	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err = config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if clusterFile, _ := cmd.Flags().GetString("cluster-file"); len(clusterFile) > 0 {
		cfg.Cluster.File = clusterFile
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file (optional)")
	rootCmd.PersistentFlags().String("cluster-file", "", "Path to the cluster credential file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("Failed to execute command: %v", err)
	}
}
