package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/thand-io/relay/internal/common"
	"github.com/thand-io/relay/internal/config"
	"github.com/thand-io/relay/internal/models"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the cluster credential file interactively",
	Long: `Prompt for the cluster address, administrator identity and trusted
authentication secret, then write them to the cluster file. Existing values
are offered as defaults.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {

		path := cfg.Cluster.File
		if len(path) == 0 {
			path = config.DefaultClusterFile
		}

		settings := cfg.Cluster
		if values, err := config.ReadClusterFile(path); err == nil {
			settings = config.ApplyClusterFile(settings, values)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}

		overwrite := true

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Cluster address").
					Description("Host name of the cluster, e.g. analytics.example.com").
					Value(&settings.Host).
					Validate(func(s string) error {
						_, err := common.NormalizeClusterHost(s)
						return err
					}),
				huh.NewInput().
					Title("Administrator username").
					Value(&settings.Username).
					Validate(required("username")),
				huh.NewInput().
					Title("Administrator password").
					EchoMode(huh.EchoModePassword).
					Value(&settings.Password).
					Validate(required("password")),
				huh.NewInput().
					Title("Trusted authentication secret").
					Description("Shown on the cluster's security settings page").
					EchoMode(huh.EchoModePassword).
					Value(&settings.Secret).
					Validate(required("secret")),
			),
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Write credentials to %s?", path)).
					Value(&overwrite),
			),
		)

		if err := form.Run(); err != nil {
			return fmt.Errorf("configuration cancelled: %w", err)
		}

		if !overwrite {
			fmt.Fprintln(cmd.OutOrStdout(), warningStyle.Render("Nothing written"))
			return nil
		}

		if err := config.WriteClusterFile(path, models.ClusterSettings{
			Host:     strings.TrimSpace(settings.Host),
			Username: strings.TrimSpace(settings.Username),
			Password: settings.Password,
			Secret:   settings.Secret,
		}); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Wrote "+path))
		fmt.Fprintln(cmd.OutOrStdout(), "Run 'relay login' to check the credentials.")

		return nil
	},
}

func required(name string) func(string) error {
	return func(s string) error {
		if len(strings.TrimSpace(s)) == 0 {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func init() {
	rootCmd.AddCommand(configureCmd)
}
