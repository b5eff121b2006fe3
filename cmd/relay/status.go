package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"github.com/thand-io/relay/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of a running relay",
	Long: `Query the health and metrics endpoints of a running relay. By default
the relay described by the loaded configuration is queried on localhost.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {

		baseURL, _ := cmd.Flags().GetString("url")
		if len(baseURL) == 0 {
			baseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		}

		client := resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(5 * time.Second)

		var health models.HealthResponse

		// 503 still carries a health body
		resp, err := client.R().
			SetContext(cmd.Context()).
			SetResult(&health).
			SetError(&health).
			Get(cfg.Server.Health.Path)

		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), errorStyle.Render("Relay not reachable at "+baseURL))
			return err
		}

		out := cmd.OutOrStdout()

		fmt.Fprintln(out, titleStyle.Render("Token relay"))
		fmt.Fprintln(out, row("Status", renderHealth(health.Status)))
		fmt.Fprintln(out, row("Version", health.Version))

		if len(health.Cluster) > 0 {
			fmt.Fprintln(out, row("Cluster", health.Cluster))
			fmt.Fprintln(out, row("Authenticated", fmt.Sprintf("%t", health.Authenticated)))
		}
		if len(health.Error) > 0 {
			fmt.Fprintln(out, row("Error", health.Error))
		}

		if !cfg.Server.Metrics.Enabled {
			return nil
		}

		var metrics models.MetricsInfo

		resp, err = client.R().
			SetContext(cmd.Context()).
			SetResult(&metrics).
			Get(cfg.Server.Metrics.Path)

		if err != nil || !resp.IsSuccess() {
			return nil
		}

		fmt.Fprintln(out, row("Uptime", metrics.Uptime))
		fmt.Fprintln(out, row("Tokens issued", fmt.Sprintf("%d of %d", metrics.TokensIssued, metrics.TokenRequests)))
		fmt.Fprintln(out, row("Logins", fmt.Sprintf("%d (%d failed)", metrics.Logins, metrics.LoginFailures)))

		return nil
	},
}

func renderHealth(status models.HealthState) string {
	switch status {
	case models.HealthStatusHealthy:
		return successStyle.Render(string(status))
	case models.HealthStatusDegraded:
		return warningStyle.Render(string(status))
	default:
		return errorStyle.Render(string(status))
	}
}

func init() {
	statusCmd.Flags().String("url", "", "Base URL of the relay (default http://localhost:<server.port>)")
	rootCmd.AddCommand(statusCmd)
}
