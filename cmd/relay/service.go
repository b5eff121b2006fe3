package main

import (
	"fmt"
	"os"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/thand-io/relay/internal/agent"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Service management commands",
	Long:  `Manage the token relay as a system service`,
}

func serviceAction(use, short, done string, action func(service.Service) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := agent.CreateService(cfg)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}

			if err := action(s); err != nil {
				if use == "install" {
					printInstallInstructions()
				}
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(done))
			return nil
		},
	}
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the relay service status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := agent.CreateService(cfg)
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}

		status, err := s.Status()
		if err != nil {
			return fmt.Errorf("failed to get service status: %w", err)
		}

		var statusText string
		switch status {
		case service.StatusRunning:
			statusText = successStyle.Render("running")
		case service.StatusStopped:
			statusText = warningStyle.Render("stopped")
		default:
			statusText = errorStyle.Render("unknown")
		}

		fmt.Fprintln(cmd.OutOrStdout(), row("Service", statusText))
		return nil
	},
}

func printInstallInstructions() {
	exePath, _ := os.Executable()
	fmt.Println("\nService installation failed. You may need to run with elevated privileges:")
	fmt.Println("\nLinux/macOS:")
	fmt.Printf("   sudo %s service install\n", exePath)
	fmt.Println("\nWindows:")
	fmt.Printf("   Run as Administrator: %s service install\n", exePath)
}

func init() {
	serviceCmd.AddCommand(
		serviceAction("install", "Install the relay as a system service", "Token relay service installed",
			func(s service.Service) error { return s.Install() }),
		serviceAction("uninstall", "Remove the relay system service", "Token relay service removed",
			func(s service.Service) error {
				// Stopping an already stopped service is not an error here
				_ = s.Stop()
				return s.Uninstall()
			}),
		serviceAction("start", "Start the relay service", "Token relay service started",
			func(s service.Service) error { return s.Start() }),
		serviceAction("stop", "Stop the relay service", "Token relay service stopped",
			func(s service.Service) error { return s.Stop() }),
		serviceStatusCmd,
	)

	rootCmd.AddCommand(serviceCmd)
}
