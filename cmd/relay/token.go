package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thand-io/relay/internal/agent"
	"github.com/thand-io/relay/internal/common"
	"github.com/thand-io/relay/internal/daemon"
)

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Mint one token and print it",
	Long: `Log in to the cluster with the configured administrator identity and
mint a trusted authentication token for the given user. The token is the only
thing written to stdout, so the command can be used in scripts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		ctx, stop := common.WithInterrupt(cmd.Context())
		defer stop()

		binding, err := loadBinding(ctx)
		if err != nil {
			return err
		}

		token, err := binding.Broker.GetToken(ctx, binding.Config.Secret, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)

		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check the administrator credentials",
	Long:  `Log in to the cluster once with the configured administrator identity and report the result.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {

		ctx, stop := common.WithInterrupt(cmd.Context())
		defer stop()

		binding, err := loadBinding(ctx)
		if err != nil {
			return err
		}

		if err := binding.Manager.Login(ctx); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("Login failed: ")+err.Error())
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Logged in")+" as "+binding.Config.String())

		return nil
	},
}

func loadBinding(ctx context.Context) (*daemon.Binding, error) {

	provider, err := agent.NewBrokerProvider(cfg)
	if err != nil {
		return nil, err
	}

	return provider.Get(ctx)
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(loginCmd)
}
