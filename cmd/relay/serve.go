package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/thand-io/relay/internal/agent"
	"github.com/thand-io/relay/internal/common"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tokens in the foreground",
	Long: `Start the token relay in the foreground. It answers
GET /gettoken/<username> until interrupted, then drains in-flight requests.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {

	ctx, stop := common.WithInterrupt(cmd.Context())
	defer stop()

	server, err := agent.StartWebService(cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logrus.WithError(err).Errorln("Token relay did not stop cleanly")
		return err
	}

	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
