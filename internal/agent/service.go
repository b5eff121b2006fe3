package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/sirupsen/logrus"
	"github.com/thand-io/relay/internal/config"
	"github.com/thand-io/relay/internal/daemon"
)

const (
	ServiceName = "thand-relay"

	shutdownTimeout = 15 * time.Second
)

// ServiceProgram runs the relay under the host service manager.
type ServiceProgram struct {
	config *config.Config
	server *daemon.Server
}

func (p *ServiceProgram) Start(s service.Service) error {
	logrus.Infoln("Token relay service starting")

	server, err := StartWebService(p.config)
	if err != nil {
		return err
	}

	p.server = server

	return nil
}

func (p *ServiceProgram) Stop(s service.Service) error {
	logrus.Infoln("Token relay service stopping")

	if p.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return p.server.Stop(ctx)
}

// CreateService wraps the relay in a service that re-runs this executable
// with "serve" and the same configuration file.
func CreateService(cfg *config.Config) (service.Service, error) {

	svcConfig, err := getServiceConfig(cfg)
	if err != nil {
		return nil, err
	}

	return service.New(&ServiceProgram{config: cfg}, svcConfig)
}

func getServiceConfig(cfg *config.Config) (*service.Config, error) {

	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate relay executable: %w", err)
	}

	arguments := []string{"serve"}

	if configFile := cfg.ConfigFile(); len(configFile) > 0 {
		// The service manager does not start us in the current directory
		if abs, err := filepath.Abs(configFile); err == nil {
			configFile = abs
		}
		arguments = append(arguments, "--config", configFile)
	}

	return &service.Config{
		Name:        ServiceName,
		DisplayName: "Thand Token Relay",
		Description: "Mints trusted authentication tokens for users of an analytics cluster",
		Executable:  exePath,
		Arguments:   arguments,
	}, nil
}
