package daemon

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/thand-io/relay/internal/broker"
	"github.com/thand-io/relay/internal/cluster"
	"github.com/thand-io/relay/internal/models"
	"github.com/thand-io/relay/internal/sessions"
	"golang.org/x/sync/singleflight"
)

const reloadFlight = "reload"

// ClusterLoader produces the current cluster identity, typically by reading
// the configuration and cluster file.
type ClusterLoader func(ctx context.Context) (models.ClusterConfig, error)

// Binding is one session manager and the broker built on it, both tied to a
// single cluster identity.
type Binding struct {
	Config  models.ClusterConfig
	Manager *sessions.SessionManager
	Broker  *broker.TokenBroker
}

// BrokerProvider hands out the binding for the current cluster identity.
//
// With reload off the identity is loaded once. With reload on it is loaded
// again on every call and a new binding replaces the old one only when the
// identity changed, so an unchanged file never costs a fresh login.
type BrokerProvider struct {
	mu      sync.Mutex // guards current only, never held across load
	flights singleflight.Group
	load    ClusterLoader
	opts    cluster.Options
	reload  bool
	current *Binding

	rebuilds atomic.Int64

	// Login counters of bindings that have been replaced.
	retiredLogins   atomic.Int64
	retiredFailures atomic.Int64
}

func NewBrokerProvider(load ClusterLoader, opts cluster.Options, reload bool) *BrokerProvider {
	return &BrokerProvider{
		load:   load,
		opts:   opts,
		reload: reload,
	}
}

// NewStaticBrokerProvider always serves the given identity.
func NewStaticBrokerProvider(config models.ClusterConfig, opts cluster.Options) *BrokerProvider {
	return NewBrokerProvider(func(context.Context) (models.ClusterConfig, error) {
		return config, nil
	}, opts, false)
}

// Get returns the binding to use for one request.
//
// Loading runs outside the lock and concurrent callers share one load, so a
// slow secret backend never queues health checks or scrapes behind it. If
// reloading fails while a binding exists, the existing binding is kept and
// the failure is logged; a broken edit to the cluster file should not take
// the relay down.
func (p *BrokerProvider) Get(ctx context.Context) (*Binding, error) {

	if current := p.Current(); current != nil && !p.reload {
		return current, nil
	}

	result, err, _ := p.flights.Do(reloadFlight, func() (any, error) {
		return p.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}

	return result.(*Binding), nil
}

func (p *BrokerProvider) refresh(ctx context.Context) (*Binding, error) {

	config, err := p.load(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && !p.reload {
		return p.current, nil
	}

	if err != nil {
		if p.current != nil {
			logrus.WithError(err).Warnln("Failed to reload cluster configuration, keeping current session")
			return p.current, nil
		}
		return nil, fmt.Errorf("failed to load cluster configuration: %w", err)
	}

	if p.current != nil && p.current.Config.Equal(config) {
		return p.current, nil
	}

	manager, err := sessions.NewSessionManager(config, p.opts)
	if err != nil {
		if p.current != nil {
			logrus.WithError(err).Warnln("Reloaded cluster configuration is unusable, keeping current session")
			return p.current, nil
		}
		return nil, err
	}

	binding := &Binding{
		Config:  config,
		Manager: manager,
		Broker:  broker.NewFromManager(manager),
	}

	if p.current != nil {
		logins, failures := p.current.Manager.Stats()
		p.retiredLogins.Add(logins)
		p.retiredFailures.Add(failures)
		p.rebuilds.Add(1)

		logrus.WithFields(logrus.Fields{
			"cluster": config.String(),
		}).Infoln("Cluster configuration changed, replacing session manager")
	}

	p.current = binding

	return binding, nil
}

// Current returns the active binding without loading anything. It is nil
// until the first successful Get.
func (p *BrokerProvider) Current() *Binding {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Stats reports login attempts and failures across every binding so far,
// and how many times a binding was replaced.
func (p *BrokerProvider) Stats() (logins, failures, rebuilds int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logins = p.retiredLogins.Load()
	failures = p.retiredFailures.Load()

	if current := p.current; current != nil {
		l, f := current.Manager.Stats()
		logins += l
		failures += f
	}

	return logins, failures, p.rebuilds.Load()
}
