// Package app wires the room server's modules together: a Config, a
// dskit modules.Manager dependency graph, and a Run() that starts every
// module's services.Service and blocks on a signal, draining in-flight
// work on shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/grafana/dskit/signals"

	"github.com/grafana/logrooms/cmd/roomserver/build"
	"github.com/grafana/logrooms/modules/dispatcher"
	"github.com/grafana/logrooms/modules/room"
	"github.com/grafana/logrooms/modules/subscription"
	"github.com/grafana/logrooms/pkg/metrics"
	"github.com/grafana/logrooms/pkg/util/log"
)

// App is the root datastructure, mirroring cmd/tempo/app.App but with a
// single deployment target: every room-server process runs every module.
type App struct {
	cfg Config

	Server *server.Server

	rooms         *room.Manager
	subscriptions *subscription.Manager
	dispatcher    *dispatcher.Dispatcher
	counters      *metrics.Counters

	moduleManager *modules.Manager
	serviceMap    map[string]services.Service
}

// New constructs an App and its module dependency graph but starts
// nothing; call Run to bring the process up.
func New(cfg Config) (*App, error) {
	a := &App{cfg: cfg}
	if err := a.setupModuleManager(); err != nil {
		return nil, fmt.Errorf("failed to setup module manager: %w", err)
	}
	return a, nil
}

// Run starts every module's service and blocks until a signal is
// received or a service fails, then stops everything and waits for
// in-flight packets to drain.
func (a *App) Run() error {
	serviceMap, err := a.moduleManager.InitModuleServices(a.cfg.Target)
	if err != nil {
		return fmt.Errorf("failed to init module services: %w", err)
	}
	a.serviceMap = serviceMap

	var servs []services.Service
	for _, s := range serviceMap {
		servs = append(servs, s)
	}

	sm, err := services.NewManager(servs...)
	if err != nil {
		return fmt.Errorf("failed to start service manager: %w", err)
	}

	a.Server.HTTP.Path("/ready").Methods("GET").HandlerFunc(a.readyHandler(sm))
	a.Server.HTTP.Path("/buildinfo").Methods("GET").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(build.Info()))
	})

	healthy := func() { level.Info(log.Logger).Log("msg", "room server started") }
	stopped := func() { level.Info(log.Logger).Log("msg", "room server stopped") }
	serviceFailed := func(service services.Service) {
		sm.StopAsync()
		for name, s := range serviceMap {
			if s != service {
				continue
			}
			cause := service.FailureCase()
			switch {
			case errors.Is(cause, modules.ErrStopProcess):
				level.Info(log.Logger).Log("msg", "received stop signal via return error", "module", name, "err", cause)
			case errors.Is(cause, context.Canceled):
			case cause != nil:
				level.Error(log.Logger).Log("msg", "module failed", "module", name, "err", cause)
			}
			return
		}
		level.Error(log.Logger).Log("msg", "module failed", "module", "unknown", "err", service.FailureCase())
	}
	sm.AddListener(services.NewManagerListener(healthy, stopped, serviceFailed))

	handler := signals.NewHandler(a.Server.Log)
	go func() {
		handler.Loop()
		a.Server.HTTPServer.SetKeepAlivesEnabled(false)
		sm.StopAsync()
	}()

	if err := sm.StartAsync(context.Background()); err != nil {
		return fmt.Errorf("failed to start service manager: %w", err)
	}

	return sm.AwaitStopped(context.Background())
}

// readyHandler reports 200 once every service in sm, the server included,
// is Running, mirroring cmd/tempo/app.App.readyHandler.
func (a *App) readyHandler(sm *services.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if sm.IsHealthy() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	}
}
