package app

import (
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/logrooms/modules/dispatcher"
	"github.com/grafana/logrooms/modules/ingest"
	"github.com/grafana/logrooms/modules/room"
	"github.com/grafana/logrooms/modules/subscription"
	"github.com/grafana/logrooms/pkg/metrics"
	"github.com/grafana/logrooms/pkg/util/log"
)

// The named modules that make up the room server, mirroring
// cmd/tempo/app.ModuleManager's named-module dependency graph but much
// shallower: a single process owns every component (Non-goal:
// cross-process sharding).
const (
	Server       = "server"
	RoomManager  = "room-manager"
	Subscription = "subscription"
	Ingest       = "ingest"
	TraceSweeper = "trace-sweeper"
	Metrics      = "metrics"
	All          = "all"
)

func (a *App) initServer() (services.Service, error) {
	serv, err := server.New(a.cfg.Server)
	if err != nil {
		return nil, err
	}
	a.Server = serv
	return NewServerService(serv), nil
}

func (a *App) initRoomManager() (services.Service, error) {
	a.rooms = room.NewManager(a.cfg.Room)
	return services.NewIdleService(nil, nil), nil
}

func (a *App) initMetrics() (services.Service, error) {
	a.counters = metrics.New(prometheus.DefaultRegisterer)
	return metrics.NewService(a.counters), nil
}

func (a *App) initSubscription() (services.Service, error) {
	a.subscriptions = subscription.NewManager(a.rooms, a.counters, a.cfg.Subscription)
	a.rooms.OnRoomCreated(func(id string) {
		level.Info(log.Logger).Log("msg", "room created", "room", id)
		a.subscriptions.RoomCreated(id)
	})
	a.Server.HTTP.Path("/subscribe").Methods("GET").HandlerFunc(a.subscriptions.ServeWS)
	return services.NewIdleService(nil, nil), nil
}

func (a *App) initTraceSweeper() (services.Service, error) {
	sweeper := room.NewSweeper(a.rooms, a.cfg.Room.TraceTimeout/2, a.subscriptions)
	return sweeper, nil
}

func (a *App) initIngest() (services.Service, error) {
	d := dispatcher.New(a.rooms, a.counters, a.subscriptions)
	a.dispatcher = d
	listener := ingest.New(a.cfg.Ingest, d)
	return listener, nil
}

func (a *App) initAll() (services.Service, error) {
	return services.NewIdleService(nil, nil), nil
}

func (a *App) setupModuleManager() error {
	mm := modules.NewManager(log.Logger)

	mm.RegisterModule(Server, a.initServer, modules.UserInvisibleModule)
	mm.RegisterModule(Metrics, a.initMetrics, modules.UserInvisibleModule)
	mm.RegisterModule(RoomManager, a.initRoomManager, modules.UserInvisibleModule)
	mm.RegisterModule(Subscription, a.initSubscription, modules.UserInvisibleModule)
	mm.RegisterModule(TraceSweeper, a.initTraceSweeper, modules.UserInvisibleModule)
	mm.RegisterModule(Ingest, a.initIngest, modules.UserInvisibleModule)
	mm.RegisterModule(All, a.initAll)

	deps := map[string][]string{
		RoomManager:  {Metrics},
		Subscription: {Server, RoomManager},
		TraceSweeper: {Subscription},
		Ingest:       {Subscription, TraceSweeper},
		All:          {Ingest},
	}

	for mod, targets := range deps {
		if err := mm.AddDependency(mod, targets...); err != nil {
			return err
		}
	}

	a.moduleManager = mm
	return nil
}
