//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/racecore/internal/core/events/bus"
	"github.com/zeusync/racecore/internal/core/observability/log"
	"github.com/zeusync/racecore/internal/core/session"
	"github.com/zeusync/racecore/internal/core/track"
	"github.com/zeusync/racecore/internal/server"
)

var coreSet = wire.NewSet(
	log.Provide,
	wire.Bind(new(log.Log), new(*log.Logger)),
	bus.New,
	track.Builtin,
	session.DefaultConfig,
	session.New,
)

// InitializeSession wires a wall-clock session on the built-in track.
func InitializeSession() (*session.Session, error) {
	wire.Build(coreSet)
	return nil, nil
}

// InitializeFeed wires a telemetry server for s.
func InitializeFeed(s *session.Session, eventBus bus.EventBus) (*server.Server, error) {
	wire.Build(
		log.Provide,
		wire.Bind(new(log.Log), new(*log.Logger)),
		wire.Bind(new(server.TelemetrySource), new(*session.Session)),
		server.DefaultServerConfig,
		server.NewServer,
	)
	return nil, nil
}
