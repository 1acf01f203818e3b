package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/useQlick/qlickd/internal/domain"
	"github.com/useQlick/qlickd/internal/engine"
	"github.com/useQlick/qlickd/internal/events"
	"github.com/useQlick/qlickd/internal/projector"
	"github.com/useQlick/qlickd/internal/server"
	"github.com/useQlick/qlickd/internal/server/handler"
	"github.com/useQlick/qlickd/internal/server/ws"
	"github.com/useQlick/qlickd/internal/venue"
)

// runtime bundles the live engine and its in-process venue.
type runtime struct {
	engine *engine.Engine
	sim    *venue.Simulator
}

// buildRuntime constructs the engine against the in-process venue simulator
// and attaches the price observer so swaps feed the engine's tracker.
func (a *App) buildRuntime(deps *Dependencies) *runtime {
	sim := venue.NewSimulator(deps.VenueAddr)

	eng := engine.New(engine.Config{
		Self:      deps.Self,
		VenueAddr: deps.VenueAddr,
		Bank:      deps.Bank,
		Venue:     sim,
		Gateway:   deps.Gateway,
		Sink:      &events.Fanout{Store: deps.EventStore, Bus: deps.SignalBus},
		Prices:    deps.PriceCache,
		Logger:    a.logger,
	})

	sim.Attach(venue.NewObserver(deps.VenueAddr, eng))

	return &runtime{engine: eng, sim: sim}
}

// faucet adapts the reference-asset bank to the HTTP faucet handler, minting
// with the configured faucet authority.
type faucet struct {
	deps *Dependencies
}

func (f *faucet) Mint(asset, to common.Address, amount uint64) error {
	return f.deps.Bank.Token(asset).Mint(f.deps.Faucet, to, amount)
}

func (f *faucet) Balance(asset, holder common.Address) uint64 {
	return f.deps.Bank.Token(asset).BalanceOf(holder)
}

// buildServer assembles the HTTP server and WebSocket hub around the runtime.
func (a *App) buildServer(deps *Dependencies, rt *runtime) (*server.Server, *ws.Hub) {
	wsHub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})

	var markets handler.MarketProjection
	var proposals handler.ProposalProjection
	var eventLog handler.EventLog
	if deps.MarketStore != nil {
		markets = deps.MarketStore
	}
	if deps.ProposalStore != nil {
		proposals = deps.ProposalStore
	}
	if log, ok := deps.EventStore.(handler.EventLog); ok {
		eventLog = log
	}
	var archive handler.ArchiveReader
	if deps.Archiver != nil {
		archive = deps.Archiver
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Markets:   handler.NewMarketHandler(rt.engine, markets, eventLog, archive, a.logger),
		Proposals: handler.NewProposalHandler(rt.engine, deps.PriceCache, proposals, a.logger),
		Venue:     handler.NewVenueHandler(rt.sim, a.logger),
		Faucet:    handler.NewFaucetHandler(&faucet{deps: deps}, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, wsHub, a.logger)

	return srv, wsHub
}

// runServer starts the HTTP server and hub and blocks until the context is
// cancelled, then shuts the server down gracefully.
func (a *App) runServer(ctx context.Context, g *errgroup.Group, srv *server.Server, wsHub *ws.Hub) {
	g.Go(func() error {
		err := wsHub.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// EngineMode runs the engine, the simulated venue and the HTTP API fully
// in-memory: no postgres projections and no snapshot archival.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode")

	rt := a.buildRuntime(deps)
	srv, wsHub := a.buildServer(deps, rt)

	g, ctx := errgroup.WithContext(ctx)
	a.runServer(ctx, g, srv, wsHub)
	return g.Wait()
}

// ServeMode runs the engine plus the postgres projections: the projector
// consumes the event feed and keeps the market and proposal read models
// current.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	rt := a.buildRuntime(deps)
	srv, wsHub := a.buildServer(deps, rt)

	g, ctx := errgroup.WithContext(ctx)
	a.runServer(ctx, g, srv, wsHub)

	proj := projector.New(
		deps.SignalBus,
		deps.MarketStore,
		deps.ProposalStore,
		rt.engine,
		nil,
		a.logger,
	)
	g.Go(func() error {
		return proj.Run(ctx)
	})

	return g.Wait()
}

// FullMode is ServeMode plus snapshot archival of resolved markets to object
// storage.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	rt := a.buildRuntime(deps)
	srv, wsHub := a.buildServer(deps, rt)

	g, ctx := errgroup.WithContext(ctx)
	a.runServer(ctx, g, srv, wsHub)

	var archiver domain.SnapshotArchiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}
	proj := projector.New(
		deps.SignalBus,
		deps.MarketStore,
		deps.ProposalStore,
		rt.engine,
		archiver,
		a.logger,
	)
	g.Go(func() error {
		return proj.Run(ctx)
	})

	return g.Wait()
}
