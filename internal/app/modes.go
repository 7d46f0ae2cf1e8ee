package app

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/keeper"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/server"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/server/handler"
)

// shutdownTimeout bounds graceful HTTP shutdown on context cancellation.
const shutdownTimeout = 10 * time.Second

// KeeperMode runs the autonomous sweep loop without the admin API.
func (a *App) KeeperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting keeper mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startKeeper(ctx, g, deps)
	return g.Wait()
}

// ServeMode runs the admin API without the sweep loop. Upkeep can still
// be triggered manually through POST /api/upkeep/check and /perform.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the sweep loop and the admin API side by side.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startKeeper(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	return g.Wait()
}

// startKeeper adds the periodic sweep goroutine to the given errgroup.
func (a *App) startKeeper(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	opts := []keeper.Option{
		keeper.WithInterval(a.cfg.Keeper.Interval.Duration),
		keeper.WithConcurrency(a.cfg.Keeper.Concurrency),
	}
	if deps.Station != nil {
		minBalance, err := parseAmount(a.cfg.Station.MinBalance)
		if err == nil {
			var topUp *big.Int
			topUp, err = parseAmount(a.cfg.Station.TopUp)
			if err == nil {
				opts = append(opts, keeper.WithStation(deps.Station, minBalance, topUp))
			}
		}
		if err != nil {
			a.logger.WarnContext(ctx, "station funding disabled",
				slog.String("error", err.Error()),
			)
		}
	}

	k := keeper.New(deps.Engine, deps.Jobs, a.logger, opts...)
	g.Go(func() error {
		return k.Run(ctx)
	})
}

// startHTTPServer adds the admin API server goroutine to the given
// errgroup, along with the WebSocket hub when one is wired. The server
// is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Hub != nil {
		g.Go(func() error {
			return deps.Hub.Run(ctx)
		})
	}

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Status:     handler.NewStatusHandler(deps.Governance, deps.Jobs, deps.Registry, a.cfg.Mode, a.logger),
		Jobs:       handler.NewJobsHandler(deps.Jobs, deps.Governor, deps.BindRouters, a.logger),
		Registry:   handler.NewRegistryHandler(deps.Registry, deps.Governor, a.logger),
		Governance: handler.NewGovernanceHandler(deps.Governance, deps.Governor, a.logger),
		Rebalances: handler.NewRebalancesHandler(deps.Records, a.logger),
		Upkeep:     handler.NewUpkeepHandler(deps.Engine, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		AuthToken:   a.cfg.Server.AuthToken,
	}, handlers, deps.Hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
