package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/arbiter"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/cache/redis"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/config"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/crypto"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/evm"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/governance"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/jobs"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/notify"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/oracle"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/registry"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/server/ws"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/station"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/store/postgres"
)

// priceCacheTTL bounds how long an oracle read may be served from Redis.
const priceCacheTTL = 30 * time.Second

// Dependencies bundles every component the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Governance *governance.Governance
	Registry   *registry.Registry
	Jobs       *jobs.Store
	Guard      *oracle.Guard
	Engine     *arbiter.Engine

	EVM        *evm.Client
	Transactor *evm.Transactor

	Records     domain.RebalanceStore // nil without Postgres
	RateLimiter domain.RateLimiter    // nil without Redis
	Station     domain.StationClient  // nil when no station is configured
	Hub         *ws.Hub               // nil when the server is disabled
	Notifier    *notify.Notifier

	// Governor is the identity admin mutations act with.
	Governor common.Address

	// routers maps each venue dialect to its configured router, used to
	// bind routers to pools added after boot.
	routers map[domain.PoolType]domain.SwapRouter
}

// BindRouters registers the dialect router for each given pool. Pools
// whose dialect has no configured router are skipped; the decision
// engine will treat them as unroutable.
func (d *Dependencies) BindRouters(pools []domain.PoolConfig) error {
	var (
		addrs   []common.Address
		routers []domain.SwapRouter
	)
	for _, pool := range pools {
		router, ok := d.routers[pool.PoolType]
		if !ok {
			continue
		}
		addrs = append(addrs, pool.PoolAddr)
		routers = append(routers, router)
	}
	if len(addrs) == 0 {
		return nil
	}
	return d.Registry.SetRouters(d.Governor, addrs, routers)
}

// fanoutSink forwards each event to every registered sink.
type fanoutSink struct {
	sinks []domain.EventSink
}

func (f fanoutSink) RebalanceExecuted(rec domain.RebalanceRecord) {
	for _, s := range f.sinks {
		s.RebalanceExecuted(rec)
	}
}

func (f fanoutSink) GovernanceChanged(oldGovernor, newGovernor common.Address) {
	for _, s := range f.sinks {
		s.GovernanceChanged(oldGovernor, newGovernor)
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Governor: common.HexToAddress(cfg.Governance.Governor),
		routers:  make(map[domain.PoolType]domain.SwapRouter),
	}

	// --- Signing key ---
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: load key: %w", err)
	}
	signer, err := crypto.NewSigner(keyHex)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: signer: %w", err)
	}

	// --- Chain connection ---
	evmClient, err := evm.Dial(ctx, cfg.Chain.RPCURL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: evm: %w", err)
	}
	closers = append(closers, evmClient.Close)
	deps.EVM = evmClient

	transactor := evm.NewTransactor(evmClient, signer, logger)
	deps.Transactor = transactor
	pair := evm.NewPairClient(evmClient)
	feeds := evm.NewFeedReader(evmClient)

	// --- PostgreSQL (optional persistence) ---
	var jobRepo domain.JobRepository
	if cfg.Postgres.DSN != "" || cfg.Postgres.Host != "" {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		jobRepo = postgres.NewJobStore(pool)
		deps.Records = postgres.NewRebalanceStore(pool)
	}

	// --- Redis (optional cache, lock and rate limiting) ---
	var (
		priceCache domain.PriceCache
		locks      domain.LockManager
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		priceCache = redis.NewPriceCache(redisClient, priceCacheTTL)
		locks = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- Notifications and event fanout ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	sinks := []domain.EventSink{notify.NewEvents(deps.Notifier)}
	if cfg.Server.Enabled {
		deps.Hub = ws.NewHub(cfg.Mode, logger)
		sinks = append(sinks, deps.Hub)
	}
	sink := fanoutSink{sinks: sinks}

	// --- Governance, registries and guard ---
	gov := governance.New(
		deps.Governor,
		cfg.Governance.TransferDelay.Duration,
		logger,
		governance.WithEventSink(sink),
	)
	deps.Governance = gov

	reg := registry.New(gov, logger)
	deps.Registry = reg
	if err := reg.SetMaxStaleness(deps.Governor, cfg.Arbiter.MaxStaleness.Duration); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: registry staleness: %w", err)
	}
	if err := wireVenues(cfg, deps, evmClient, transactor); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: venues: %w", err)
	}

	guardOpts := []oracle.Option{}
	if priceCache != nil {
		guardOpts = append(guardOpts, oracle.WithCache(priceCache))
	}
	deps.Guard = oracle.New(reg, feeds, logger, guardOpts...)

	// --- Job store ---
	jobOpts := []jobs.Option{}
	if jobRepo != nil {
		jobOpts = append(jobOpts, jobs.WithRepository(jobRepo))
	}
	jobStore := jobs.New(gov, logger, jobOpts...)
	if err := jobStore.Restore(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: restore jobs: %w", err)
	}
	deps.Jobs = jobStore

	// Bind routers for every restored pool.
	for _, job := range jobStore.Snapshot() {
		if err := deps.BindRouters(job.Pools); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: bind routers: %w", err)
		}
	}

	// --- Execution engine ---
	rebalancer := common.HexToAddress(cfg.Chain.Rebalancer)
	executor := evm.NewExecutor(transactor, rebalancer)

	engineOpts := []arbiter.Option{
		arbiter.WithEventSink(sink),
		arbiter.WithMaxPayloadAge(cfg.Arbiter.MaxPayloadAge.Duration),
	}
	if locks != nil {
		engineOpts = append(engineOpts, arbiter.WithLockManager(locks))
	}
	if deps.Records != nil {
		engineOpts = append(engineOpts, arbiter.WithRebalanceStore(deps.Records))
	}
	deps.Engine = arbiter.New(jobStore, reg, deps.Guard, pair, executor, rebalancer, logger, engineOpts...)

	// --- Automation funding station (optional) ---
	if cfg.Station.Address != "" {
		deps.Station = station.New(
			evmClient,
			transactor,
			common.HexToAddress(cfg.Station.Address),
			logger,
		)
	}

	return deps, cleanup, nil
}

// wireVenues builds a quoter per configured dialect and a router per
// configured venue, registering the quoters with the registry. The
// constant product dialect quotes from pool reserves directly and needs
// no external quoter contract.
func wireVenues(cfg *config.Config, deps *Dependencies, evmClient *evm.Client, transactor *evm.Transactor) error {
	types := []domain.PoolType{domain.PoolTypeConstantProduct}
	quoters := []domain.PoolQuoter{evm.NewConstantProductQuoter(evmClient)}

	quoterAddrs := map[domain.PoolType]string{
		domain.PoolTypeConcentratedV3:      cfg.Chain.V3Quoter,
		domain.PoolTypeConcentratedAlgebra: cfg.Chain.AlgebraQuoter,
		domain.PoolTypeConcentratedKyber:   cfg.Chain.KyberQuoter,
	}
	for pt, addr := range quoterAddrs {
		if addr == "" {
			continue
		}
		q, err := evm.NewConcentratedQuoter(evmClient, common.HexToAddress(addr), pt)
		if err != nil {
			return fmt.Errorf("%s quoter: %w", pt, err)
		}
		types = append(types, pt)
		quoters = append(quoters, q)
	}
	if err := deps.Registry.SetQuoters(deps.Governor, types, quoters); err != nil {
		return err
	}

	routerAddrs := map[domain.PoolType]string{
		domain.PoolTypeConstantProduct:     cfg.Chain.V2Router,
		domain.PoolTypeConcentratedV3:      cfg.Chain.V3Router,
		domain.PoolTypeConcentratedAlgebra: cfg.Chain.AlgebraRouter,
		domain.PoolTypeConcentratedKyber:   cfg.Chain.KyberRouter,
	}
	for pt, addr := range routerAddrs {
		if addr == "" {
			continue
		}
		router, err := evm.NewRouter(transactor, common.HexToAddress(addr), pt)
		if err != nil {
			return fmt.Errorf("%s router: %w", pt, err)
		}
		deps.routers[pt] = router
	}
	return nil
}

// parseAmount parses a decimal wei amount from configuration.
func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("app: invalid amount %q", s)
	}
	return v, nil
}
