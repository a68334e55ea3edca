package api

import (
	"context"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ragetrade/vaultmetrics/app/api/types"
	"github.com/ragetrade/vaultmetrics/pkg/aggregated"
	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"github.com/ragetrade/vaultmetrics/pkg/logging"
	"github.com/ragetrade/vaultmetrics/pkg/network"
	"github.com/ragetrade/vaultmetrics/pkg/redis"
	"github.com/ragetrade/vaultmetrics/pkg/rpc"
	"github.com/ragetrade/vaultmetrics/pkg/sampler"
	"github.com/ragetrade/vaultmetrics/pkg/utils"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	if err := utils.LoadDotEnv(); err != nil {
		panic(err)
	}

	logger, err := logging.New("api")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, err := NewStore(ctx, utils.Env("CACHE_STORE", "redis"), logger)
	if err != nil {
		logger.Fatal("Unable to initialize cache store", zap.Error(err))
	}

	resultCache, err := cache.New(store, cache.Options{
		Logger:           logger.Named("cache"),
		CompressMinBytes: utils.EnvInt("CACHE_COMPRESS_MIN_BYTES", cache.DefaultCompressMinBytes),
	})
	if err != nil {
		logger.Fatal("Unable to initialize cache", zap.Error(err))
	}

	networksFile := utils.Env("NETWORKS_FILE", "networks.yaml")
	networks, err := network.Load(networksFile)
	if err != nil {
		logger.Fatal("Unable to load networks", zap.String("file", networksFile), zap.Error(err))
	}

	factory := rpc.NewHTTPFactory(rpc.Opts{
		Timeout:    utils.EnvDuration("RPC_TIMEOUT", 60*time.Second),
		RPS:        utils.EnvInt("RPC_RPS", 20),
		Burst:      utils.EnvInt("RPC_BURST", 40),
		MaxRetries: utils.EnvInt("RPC_MAX_RETRIES", 3),
		Logger:     logger.Named("rpc"),
	})
	registry := network.NewRegistry(networks, factory, logger)
	if err := registry.ValidateChainIDs(ctx); err != nil {
		logger.Fatal("RPC endpoints do not match configured chains", zap.Error(err))
	}

	workers := sampler.Parallelism(utils.EnvInt("SAMPLER_PARALLELISM", 0))
	pool := pond.NewPool(workers)

	app := &types.App{
		Cache:    resultCache,
		Networks: registry,
		Pool:     pool,
		Metrics: &aggregated.Context{
			Logger:   logger.Named("aggregated"),
			Cache:    resultCache,
			Networks: registry,
			Pool:     pool,
		},
		Logger: logger,
	}

	if utils.EnvBool("WARMUP_ENABLED", false) {
		if err := app.SetupScheduler(ctx, utils.Env("WARMUP_CRON", "0 0 */6 * * *")); err != nil {
			logger.Fatal("Unable to schedule warm-up", zap.Error(err))
		}
	}

	logger.Info("Initialized",
		zap.Strings("networks", registry.Names()),
		zap.Int("workers", workers),
		zap.Bool("warmup", app.Cron != nil),
	)

	return app
}

// NewStore opens the cache store selected by kind.
func NewStore(ctx context.Context, kind string, logger *zap.Logger) (cache.Store, error) {
	switch kind {
	case "redis":
		client, err := redis.NewClient(ctx, logger)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisStore(client), nil
	case "badger":
		return cache.OpenBadgerStore(utils.Env("BADGER_PATH", "./data/cache"), logger)
	case "memory":
		return cache.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown CACHE_STORE %q (want redis, badger or memory)", kind)
	}
}
