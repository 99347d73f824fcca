package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/analytics"
	"github.com/example/listening-companion/internal/platform/breaker"
	platformconfig "github.com/example/listening-companion/internal/platform/config"
	"github.com/example/listening-companion/internal/platform/db"
	"github.com/example/listening-companion/internal/platform/httpserver"
	"github.com/example/listening-companion/internal/platform/logging"
	"github.com/example/listening-companion/internal/platform/natsconn"
	"github.com/example/listening-companion/internal/platform/observe"
	"github.com/example/listening-companion/internal/platform/run"
	"github.com/example/listening-companion/services/api/internal/cache"
	"github.com/example/listening-companion/services/api/internal/config"
	"github.com/example/listening-companion/services/api/internal/content"
	"github.com/example/listening-companion/services/api/internal/handlers"
	"github.com/example/listening-companion/services/api/internal/llm"
	"github.com/example/listening-companion/services/api/internal/proxy"
	"github.com/example/listening-companion/services/api/internal/punctuate"
	"github.com/example/listening-companion/services/api/internal/quizgen"
	"github.com/example/listening-companion/services/api/internal/ratelimit"
	"github.com/example/listening-companion/services/api/internal/store"
	"github.com/example/listening-companion/services/api/internal/tokens"
	"github.com/example/listening-companion/services/api/internal/youtube"
)

func main() {
	appCfg, err := platformconfig.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(appCfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", appCfg.ServiceName))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load api config", zap.Error(err))
		run.Exit(1)
	}

	ctx := context.Background()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: appCfg.ServiceName})
	if err != nil {
		log.Error("init metrics", zap.Error(err))
		run.Exit(1)
	}
	metrics := observe.DefaultMetrics()

	st, closeStore, err := openStore(ctx, cfg, appCfg, log)
	if err != nil {
		log.Error("open store", zap.Error(err))
		run.Exit(1)
	}

	importCache, closeCache := openCache(ctx, cfg, log)

	publisher, closeNATS := openPublisher(cfg, log)

	cbSettings := breaker.Settings{
		MaxRequests:      cfg.CBMaxRequests,
		Interval:         cfg.CBInterval,
		Timeout:          cfg.CBTimeout,
		FailureThreshold: cfg.CBFailureThreshold,
	}
	llmOpts := []llm.Option{
		llm.WithCircuitBreaker(breaker.New("openai", cbSettings, log)),
		llm.WithMetrics(metrics),
		llm.WithLogger(log),
	}
	if cfg.OpenAIBaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.OpenAIBaseURL))
	}
	llmClient := llm.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, llmOpts...)
	if !llmClient.Configured() {
		log.Warn("OPENAI_API_KEY not set; quiz generation and punctuation are disabled")
	}

	proxyEnv := proxy.FromEnv()
	ytOpts := []youtube.Option{
		youtube.WithCircuitBreaker(breaker.New("youtube", cbSettings, log)),
		youtube.WithMetrics(metrics),
		youtube.WithLogger(log),
	}
	if hc := proxyEnv.Client(30 * time.Second); hc != nil {
		log.Info("youtube proxy configured", zap.String("hint", proxyEnv.Hint()))
		ytOpts = append(ytOpts, youtube.WithProxyClient(hc))
	}

	importer := &content.Importer{
		HTTP:       content.NewHTTPClient(),
		YouTube:    youtube.New(ytOpts...),
		Punctuator: punctuate.New(llmClient, log),
		Cache:      importCache,
		Metrics:    metrics,
		Log:        log,
	}

	limiter := ratelimit.New(cfg.AuthRateLimit, cfg.AuthRateBurst)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: func() error {
			pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return st.Ping(pctx)
		},
		Logger:      log,
		Middlewares: []func(http.Handler) http.Handler{observe.Middleware(metrics)},
	})
	r.Handle("/metrics", observe.Handler())

	handlers.Mount(r, handlers.Deps{
		Store:       st,
		Tokens:      tokens.Service{Secret: cfg.JWTSecret, AccessTokenTTL: cfg.AccessTokenTTL},
		Generator:   quizgen.New(llmClient),
		Importer:    importer,
		Analytics:   publisher,
		Proxy:       proxyEnv,
		Log:         log,
		AuthLimiter: limiter.Middleware,
	})

	srv := httpserver.New(httpserver.Options{Addr: appCfg.HTTP.Addr, ServiceName: appCfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go pruneLimiter(ctx, limiter)
		if err := srv.Start(log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	runner.Graceful(srv.Shutdown)
	closeNATS()
	closeCache()
	closeStore()
	runner.Graceful(shutdownMetrics)

	log.Info("exit", zap.Int("code", code))
	_ = log.Sync()
	run.Exit(code)
}

// openStore connects to Postgres when DATABASE_URL is set. Without it the
// in-memory store is used, which production refuses.
func openStore(ctx context.Context, cfg config.Config, appCfg platformconfig.AppConfig, log *zap.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		if appCfg.IsProduction() {
			return nil, nil, errors.New("DATABASE_URL is required in production")
		}
		log.Warn("DATABASE_URL not set; using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	pool, err := db.Open(ctx, db.Options{DSN: cfg.DatabaseURL})
	if err != nil {
		return nil, nil, err
	}
	pg := store.Postgres{DB: pool}
	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := pg.Migrate(mctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info("postgres connected")
	return pg, pool.Close, nil
}

// openCache prefers Redis and falls back to the in-process TTL cache when
// REDIS_URL is unset or unreachable.
func openCache(ctx context.Context, cfg config.Config, log *zap.Logger) (cache.Cache, func()) {
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL, cfg.CacheTTL)
		if err == nil {
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err = rc.Ping(pctx)
			cancel()
			if err == nil {
				log.Info("redis import cache enabled")
				return rc, func() { _ = rc.Close() }
			}
			_ = rc.Close()
		}
		log.Warn("redis unavailable; using in-memory import cache", zap.Error(err))
	}
	return cache.NewTTLCache(cfg.CacheTTL), func() {}
}

// openPublisher connects to NATS when NATS_URL is set. Analytics events are
// dropped otherwise.
func openPublisher(cfg config.Config, log *zap.Logger) (*analytics.Publisher, func()) {
	if cfg.NATSURL == "" {
		log.Info("NATS_URL not set; analytics events disabled")
		return analytics.New(nil, log), func() {}
	}
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: "listening-api", Logger: log})
	if err != nil {
		log.Warn("nats connect failed; analytics events disabled", zap.Error(err))
		return analytics.New(nil, log), func() {}
	}
	js, err := nc.JetStream()
	if err != nil {
		log.Warn("jetstream unavailable; analytics events disabled", zap.Error(err))
		nc.Close()
		return analytics.New(nil, log), func() {}
	}
	if _, err := natsconn.EnsureStream(js, analytics.Stream); err != nil {
		log.Warn("analytics stream not declared; publishes may be dropped", zap.Error(err))
	}
	return analytics.New(js, log), nc.Close
}

func pruneLimiter(ctx context.Context, l *ratelimit.Limiter) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Prune()
		}
	}
}
