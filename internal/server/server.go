package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/dramquiz/internal/api"
	"github.com/victornm/dramquiz/internal/event"
	"github.com/victornm/dramquiz/internal/game"
	"github.com/victornm/dramquiz/internal/leaderboard"
	"github.com/victornm/dramquiz/internal/ledger"
	"github.com/victornm/dramquiz/internal/migrations"
	"github.com/victornm/dramquiz/internal/question"
	"github.com/victornm/dramquiz/internal/record"
	"github.com/victornm/dramquiz/internal/telemetry"
)

type Server struct {
	c Config

	eb      *event.Bus
	metrics *telemetry.Metrics

	infra struct {
		redis struct {
			cache       redis.UniversalClient
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres *pgxpool.Pool
		mongo    *mongo.Client
		sqlite   *record.SQLiteStore
	}

	service struct {
		game        *game.Service
		record      *record.Service
		leaderboard *leaderboard.Service
		ledger      ledger.Ledger
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server

	janitor     context.Context
	stopJanitor context.CancelFunc
}

func Init(c Config) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{c: c}
	s.janitor, s.stopJanitor = context.WithCancel(context.Background())

	s.eb = event.NewBus()
	s.metrics = telemetry.NewMetrics(prometheus.DefaultRegisterer)
	s.metrics.Subscribe(s.eb)

	if err := s.initInfra(); err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if s.c.usesPostgres() {
		if err := s.initPostgres(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}

	if s.c.Questions.Source == SourceMongo {
		if err := s.initMongo(); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}

	if s.c.Record.Store == StoreSQLite {
		st, err := record.OpenSQLite(s.c.SQLite.Path)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		s.infra.sqlite = st
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(r RedisConfig) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		rc := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    r.Addrs,
			Password: r.Pass,
		})

		if err := telemetry.MonitorRedis(rc); err != nil {
			return nil, err
		}

		if err := rc.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return rc, nil
	}

	var err error
	s.infra.redis.cache, err = connect(s.c.Redis.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.c.Postgres.Migrate {
		if err := migrations.Up(ctx, s.c.PostgresDSN()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	cc, err := pgxpool.ParseConfig(s.c.PostgresDSN())
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initMongo() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.c.Mongo.URI))
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return stderrors.Join(err, client.Disconnect(ctx))
	}

	s.infra.mongo = client
	return nil
}

func (s *Server) initService() error {
	source, err := s.questionSource()
	if err != nil {
		return fmt.Errorf("questions: %w", err)
	}

	modes, err := game.ApplySettings(s.c.Modes)
	if err != nil {
		return err
	}

	s.service.game = game.NewService(game.Config{
		EventBus: s.eb,
		Source: question.NewCached(question.CachedConfig{
			Source: source,
			Redis:  s.infra.redis.cache,
			Prefix: s.c.Redis.Cache.Prefix,
			TTL:    s.c.Questions.CacheTTL,
		}),
		Seen: question.NewSeen(question.SeenConfig{
			Redis:  s.infra.redis.cache,
			Prefix: s.c.Redis.Cache.Prefix,
			Limit:  s.c.Seen.Limit,
			TTL:    s.c.Seen.TTL,
		}),
		Modes: modes,
	})

	switch s.c.Record.Ledger {
	case LedgerPostgres:
		s.service.ledger = ledger.NewPostgres(s.infra.postgres)
	case LedgerMemory:
		s.service.ledger = ledger.NewMemory()
	}

	var store record.Store
	switch s.c.Record.Store {
	case StorePostgres:
		store = record.NewPostgresStore(s.infra.postgres)
	case StoreSQLite:
		store = s.infra.sqlite
	default:
		store = record.NewMemoryStore()
	}

	s.service.record = record.NewService(record.Config{
		EventBus:        s.eb,
		Store:           store,
		Ledger:          s.service.ledger,
		MaxAttempts:     s.c.Record.MaxAttempts,
		InitialInterval: s.c.Record.InitialInterval,
		MaxInterval:     s.c.Record.MaxInterval,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})

	return nil
}

func (s *Server) questionSource() (question.Source, error) {
	switch s.c.Questions.Source {
	case SourcePostgres:
		return question.NewPostgres(s.infra.postgres), nil
	case SourceMongo:
		return question.NewMongo(s.infra.mongo, s.c.Mongo.Database, s.c.Mongo.Collection), nil
	default:
		st, err := question.LoadCatalog(s.c.Questions.Catalog)
		if err != nil {
			return nil, err
		}
		slog.Info("server: catalog loaded", "path", s.c.Questions.Catalog, "items", st.Len())
		return st, nil
	}
}

func (s *Server) initAPI() {
	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = telemetry.RegisterHealth(s.grpc)

	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/healthz", s.healthz)
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), s.metrics.GinMiddleware())

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Game:         s.service.game,
		Record:       s.service.record,
		Leaderboard:  s.service.leaderboard,
		Ledger:       s.service.ledger,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// healthz mirrors the gRPC health service for HTTP probes.
func (s *Server) healthz(c *gin.Context) {
	resp, err := s.health.Check(c.Request.Context(), &grpc_health_v1.HealthCheckRequest{})
	if err != nil || resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": resp.GetStatus().String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": resp.GetStatus().String()})
}

func (s *Server) Start() {
	ctx := s.janitor

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, "server: gRPC listening", "port", s.c.GRPC.Port)
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, "server: HTTP listening", "port", s.c.HTTP.Port)
		if err := s.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		s.service.game.RunJanitor(ctx, s.c.Session.JanitorInterval, s.c.Session.TTL)
		return nil
	})

	s.health.Resume()

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.stopJanitor()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()
	s.closeInfra()

	slog.InfoContext(ctx, "server: shutdown completed")
}

func (s *Server) closeInfra() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for name, rc := range map[string]redis.UniversalClient{
		"cache":       s.infra.redis.cache,
		"leaderboard": s.infra.redis.leaderboard,
		"pubsub":      s.infra.redis.pubsub,
	} {
		if rc == nil {
			continue
		}
		if err := rc.Close(); err != nil {
			slog.WarnContext(ctx, "server: close redis failed", "client", name, "error", err)
		}
	}

	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	if s.infra.mongo != nil {
		if err := s.infra.mongo.Disconnect(ctx); err != nil {
			slog.WarnContext(ctx, "server: disconnect mongo failed", "error", err)
		}
	}

	if s.infra.sqlite != nil {
		if err := s.infra.sqlite.Close(); err != nil {
			slog.WarnContext(ctx, "server: close sqlite failed", "error", err)
		}
	}
}
