package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/blindquiz/internal/api"
	"github.com/victornm/blindquiz/internal/catalog"
	"github.com/victornm/blindquiz/internal/event"
	"github.com/victornm/blindquiz/internal/game"
	"github.com/victornm/blindquiz/internal/leaderboard"
	"github.com/victornm/blindquiz/internal/room"
	"github.com/victornm/blindquiz/internal/telemetry"
)

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres struct {
			catalog *pgxpool.Pool
		}

		catalog catalog.Reader
	}

	service struct {
		room        *room.Service
		leaderboard *leaderboard.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	settings, err := c.Game.Settings()
	if err != nil {
		return nil, fmt.Errorf("server: game settings: %w", err)
	}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService(settings)
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initCatalog(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

// initCatalog prefers postgres and falls back to the seed file.
func (s *Server) initCatalog() (err error) {
	pc := s.c.Postgres.Catalog
	if pc.Addr == "" {
		if s.c.Catalog.File == "" {
			return fmt.Errorf("neither postgres nor a catalog file is configured")
		}

		m, err := catalog.LoadFile(s.c.Catalog.File)
		if err != nil {
			return err
		}

		slog.Info("server: catalog loaded from file", "file", s.c.Catalog.File)
		s.infra.catalog = m
		return nil
	}

	connect := func(addr, user, pass, name string) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	s.infra.postgres.catalog, err = connect(pc.Addr, pc.User, pc.Pass, pc.Name)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	s.infra.catalog = catalog.NewPostgres(s.infra.postgres.catalog)
	return nil
}

func (s *Server) initService(settings game.Settings) {
	s.service.room = room.NewService(room.Config{
		EventBus: s.eb,
		Catalog:  s.infra.catalog,
		Settings: settings,
		Capacity: s.c.Game.Capacity,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus:        s.eb,
		Redis:           s.infra.redis.leaderboard,
		Prefix:          s.c.Redis.Leaderboard.Prefix,
		PublishInterval: s.c.Redis.Leaderboard.PublishInterval,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor()...)
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Room:         s.service.room,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
		PublicURL:    s.c.HTTP.PublicURL,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	// Rooms publish their last events while stopping.
	if err := s.service.room.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown rooms failed", "error", err)
	}

	s.eb.Stop()

	if s.infra.postgres.catalog != nil {
		s.infra.postgres.catalog.Close()
	}
	for _, r := range []redis.UniversalClient{s.infra.redis.leaderboard, s.infra.redis.pubsub} {
		if err := r.Close(); err != nil {
			slog.WarnContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
