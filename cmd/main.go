package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/realtime-service/config"
	"github.com/cwrk-planet/realtime-service/internal/analytics"
	"github.com/cwrk-planet/realtime-service/internal/hub"
	"github.com/cwrk-planet/realtime-service/internal/pg"
	"github.com/cwrk-planet/realtime-service/internal/repository/postgres"
	"github.com/cwrk-planet/realtime-service/internal/routing"
	httpserver "github.com/cwrk-planet/realtime-service/internal/server/http"
	"github.com/cwrk-planet/realtime-service/internal/service"
	grpcx "github.com/cwrk-planet/realtime-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/realtime-service/internal/transport/http"
	kafkax "github.com/cwrk-planet/realtime-service/internal/transport/kafka"
	"github.com/cwrk-planet/realtime-service/internal/transport/ws"
	"github.com/cwrk-planet/realtime-service/pkg/logger"

	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting realtime-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- analytics ---
	var (
		views analytics.Recorder
		queue *analytics.Queue
	)
	if cfg.Postgres.DSN != "" {
		pool, err := pg.NewPool(ctx, pg.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			ApplicationName: cfg.Logging.Service,
		})
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()

		repo := postgres.NewViewRepoFromPool(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		queue = analytics.NewQueue(repo, cfg.Analytics.Buffer, cfg.Analytics.WriteTimeout)
		queue.Start()
		views = queue
	} else {
		slog.Info("postgres dsn not set, product views are only logged")
		views = analytics.NewLogRecorder(nil)
	}

	// --- hub & dispatcher ---
	h := hub.New()
	h.Start()
	svc := service.NewDispatcher(h, routing.NewRouter(nil), views, nil)

	// --- WS & HTTP ---
	wsServer := ws.NewServer(svc, ws.Config{
		PingPeriod:     cfg.WS.PingPeriod,
		PongWait:       cfg.WS.PongWait,
		WriteWait:      cfg.WS.WriteWait,
		SendBuffer:     cfg.WS.SendBuffer,
		MaxMessageSize: cfg.WS.MaxMessageSize,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	router := httpx.NewRouter(ctx, httpx.Deps{
		Handler:        httpx.NewHandler(svc),
		WS:             wsServer.HandleWS,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		EmitRPS:        cfg.HTTP.EmitRPS,
		EmitBurst:      cfg.HTTP.EmitBurst,
	})
	httpSrv := httpserver.New(httpserver.Config{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, router)

	errCh := make(chan error, 3)
	ingress := 0

	ingress++
	go func() { errCh <- httpSrv.Run(ctx) }()

	// --- gRPC (опционально) ---
	var grpcServer *grpc.Server
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcServer = grpc.NewServer(
			grpc.ChainUnaryInterceptor(grpcx.UnaryServerInterceptor(10*time.Second)),
			grpc.ChainStreamInterceptor(grpcx.StreamServerInterceptor()),
		)
		grpcx.Register(grpcServer, grpcx.NewServer(svc))

		ingress++
		go func() {
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			errCh <- grpcServer.Serve(lis)
		}()
	}

	// --- Kafka (опционально) ---
	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := kafkax.NewConsumer(kafkax.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
			MaxWait: cfg.Kafka.MaxWait,
		}, svc)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		ingress++
		go func() { errCh <- consumer.Run(ctx) }()
	}

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		ingress--
		if err != nil {
			slog.Error("ingress stopped with error", "err", err)
		}
	}
	stop()

	// 1) ingress: новых событий и соединений больше нет
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	for ; ingress > 0; ingress-- {
		if err := <-errCh; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			slog.Warn("ingress shutdown", "err", err)
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 2) hub: каждое соединение проходит путь Closed
	if err := h.Shutdown(shCtx); err != nil {
		slog.Error("hub shutdown", "err", err)
	}

	// 3) analytics: дописываем очередь просмотров
	if queue != nil {
		if err := queue.Close(shCtx); err != nil {
			slog.Error("analytics flush", "err", err)
		}
	}

	slog.Info("stopped")
}
