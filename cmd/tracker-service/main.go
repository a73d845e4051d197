package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mlaurent/parlay-tracker/internal/shared/cache"
	"github.com/mlaurent/parlay-tracker/internal/shared/config"
	skafka "github.com/mlaurent/parlay-tracker/internal/shared/kafka"
	"github.com/mlaurent/parlay-tracker/internal/shared/logger"
	"github.com/mlaurent/parlay-tracker/internal/shared/metrics"
	"github.com/mlaurent/parlay-tracker/internal/tracker-service/engine"
	thttp "github.com/mlaurent/parlay-tracker/internal/tracker-service/http"
	"github.com/mlaurent/parlay-tracker/internal/tracker-service/producer"
	"github.com/mlaurent/parlay-tracker/internal/tracker-service/pubsub"
	"github.com/mlaurent/parlay-tracker/internal/tracker-service/store"
	"github.com/mlaurent/parlay-tracker/internal/tracker-service/ws"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("tracker-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	// Redis: espelho de estado + canal Pub/Sub do board
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// Kafka writers (bet_settled e session_closed)
	settledWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer settledWriter.Close()
	closedWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSessionClosed)
	defer closedWriter.Close()

	// deps
	eng := engine.New(cfg.DefaultStake)
	mirror := store.NewRedisStore(rdb, cfg.RedisKeyPrefix)
	publ := producer.NewKafkaPublisher(settledWriter, closedWriter)
	bcast := pubsub.NewRedisBroadcaster(rdb)

	// Hidrata o engine a partir do espelho (estado local é autoridade
	// dali em diante; o espelho segue como cópia eventualmente consistente)
	bets, mise, current, sessions, err := mirror.Load(ctx)
	if err != nil {
		log.Warn("mirror load on boot", zap.Error(err))
	} else {
		eng.Hydrate(bets, current, sessions, mise)
		log.Info("state hydrated",
			zap.Int("bets", len(bets)),
			zap.Int("sessions", len(sessions)),
			zap.Bool("session_active", current != nil),
		)
	}

	// Hub WebSocket do board, alimentado pelo Pub/Sub do Redis
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, log, rdb, cfg.RedisPubSubChannel, hub)

	api := thttp.NewServer(log, eng, mirror, publ, bcast, cfg.RedisPubSubChannel, hub)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))
	_ = metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	log.Info("tracker-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
