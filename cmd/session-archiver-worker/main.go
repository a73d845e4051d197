package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sadto "github.com/mlaurent/parlay-tracker/internal/session-archiver/dto"
	sarepo "github.com/mlaurent/parlay-tracker/internal/session-archiver/repo"
	"github.com/mlaurent/parlay-tracker/internal/shared/config"
	"github.com/mlaurent/parlay-tracker/internal/shared/db"
	"github.com/mlaurent/parlay-tracker/internal/shared/kafka"
	"github.com/mlaurent/parlay-tracker/internal/shared/logger"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Conexão com Postgres para o arquivo de sessões fechadas
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer: consome eventos session_closed para arquivar
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  strings.Split(cfg.KafkaBrokers, ","),
		GroupID:  "session-archiver",
		Topic:    cfg.TopicSessionClosed,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	// DLQ para eventos que falharam após os retries
	var dlqWriter *kafkago.Writer
	if cfg.TopicSessionClosedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSessionClosedDLQ)
		defer dlqWriter.Close()
	}

	archive := sarepo.NewPostgres(pg)

	// Servidor HTTP para métricas Prometheus e healthcheck
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			if err := pg.PingContext(ctx); err != nil {
				http.Error(w, "pg", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		addr := ":" + cfg.MetricsPort
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, mux)
	}()

	log.Info("session-archiver-worker started", zap.String("consume", cfg.TopicSessionClosed))

	ctx := context.Background()

	// Loop principal: consome session_closed e arquiva no Postgres
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var closed sadto.SessionClosed
		if jerr := json.Unmarshal(msg.Value, &closed); jerr != nil {
			log.Error("unmarshal session_closed", zap.Error(jerr))
			continue
		}

		if err := archiveOne(ctx, archive, &closed); err != nil {
			log.Error("archive session", zap.String("sessionId", closed.SessionID), zap.Error(err))
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, closed.SessionID, msg.Value)
			}
			// Backoff simples para evitar flood em caso de erro
			time.Sleep(500 * time.Millisecond)
			continue
		}

		log.Info("session archived",
			zap.String("sessionId", closed.SessionID),
			zap.String("status", closed.Status),
			zap.Int("steps", closed.StepCount),
		)
	}
}

// archiveOne grava a sessão com retry simples antes de desistir
func archiveOne(ctx context.Context, archive *sarepo.Postgres, ev *sadto.SessionClosed) error {
	const retries = 3
	var err error
	for i := 0; i < retries; i++ {
		if err = archive.Archive(ctx, ev); err == nil {
			return nil
		}
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	return err
}
