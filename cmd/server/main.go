package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"keymarket/internal/access"
	accessmetrics "keymarket/internal/access/metrics"
	"keymarket/internal/access/revocation"
	"keymarket/internal/asset"
	"keymarket/internal/jwtauth"
	"keymarket/internal/listing"
	listingmetrics "keymarket/internal/listing/metrics"
	"keymarket/internal/platform/config"
	"keymarket/internal/platform/httpserver"
	"keymarket/internal/platform/logger"
	platformredis "keymarket/internal/platform/redis"
	"keymarket/internal/revenue"
	revenuemetrics "keymarket/internal/revenue/metrics"
	"keymarket/internal/settlement"
	settlementmetrics "keymarket/internal/settlement/metrics"
	httptransport "keymarket/internal/transport/http"
	id "keymarket/pkg/domain"
	audit "keymarket/pkg/platform/audit"
	auditkafka "keymarket/pkg/platform/audit/kafka"
	auditpostgres "keymarket/pkg/platform/audit/store/postgres"
)

// main wires the ledgers together and keeps the lifecycle small. Postgres,
// Redis, and Kafka are all optional: without them the server runs entirely in
// memory, which is the dev and test shape.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			return err
		}
	}

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var events audit.Store
	if db != nil {
		events = auditpostgres.New(db)
	} else {
		events = audit.NewInMemoryStore()
	}

	var (
		assetStore   asset.Store
		listingStore listing.Store
		accessStore  access.Store
		revenueStore revenue.Store
	)
	if db != nil {
		assetStore = asset.NewPostgres(db)
		listingStore = listing.NewPostgres(db)
		accessStore = access.NewPostgres(db)
		revenueStore = revenue.NewPostgres(db)
	} else {
		assetStore = asset.NewInMemoryStore()
		listingStore = listing.NewInMemoryStore()
		accessStore = access.NewInMemoryStore()
		revenueStore = revenue.NewInMemoryStore()
	}

	var revoked revocation.List = revocation.NewInMemoryList()
	if rdb != nil {
		revoked = revocation.NewRedisList(rdb.Client)
	}

	assetSvc := asset.NewService(assetStore, events, log)
	listingSvc := listing.NewService(listingStore, events, log, cfg.FeePercent,
		listing.WithMetrics(listingmetrics.New()),
	)
	accessSvc := access.NewService(accessStore, events, log,
		access.WithRevocationList(revoked),
		access.WithMetrics(accessmetrics.New()),
	)
	revenueSvc := revenue.NewService(revenueStore, events, log, id.Principal(cfg.FeeRecipient),
		revenue.WithMetrics(revenuemetrics.New()),
	)
	settlementSvc := settlement.NewService(listingSvc, revenueSvc, accessSvc, events, log,
		settlement.WithMetrics(settlementmetrics.New()),
	)

	tokens := jwtauth.NewService(cfg.JWTSigningKey, "keymarket")

	checks := map[string]httptransport.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if rdb != nil {
		checks["redis"] = rdb.Health
	}

	router := httptransport.NewRouter(httptransport.Handlers{
		Assets:      asset.NewHandler(assetSvc, log),
		Listings:    listing.NewHandler(listingSvc, log),
		Credentials: access.NewHandler(accessSvc, log),
		Revenue:     revenue.NewHandler(revenueSvc, log),
		Settlement:  settlement.NewHandler(settlementSvc, log),
		System:      httptransport.NewSystemHandler(checks, events, tokens, cfg.DevLogin, log),
	}, tokens, log)

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting keymarket", "addr", cfg.Addr, "fee_percent", cfg.FeePercent)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// The audit pipeline needs both the outbox (Postgres) and Kafka.
	if db != nil && len(cfg.KafkaBrokers) > 0 {
		topics := auditkafka.DefaultTopics()

		producer, err := kgo.NewClient(kgo.SeedBrokers(cfg.KafkaBrokers...))
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := auditkafka.EnsureTopics(ctx, producer, topics); err != nil {
			return err
		}
		relay := auditkafka.NewRelay(db, producer, topics, log)
		g.Go(func() error {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})

		consumerClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.KafkaBrokers...),
			kgo.ConsumerGroup("keymarket-audit"),
			kgo.ConsumeTopics(topics.Compliance, topics.Security, topics.Operations),
		)
		if err != nil {
			return err
		}
		consumer := auditkafka.NewConsumer(consumerClient, auditpostgres.New(db), log)
		g.Go(func() error {
			defer consumerClient.Close()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
