package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"learnhub/internal/auth/service"
	"learnhub/internal/auth/store/user"
	"learnhub/internal/enrollment"
	enrollmentStore "learnhub/internal/enrollment/store"
	"learnhub/internal/notification"
	"learnhub/internal/platform/config"
	"learnhub/internal/platform/kafka"
	"learnhub/internal/platform/postgres"
	"learnhub/pkg/platform/tx"
)

type enrollmentStores interface {
	enrollment.Store
	service.EnrollmentStore
}

// persistence is either Postgres-backed or, without DATABASE_URL, in-memory.
type persistence struct {
	users       service.UserStore
	enrollments enrollmentStores
	tx          service.TxRunner
	db          *sql.DB
}

func openStores(ctx context.Context, cfg config.Server, log *slog.Logger) (*persistence, error) {
	if cfg.Postgres.DSN == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return &persistence{
			users:       user.New(),
			enrollments: enrollmentStore.NewInMemory(),
			tx:          tx.NewLockRunner(),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &persistence{
		users:       user.NewPostgres(db),
		enrollments: enrollmentStore.NewPostgres(db),
		tx:          postgres.NewTxRunner(db, cfg.Postgres.TxTimeout),
		db:          db,
	}, nil
}

// newSink builds the configured notification sink and a func releasing it.
func newSink(ctx context.Context, cfg config.Server, db *sql.DB, log *slog.Logger) (notification.Sink, func(), error) {
	switch cfg.Notification.Sink {
	case "kafka":
		producer, err := kafka.NewProducer(ctx, cfg.Kafka)
		if err != nil {
			return nil, nil, err
		}
		if err := producer.EnsureTopic(ctx, cfg.Kafka.NotificationTopic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			producer.Close()
			return nil, nil, err
		}
		return notification.NewKafkaSink(producer, cfg.Kafka.NotificationTopic), producer.Close, nil
	case "postgres":
		if db == nil {
			return nil, nil, fmt.Errorf("the postgres notification sink requires DATABASE_URL")
		}
		return notification.NewPostgresSink(db), func() {}, nil
	default:
		return notification.NewLogSink(log), func() {}, nil
	}
}
