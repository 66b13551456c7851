package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/domain"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/infrastructure/persistence"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/modules/masterdata/services"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/blob"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/blob/fs"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/blob/s3"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/composables"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/configuration"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/eventbus"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/lock"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/outbox"
)

// app holds the process-wide dependencies built from the configuration.
type app struct {
	conf  *configuration.Configuration
	log   *logrus.Logger
	pool  *pgxpool.Pool
	bus   eventbus.EventBus
	store *persistence.PostgresStore
	redis redis.UniversalClient
}

func newApp(ctx context.Context) (*app, error) {
	conf := configuration.Use()
	pool, err := connectDB(ctx)
	if err != nil {
		return nil, err
	}
	return &app{
		conf:  conf,
		log:   conf.Logger(),
		pool:  pool,
		bus:   eventbus.NewEventPublisher(conf.Logger()),
		store: persistence.NewPostgresStore(),
	}, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// context carries the pool, a run id and a logger tagged with it.
func (a *app) context(ctx context.Context) context.Context {
	runID := uuid.NewString()
	ctx = composables.WithPool(ctx, a.pool)
	ctx = composables.WithRunID(ctx, runID)
	return composables.WithLogger(ctx, logrus.NewEntry(a.log).WithField("run_id", runID))
}

func (a *app) writer() *services.Writer {
	return services.NewWriter(a.store, services.NewNotifier(a.bus))
}

func (a *app) notifier() (*services.Notifier, error) {
	if !a.conf.Nayose.OutboxEnabled {
		return services.NewNotifier(a.bus), nil
	}
	table, err := outbox.ParseIdentifier(a.conf.Nayose.OutboxTable)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("NAYOSE_OUTBOX_TABLE: %w", err))
	}
	return services.NewNotifier(a.bus, services.WithOutbox(outbox.NewPublisher(), table)), nil
}

func (a *app) locker() lock.Locker {
	if a.conf.Nayose.LockDriver != "redis" {
		return lock.NewMemory()
	}
	if a.redis == nil {
		a.redis = newRedisClient(a.conf.RedisURL)
	}
	return lock.NewRedis(a.redis, a.conf.Nayose.LockTTL)
}

func newRedisClient(url string) redis.UniversalClient {
	if strings.Contains(url, "://") {
		if opts, err := redis.ParseURL(url); err == nil {
			return redis.NewClient(opts)
		}
	}
	return redis.NewClient(&redis.Options{Addr: url})
}

// newBlobStore opens the store holding nayose files.
func newBlobStore(ctx context.Context, conf *configuration.Configuration) (blob.Store, error) {
	n := conf.Nayose
	if n.BlobDriver == "s3" {
		st, err := s3.New(ctx, s3.Config{
			Region:          n.S3.Region,
			Bucket:          n.S3.Bucket,
			Prefix:          n.S3.Prefix,
			Endpoint:        n.S3.Endpoint,
			AccessKeyID:     n.S3.AccessKey,
			SecretAccessKey: n.S3.SecretKey,
			PathStyle:       n.S3.PathStyle,
		})
		if err != nil {
			return nil, withCode(exitExport, fmt.Errorf("s3 store: %w", err))
		}
		return st, nil
	}
	st, err := fs.New(n.Dir)
	if err != nil {
		return nil, withCode(exitExport, fmt.Errorf("fs store: %w", err))
	}
	return st, nil
}

func (a *app) scanner(ctx context.Context, etl services.ETL) (*services.Scanner, error) {
	notifier, err := a.notifier()
	if err != nil {
		return nil, err
	}
	blobs, err := newBlobStore(ctx, a.conf)
	if err != nil {
		return nil, err
	}
	opts := []services.ScannerOption{
		services.WithNotifier(notifier),
		services.WithExporter(services.NewExporter(blobs, a.locker())),
		services.WithCatalog(domain.NewCatalog(a.log)),
		services.WithTxRunner(composables.InTx),
	}
	if path := a.conf.Nayose.WordDictionary; path != "" {
		dict, err := services.LoadWordDictionary(path)
		if err != nil {
			return nil, withCode(exitUsage, err)
		}
		opts = append(opts, services.WithDictionary(dict))
	}
	return services.NewScanner(a.store, etl, services.NewStoreConfigLoader(a.store), opts...), nil
}
