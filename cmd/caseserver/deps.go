package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/opensearch-project/opensearch-go/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/casekit/pkg/config"
	"github.com/dmitrymomot/casekit/pkg/httpserver"
	"github.com/dmitrymomot/casekit/pkg/logger"
	mongoconn "github.com/dmitrymomot/casekit/pkg/mongo"
	searchconn "github.com/dmitrymomot/casekit/pkg/opensearch"
	"github.com/dmitrymomot/casekit/pkg/pg"
	redisconn "github.com/dmitrymomot/casekit/pkg/redis"
)

// deps holds the infrastructure clients the configuration asks for.
// Clients that are not needed stay nil.
type deps struct {
	pg     *pgxpool.Pool
	pgCfg  pg.Config
	redis  *goredis.Client
	rdCfg  redisconn.Config
	mongo  *mongo.Database
	search *opensearch.Client
	osCfg  searchconn.Config

	checks  map[string]httpserver.Check
	closers []func(context.Context) error
}

func connect(ctx context.Context, cfg appConfig, log *slog.Logger) (d *deps, err error) {
	d = &deps{checks: map[string]httpserver.Check{}}
	defer func() {
		if err != nil {
			d.close(context.WithoutCancel(ctx), log)
		}
	}()

	if cfg.needsPostgres() {
		if err := config.Load(&d.pgCfg); err != nil {
			return d, err
		}
		if d.pg, err = pg.Connect(ctx, d.pgCfg); err != nil {
			return d, err
		}
		d.checks["postgres"] = httpserver.Check(pg.Healthcheck(d.pg))
		d.closers = append(d.closers, func(context.Context) error { d.pg.Close(); return nil })
		log.InfoContext(ctx, "connected to postgres", logger.Component("caseserver"))
	}

	if cfg.needsRedis() {
		if err := config.Load(&d.rdCfg); err != nil {
			return d, err
		}
		if d.redis, err = redisconn.Connect(ctx, d.rdCfg); err != nil {
			return d, err
		}
		d.checks["redis"] = httpserver.Check(redisconn.Healthcheck(d.redis))
		d.closers = append(d.closers, func(context.Context) error { return d.redis.Close() })
		log.InfoContext(ctx, "connected to redis", logger.Component("caseserver"))
	}

	if cfg.needsSink(sinkMongo) {
		var mcfg mongoconn.Config
		if err := config.Load(&mcfg); err != nil {
			return d, err
		}
		if d.mongo, err = mongoconn.NewWithDatabase(ctx, mcfg); err != nil {
			return d, err
		}
		d.checks["mongo"] = httpserver.Check(mongoconn.Healthcheck(d.mongo.Client()))
		d.closers = append(d.closers, func(ctx context.Context) error { return d.mongo.Client().Disconnect(ctx) })
		log.InfoContext(ctx, "connected to mongodb", logger.Component("caseserver"))
	}

	if cfg.needsSink(sinkOpenSearch) {
		if err := config.Load(&d.osCfg); err != nil {
			return d, err
		}
		if d.search, err = searchconn.New(ctx, d.osCfg); err != nil {
			return d, err
		}
		d.checks["opensearch"] = httpserver.Check(searchconn.Healthcheck(d.search))
		log.InfoContext(ctx, "connected to opensearch", logger.Component("caseserver"))
	}

	return d, nil
}

// close releases clients in reverse order of acquisition.
func (d *deps) close(ctx context.Context, log *slog.Logger) {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i](ctx))
	}
	if err := errors.Join(errs...); err != nil {
		log.ErrorContext(ctx, "failed to close dependencies", logger.Component("caseserver"), logger.Error(err))
	}
}
