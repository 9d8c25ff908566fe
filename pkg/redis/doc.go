// Package redis connects to the Redis server shared by the organization cache
// and the session store.
//
// Connect parses Config.ConnectionURL, retries PING until the server is ready
// or ConnectTimeout elapses, and returns a go-redis client. Healthcheck wraps
// PING for readiness probes. Config.KeyPrefix is passed to the stores so that
// several services can share one database.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	cache := rediscache.New(client, rediscache.WithPrefix(cfg.KeyPrefix+"org:"))
package redis
