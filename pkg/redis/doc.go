// Package redis provides helpers for connecting to a Redis server.
//
// The package wraps the go-redis client and adds:
//
//   - Connect, which retries the connection using the supplied configuration.
//   - Storage, a thin prefixed key-value wrapper used for shared caches.
//   - Healthcheck, for liveness and readiness probes.
//
// Config is populated from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := redis.NewStorage(client, "flagkit:env:")
//	if err := store.Set(ctx, "key", []byte("value"), time.Minute); err != nil {
//		return err
//	}
//
//	if err := redis.Healthcheck(client)(ctx); err != nil {
//		// redis is not healthy
//	}
//
// # Errors
//
// Sentinel errors such as ErrRedisNotReady wrap the underlying go-redis errors
// with errors.Join and can be matched with errors.Is.
package redis
