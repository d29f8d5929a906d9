// Package keycache caches environments by API key for flags.Service.
//
// Evaluation requests address an environment by its API key, so every request
// starts with that lookup. LRU keeps entries in process memory using
// pkg/cache; Redis shares them between instances through pkg/redis. Both
// expire entries after a TTL, and the service deletes entries once a
// transaction that changed or removed the environment has committed.
//
//	envCache, err := keycache.New(cfg, redisClient)
//	if err != nil {
//		return err
//	}
//	svc := flags.NewService(store, flags.WithEnvironmentCache(envCache))
package keycache
