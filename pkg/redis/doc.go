// Package redis connects to Redis for the shared rate limiter store.
//
// Connect parses a redis:// URL, pings the server and retries according to
// Config, which is populated from the environment via caarlos0/env.
// Healthcheck returns a ping for readiness probes.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := ratelimit.NewRedisStore(client)
//
// Errors returned by Connect and Healthcheck join a package sentinel
// (ErrRedisNotReady, ErrHealthcheckFailed, ...) with the driver error.
package redis
