// Package redis provides Redis connectivity, the transient metric sample
// store, and the distributed lease used to single-flight background
// pipeline tasks.
//
// Connect validates the URL, dials with exponential backoff retry, and
// verifies connectivity with a ping:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	samples := redis.NewSampleStore(client, cfg)
//	locker := redis.NewLocker(client, "devicekit:lock")
//
// Healthcheck returns a ping probe for readiness endpoints. Errors are
// sentinel values checkable with errors.Is.
package redis
