// Package health reports whether the services behind the library are
// reachable: secret backends, webhook configuration and API credentials.
//
// A Checker returns a Result. An Aggregator runs several checkers
// concurrently under a shared deadline and folds them into one status:
//
//	agg := health.NewAggregator(health.AggregatorConfig{Timeout: 5 * time.Second})
//	agg.Register(manager.HealthChecker("secrets"))
//	agg.Register(health.Ping("vault", vaultBackend.Ping))
//
//	reports := agg.CheckAll(ctx)
//	if health.Overall(reports) != health.StatusHealthy {
//	    ...
//	}
package health
