/*
Package observability turns engine lifecycle hooks into Prometheus metrics and
structured log records.

Both are plain domain.LifecycleHooks and can be combined with Merge:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
	eng, _ := storyweaver.New(service, storyweaver.WithLifecycleHooks(hooks))
*/
package observability
