/*
Package metrics defines and registers ridge's Prometheus instrumentation.

Metrics are grouped by the area of the controller they observe:

  - Lock: LockAcquiredTotal, LockConflictTotal, LockReleasedTotal
  - Jobs: JobsTotal (by kind/status), JobDuration, StageDuration
  - Guardrails: GuardrailRejectionsTotal (by guardrail name)
  - Fleet: NodesTotal (by role/status), ClustersTotal
  - Streaming: ActiveStreamSubscribers
  - API: APIRequestsTotal, APIRequestDuration (by method/route/status)

All metrics are registered at package init via prometheus.MustRegister and
are exposed for scraping through Handler(), mounted at /metrics by
pkg/api.Server.

Timer is a small helper for recording elapsed time to a histogram:

	timer := metrics.NewTimer()
	err := doWork()
	timer.ObserveDurationVec(metrics.StageDuration, string(stage))
*/
package metrics
