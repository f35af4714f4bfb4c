/*
Package api implements ridge's HTTP Job API Surface.

The API server is the only network-facing entry point into the controller:
every cluster, node, and job operation goes through it, backed
by pkg/core's service façade.

# Endpoints

Clusters:
  - GET    /clusters
  - POST   /clusters/new
  - POST   /clusters/register
  - GET    /clusters/{id}
  - DELETE /clusters/{id}
  - POST   /clusters/{id}/scale/add
  - POST   /clusters/{id}/scale/remove
  - POST   /clusters/{id}/preflight-check
  - POST   /clusters/{id}/upgrade-check

Jobs:
  - POST /jobs/install/{cluster_id}
  - POST /jobs/uninstall/{cluster_id}
  - GET  /jobs
  - GET  /jobs/{id}
  - POST /jobs/{id}/terminate
  - GET  /jobs/{id}/stream (Server-Sent Events)

Operational:
  - GET /health
  - GET /ready
  - GET /metrics

# Error mapping

pkg/apierr classifications map to HTTP status codes: KindConflict → 409,
KindValidation and KindGuardrail → 400, KindNotFound → 404, KindStore and
anything unclassified → 500.
*/
package api
