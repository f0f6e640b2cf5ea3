// Package api serves the local ops HTTP API.
//
// The surface is small and tooling-oriented:
//
//	GET  /healthz          liveness probe, no auth
//	GET  /api/v1/stats     mode + 24h status counts
//	GET  /api/v1/pending   requests awaiting manual review
//	GET  /api/v1/mode      current moderation mode
//	PUT  /api/v1/mode      switch mode (audited, actor = token subject)
//	GET  /api/v1/audit     audit log with limit/action/actor/request/since filters
//
// Everything under /api/v1 requires a bearer JWT whose subject is a
// configured reviewer (see internal/auth). Errors are JSON bodies of the
// form {"error": "..."}.
//
// The server is expected to bind a loopback address; exposing it further is
// a deployment decision, not something this package handles.
package api
