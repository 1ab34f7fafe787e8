// Package api hosts the HTTP server, middleware, and handlers. Notable routes:
//   - GET / and /weeks/{week} for the rendered leaderboard pages.
//   - GET /api/index, /api/latest and /api/weeks/{week} for JSON views.
//   - POST /api/cache/invalidate to drop cached documents.
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
