// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for probes, /metrics for Prometheus scraping.
//   - POST /api/v1/scrapes for job submission, DELETE for cancellation.
//   - GET /api/v1/scrapes and /api/v1/scrapes/{job_id}/schools for run
//     progress via the ProgressRepository interface.
//   - GET /api/v1/lecturers for stored records, /api/v1/schools for the
//     crawlable registry.
package api
