// Package api hosts the HTTP server, middleware, and REST handlers of the miner.
// Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /initialize to register the normalization map with the analytics backend.
//   - GET and POST /discover to resolve company names to profile URLs.
//   - POST /companies to mine a batch of companies.
//
// Every route except the probes, metrics, and the welcome page requires an
// Authorization bearer token, which is forwarded to the analytics backend.
package api
