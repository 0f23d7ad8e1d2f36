// Package observability exposes plant state and HTTP API traffic as
// Prometheus metrics on a private registry.
package observability
