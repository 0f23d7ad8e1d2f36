// Package api exposes the point table over HTTP.
//
//	GET  /health              liveness and current cycle
//	GET  /snapshot            last published snapshot
//	GET  /points[?owner=]     point metadata
//	GET  /points/values       every readable value
//	GET  /points/{id}         one value
//	PUT  /points/{id}         {"value": ...}
//	POST /step[?n=]           advance a paused plant
//	GET  /metrics             Prometheus exposition, when metrics are on
package api
