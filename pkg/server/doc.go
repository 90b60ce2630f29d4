// Package server provides the HTTP API server for the quota service.
//
// This package ties together the quota service, handlers, and middleware
// and provides server lifecycle management including start, shutdown, and
// health checks.
//
// # Basic Usage
//
// Creating and starting a server:
//
//	import (
//	    "context"
//	    "mercator-hq/ganymede/pkg/config"
//	    "mercator-hq/ganymede/pkg/quota"
//	    "mercator-hq/ganymede/pkg/server"
//	)
//
//	cfg := config.GetConfig()
//	svc := quota.Default()
//
//	srv := server.NewServer(&cfg.Server, svc, true)
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// The server handles graceful shutdown automatically when receiving SIGTERM
// or SIGINT. The shutdown process:
//  1. Stops accepting new connections
//  2. Waits for active connections to complete (up to shutdown timeout)
//  3. Makes a final flush pass over the pending-record queue
//
// # Routes
//
// The server exposes the following HTTP endpoints:
//
//   - POST /v1/quota/check - Check whether a user may issue another query
//   - POST /v1/quota/record - Record a completed query
//   - GET /v1/quota/reset-time - Next daily reset instant
//   - GET /healthz - Liveness probe
//   - GET /metrics - Prometheus metrics (when enabled)
//
// # Middleware Chain
//
// Requests pass through the following middleware (innermost to outermost):
//  1. RequestID: Generates unique request ID for tracing
//  2. Logging: Logs request/response details
//  3. Recovery: Recovers from panics and returns 500 error
package server
