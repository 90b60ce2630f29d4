// Package middleware provides HTTP middleware for the quota API server.
//
// The middleware chain handles cross-cutting concerns: request ID
// generation for tracing, structured request logging, and panic recovery.
package middleware
