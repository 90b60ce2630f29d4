// Ganymede is a daily query-limit service for per-user quota accounting.
//
// It answers whether a user may issue another query today, records completed
// queries with at-least-once delivery, and reports when the daily limit next
// resets.
//
// Usage:
//
//	# Start server with default configuration
//	ganymede run
//
//	# Start with custom configuration file
//	ganymede run --config /path/to/config.yaml
//
//	# Show version information
//	ganymede version
//
//	# Validate a configuration file
//	ganymede validate --config /path/to/config.yaml
package main

func main() {
	Execute()
}
