// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, hot-reload, runtime metrics and debug introspection for the
// gcdispatch worker pool.
//
// Provides concurrent-safe state handling primitives including:
//   - TOML dispatcher configuration with validation and snapshot reads
//   - A file watcher that reloads the configuration on write
//   - Counters, gauges and a bounded history of recent dispatches
//   - Named debug probes
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
