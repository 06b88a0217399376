// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, tunable settings and debug introspection for the TCP
// server core.
//
// Provides:
//   - Prometheus collectors for connection and message traffic
//   - A settings store whose listeners react to runtime updates
//   - Named debug probes dumped as one snapshot
package control
