// Package mongo connects to the MongoDB deployment that can receive tenant
// audit events.
//
// New retries Connect and Ping according to Config; NewWithDatabase returns
// the handle of Config.Database. Healthcheck returns a readiness probe.
package mongo
