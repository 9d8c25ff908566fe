// Package opensearch creates the OpenSearch client used to index tenant audit
// events for search.
//
// New builds the client from Config and checks cluster reachability before
// returning. Healthcheck performs the same check for readiness probes.
package opensearch
