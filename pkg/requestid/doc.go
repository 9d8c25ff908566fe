// Package requestid tags each HTTP request with a correlation id.
//
// Middleware reuses a well-formed X-Request-ID sent by the client (letters,
// digits, '-' and '_', at most 128 bytes) and otherwise generates a UUIDv4.
// The id is echoed in the response header, stored in the request context and
// copied into tenant audit events. LoggerExtractor adds it to every log
// record written with the request context.
//
// New accepts WithHeader and WithGenerator for deployments that use another
// header or id scheme.
package requestid
