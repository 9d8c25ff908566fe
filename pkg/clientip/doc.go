// Package clientip resolves the originating client address of an HTTP request
// deployed behind reverse proxies. The address ends up in tenant audit events
// and log records.
//
// Headers are examined in priority order until a valid address is found:
//
//  1. CF-Connecting-IP
//  2. DO-Connecting-IP
//  3. X-Forwarded-For
//  4. X-Real-IP
//  5. RemoteAddr
//
// GetIP and Middleware trust forwarded headers from any peer. Build an
// Extractor with a trusted proxy list when the service is reachable directly:
//
//	ext, err := clientip.New(clientip.Config{TrustedProxies: []string{"10.0.0.0/8"}})
//	if err != nil {
//		return err
//	}
//	handler = ext.Middleware(handler)
//
// With trusted proxies configured, headers from untrusted peers are ignored and
// X-Forwarded-For is walked from the right, skipping trusted hops.
package clientip
