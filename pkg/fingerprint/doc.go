// Package fingerprint derives a device identifier from request headers so a
// session can be bound to the client that created it.
//
// A fingerprint is a BLAKE2b digest of a fixed list of headers and,
// optionally, the client address. It is plugged into session.Manager:
//
//	fp := fingerprint.New(fingerprint.WithIP())
//	mgr := session.New(session.WithFingerprint(fp))
//
// A request whose fingerprint differs from the one recorded at session
// creation is treated as having no session, which also drops any tenant
// selection stored in it.
package fingerprint
