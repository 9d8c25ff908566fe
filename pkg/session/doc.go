// Package session manages server-side sessions bound to opaque tokens.
//
// A Manager combines a Transport, which reads and writes the token on the
// wire, with a Store holding the session state. The tenancy layer keeps the
// organization selected through the URL in session data so later requests
// without an organization segment resolve to the same tenant.
//
// Stores:
//
//   - MemoryStore keeps sessions in process memory with periodic cleanup.
//   - redisstore.Store keeps them in Redis under hashed keys with native TTLs.
//
// Transports:
//
//   - CookieTransport (default) uses an HttpOnly, SameSite=Lax cookie.
//   - HeaderTransport uses a request/response header for API clients.
//   - CompositeTransport tries several transports in order.
//
// # Usage
//
//	mgr := session.NewFromConfig(cfg, session.WithStore(store))
//	defer mgr.Close()
//
//	router.Use(mgr.Middleware)
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		s, ok := session.FromContext(r.Context())
//		if ok {
//			s.Set("key", "value")
//			_ = mgr.Save(r.Context(), s)
//		}
//	}
//
// Activity timestamps are written by a background worker; Close drains it.
package session
