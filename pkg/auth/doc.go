// Package auth authenticates requests with HS256 bearer tokens and exposes the
// resulting Identity to the tenancy layer.
//
// Tokens carry the user id in the subject claim and a superuser flag:
//
//	svc, err := auth.NewService(auth.Config{Secret: secret, Issuer: "casekit"})
//	token, err := svc.Issue(auth.Identity{UserID: userID})
//
// Middleware is optional authentication: requests without a token continue
// anonymously, requests with an invalid or expired token get 401. Wrap
// handlers with RequireAuth to insist on an identity.
package auth
