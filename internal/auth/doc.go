// Package auth provides authentication for chatd.
//
// # Components
//
//   - Identity + context helpers: WithIdentity/FromContext propagate the
//     authenticated user through request handling.
//   - SessionManager: cookie-backed sessions persisted in the store. A
//     fresh login revokes the user's prior sessions.
//   - RequireUser / RequireAdmin: HTTP middleware enforcing authentication
//     and the admin role with JSON error bodies.
//   - HashPassword / CheckPassword: bcrypt password storage.
//   - ResetTokens: short-lived HS256 JWTs for password reset links.
//
// # Error Semantics
//
// Missing or invalid sessions yield 401; a valid session without the admin
// role yields 403 on admin routes. Handlers never see an absent Identity on
// guarded routes.
package auth
