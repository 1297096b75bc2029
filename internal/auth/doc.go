// Package auth provides authentication and authorization for the API.
//
// Every route except the public ones (health, login, setup, CSRF token)
// requires an authenticated user. Two credentials are accepted:
//   - Bearer tokens: HS256 JWTs issued by /api/auth/login and /api/auth/token
//   - Session cookies: stored in the sessions table via scs, for browser clients
//
// Cookie-authenticated mutations must carry the X-CSRF-Token header obtained
// from /api/auth/csrf. Bearer requests are exempt.
//
// # Configuration
//
//	AUTH_JWT_SECRET=<hex>         # Auto-generated if empty (tokens die on restart)
//	AUTH_TOKEN_EXPIRY=24h         # Bearer token lifetime
//	AUTH_SESSION_SECRET=<hex>     # CSRF key, auto-generated if empty
//	AUTH_SESSION_LIFETIME=24h     # Session duration
//	AUTH_BCRYPT_COST=12           # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true      # HTTPS-only cookies
//	AUTH_MAX_LOGIN_ATTEMPTS=5     # Failed logins before lockout
//
// # Usage
//
//	service := auth.NewService(users.NewRepository(db), auth.NewTokenIssuer(secret, ttl), cfg.Auth)
//	router.Use(sessions.Middleware())
//	router.Use(auth.NewMiddleware(service, sessions).Handler())
//
// Extract the caller in handlers:
//
//	userID := auth.GetUserID(c)
//	role := auth.GetUserRole(c)
package auth
