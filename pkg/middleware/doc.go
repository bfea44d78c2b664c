// Package middleware provides the mediagate-specific HTTP middleware:
// authentication, client keys and rate limiting.
//
// # Order
//
//	router.Use(middleware.Authenticate(authenticator, rbacManager))
//	router.Use(middleware.ClientKeyMiddleware)
//	router.Use(middleware.RateLimit(limiter, time.Minute, metrics.RateLimitedTotal.WithLabelValues("api")))
//
// Authenticate stores the caller's *rbac.Profile in the request context;
// handlers read it with ProfileFromContext. Anonymous requests carry no
// profile and are let through so public content stays reachable.
//
// # Rate Limiting
//
// RateLimiter is an in-process token bucket. It also serves as the password
// and share-lookup attempt limiter when redis is not configured; with redis,
// rediscache.Limiter is used instead so limits hold across instances.
package middleware
