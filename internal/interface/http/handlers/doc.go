// Package handlers contains HTTP health checks and reusable middleware.
//
// # Health Checks
//
// The CompositeHealthChecker runs named checks in parallel. Required checks
// take the service down when they fail; optional ones only degrade it:
//
//	checker := handlers.NewCompositeHealthChecker("v0.1.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(conn))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
//	checker.AddOptionalCheck("cache_circuit", handlers.NewBreakerCheck(sc.Breaker()))
//
//	status := checker.Check(ctx)
//
// # API Keys
//
// APIKeyAuth stores bcrypt hashes only. Generate one with:
//
//	hash, _ := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
//
// and pass it through HTTP_API_KEY_HASHES. Keys are read from the configured
// header or from "Authorization: Bearer <key>".
package handlers
