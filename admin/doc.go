// Package admin serves the cache management operations as a JSON HTTP API.
//
// Read routes require the cache.read role and mutating routes cache.admin:
//
//	GET    /cache/stats
//	GET    /cache/entries
//	GET    /cache/snapshot
//	DELETE /cache/entries/{key}
//	POST   /cache/clear
//	POST   /cache/stats/reset
//	PUT    /cache/enabled      {"enabled": true}
//
// Authentication and authorization come from package auth. A Middleware with
// no Authenticator leaves the API open, which suits a loopback listener.
package admin
