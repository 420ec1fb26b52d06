// Package auth guards the cache admin API.
//
// Authenticators turn request headers into an Identity: JWTAuthenticator
// validates HMAC-signed bearer tokens, APIKeyAuthenticator looks up hashed
// keys. RoleAuthorizer grants the two admin roles, where RoleAdmin implies
// RoleRead. Middleware ties both to net/http and answers 401 or 403.
package auth
