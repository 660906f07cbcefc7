// Package token issues and verifies stateless identity tokens.
//
// Tokens are HS256 JWTs whose claims are exactly {sub, iat, exp}, with sub the
// numeric account id. A token is valid iff iat <= now < exp; no leeway is applied.
// The signing secret and TTL are fixed at construction and never rotated at runtime.
package token
