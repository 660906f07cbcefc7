// Package session registers accounts and exchanges credentials for bearer tokens.
//
// Tokens are stateless: nothing is persisted at login, and a token stays valid
// until it expires. There is no server-side revocation.
package session
