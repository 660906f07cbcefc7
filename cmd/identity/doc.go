// Package identity is the credential store: accounts, password hashes, score records
// and granted items.
//
// It knows nothing about the item catalog. Item keys are stored and returned as plain
// strings; decoding them into catalog entries is the caller's job.
package identity
