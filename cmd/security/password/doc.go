// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes use the PHC string layout $argon2id$v=19$m=..,t=..,p=..$salt$key so every
// blob carries its own salt and cost parameters. Verify treats the blob as untrusted
// input and refuses parameters far above the configured cost.
//
// Length and strength rules live in Policy and are checked by callers through
// Config.Validate; Hash and Verify never reject a password on policy grounds.
package password
