// Package auth implements credential verification and session tokens
// for the Gatehouse single-sign-on gateway.
//
// Credentials are a closed variant: Encrypted (salted PBKDF2 hash) or
// Plain (legacy plaintext). All comparisons are constant-time.
//
// Sessions are self-contained signed cookies carried by the client;
// nothing is persisted server-side.
package auth
