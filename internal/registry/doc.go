// Package registry holds the shared user registry for the gateway.
//
// Users are loaded from a flat JSON file mapping usernames to credential
// records and optional per-application allow-lists. Loads install a new
// immutable snapshot behind an atomic pointer; readers always see a
// complete snapshot, never a partial one, and a failed reload keeps the
// previous snapshot current.
//
// The registry can watch its backing file and reload automatically, and
// publishes each new snapshot to subscribers.
package registry
