// Package cache provides a small TTL cache for values fetched from slow
// stores, such as secrets read from a remote backend.
//
// Keys are namespaced and hashed with Key so that the names of cached
// secrets are not kept in memory in clear text.
package cache
